package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")
	configViper.Set("oracle.seed", "seed")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.SessionCookieName != defaultCookieName {
		t.Fatalf("unexpected cookie name: %s", cfg.SessionCookieName)
	}
	if cfg.Timezone == nil || cfg.Timezone.String() != defaultTimezone {
		t.Fatalf("unexpected timezone: %v", cfg.Timezone)
	}
	if cfg.GoldenWindowStartHour != defaultGoldenStartHour || cfg.GoldenWindowEndHour != defaultGoldenEndHour {
		t.Fatalf("unexpected golden window: %d-%d", cfg.GoldenWindowStartHour, cfg.GoldenWindowEndHour)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(cfg map[string]any)
		want    string
	}{
		{
			name: "missing-signing-secret",
			prepare: func(cfg map[string]any) {
				delete(cfg, "session.signing_secret")
			},
			want: "session.signing_secret",
		},
		{
			name: "missing-oracle-seed",
			prepare: func(cfg map[string]any) {
				delete(cfg, "oracle.seed")
			},
			want: "oracle.seed",
		},
		{
			name: "inverted-golden-window",
			prepare: func(cfg map[string]any) {
				cfg["game.golden_start_hour"] = 12
				cfg["game.golden_end_hour"] = 9
			},
			want: "golden_end_hour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]any{
				"session.signing_secret": "secret",
				"oracle.seed":            "seed",
			}
			tt.prepare(values)

			configViper := NewViper()
			for key, value := range values {
				configViper.Set(key, value)
			}

			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected load error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")
	configViper.Set("oracle.seed", "seed")
	configViper.Set("game.timezone", "Nowhere/Nonexistent")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected timezone error")
	}
}
