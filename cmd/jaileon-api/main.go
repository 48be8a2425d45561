package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuswalk/jaileon/backend/internal/auth"
	"github.com/campuswalk/jaileon/backend/internal/badges"
	"github.com/campuswalk/jaileon/backend/internal/capture"
	"github.com/campuswalk/jaileon/backend/internal/config"
	"github.com/campuswalk/jaileon/backend/internal/database"
	"github.com/campuswalk/jaileon/backend/internal/exchange"
	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/campuswalk/jaileon/backend/internal/locations"
	"github.com/campuswalk/jaileon/backend/internal/logging"
	"github.com/campuswalk/jaileon/backend/internal/outcome"
	"github.com/campuswalk/jaileon/backend/internal/server"
	"github.com/campuswalk/jaileon/backend/internal/stats"
	"github.com/campuswalk/jaileon/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jaileon-api",
		Short: "Campus-walk capture and reward backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("session-cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("oracle-seed", "", "Daily spawn seed (overrides env)")
	cmd.PersistentFlags().String("game-timezone", defaults.GetString("game.timezone"), "Civil time zone for game days")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.cookie_name", "session-cookie-name")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "oracle.seed", "oracle-seed")
	bindFlag(cmd, "game.timezone", "game-timezone")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	locationService, err := locations.NewService(locations.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	oracle, err := outcome.NewOracle(outcome.OracleConfig{
		Database: db,
		Seed:     []byte(appConfig.OracleSeed),
	})
	if err != nil {
		return err
	}

	ledgerService, err := ledger.NewService(ledger.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	badgeEvaluator, err := badges.NewEvaluator(badges.EvaluatorConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	statRecorder, err := stats.NewRecorder(stats.RecorderConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	captureService, err := capture.NewService(capture.ServiceConfig{
		Database:  db,
		Locations: locationService,
		Oracle:    oracle,
		Badges:    badgeEvaluator,
		Stats:     statRecorder,
		Logger:    logger,
		Zone:      appConfig.Timezone,
		Golden: outcome.GoldenWindow{
			StartHour: appConfig.GoldenWindowStartHour,
			EndHour:   appConfig.GoldenWindowEndHour,
			Zone:      appConfig.Timezone,
		},
	})
	if err != nil {
		return err
	}

	exchangeService, err := exchange.NewService(exchange.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:  sessionValidator,
		Users:     userService,
		Capture:   captureService,
		Exchange:  exchangeService,
		Ledger:    ledgerService,
		Badges:    badgeEvaluator,
		Locations: locationService,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
