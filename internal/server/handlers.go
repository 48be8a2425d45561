package server

import (
	"net/http"
	"strings"

	"github.com/campuswalk/jaileon/backend/internal/badges"
	"github.com/campuswalk/jaileon/backend/internal/exchange"
	"github.com/gin-gonic/gin"
)

type captureRequestPayload struct {
	QRCode string `json:"qr_code"`
}

type captureResponsePayload struct {
	Outcome      string   `json:"outcome"`
	OutcomeName  string   `json:"outcome_name"`
	Captured     bool     `json:"captured"`
	PointsEarned int64    `json:"points_earned"`
	TotalPoints  int64    `json:"total_points"`
	CaptureCount int64    `json:"capture_count"`
	LocationName string   `json:"location_name"`
	Streak       *int     `json:"streak,omitempty"`
	StreakBonus  *int64   `json:"streak_bonus,omitempty"`
	NewBadges    []string `json:"new_badges"`
}

func (h *httpHandler) handleCapture(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	var request captureRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.QRCode) == "" {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "qr_code is required", Code: codeInvalidRequest})
		return
	}

	result, err := h.capture.Capture(c.Request.Context(), user, strings.TrimSpace(request.QRCode))
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := captureResponsePayload{
		Outcome:      string(result.Outcome),
		OutcomeName:  result.OutcomeName,
		Captured:     result.Captured,
		PointsEarned: result.PointsEarned,
		TotalPoints:  result.TotalPoints,
		CaptureCount: result.CaptureCount,
		LocationName: result.LocationName,
		NewBadges:    result.NewBadges,
	}
	if response.NewBadges == nil {
		response.NewBadges = []string{}
	}
	if result.Streak > 0 {
		streakValue := result.Streak
		bonusValue := result.StreakBonus
		response.Streak = &streakValue
		response.StreakBonus = &bonusValue
	}

	c.JSON(http.StatusOK, response)
}

type redeemRequestPayload struct {
	RewardID uint64 `json:"reward_id"`
}

type redeemResponsePayload struct {
	ExchangeID   string `json:"exchange_id"`
	ExchangeCode string `json:"exchange_code"`
	PointsAfter  int64  `json:"points_after"`
}

func (h *httpHandler) handleRedeem(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	var request redeemRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.RewardID == 0 {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "reward_id is required", Code: codeInvalidRequest})
		return
	}

	receipt, err := h.exchange.Redeem(c.Request.Context(), user.ID, request.RewardID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, redeemResponsePayload{
		ExchangeID:   receipt.ExchangeID,
		ExchangeCode: receipt.ExchangeCode,
		PointsAfter:  receipt.PointsAfter,
	})
}

type profileResponsePayload struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Email        string   `json:"email"`
	Affiliation  string   `json:"affiliation"`
	ResearchArea string   `json:"research_area"`
	Role         string   `json:"role"`
	Points       int64    `json:"points"`
	CaptureCount int64    `json:"capture_count"`
	Streak       int      `json:"streak"`
	Avatar       string   `json:"avatar"`
	Badges       []string `json:"badges"`
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	earned := []string{}
	if h.badges != nil {
		ids, err := h.badges.Earned(c.Request.Context(), user.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if ids != nil {
			earned = ids
		}
	}

	currentStreak, err := h.capture.CurrentStreak(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileResponsePayload{
		ID:           user.ID,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		Affiliation:  user.Affiliation,
		ResearchArea: user.ResearchArea,
		Role:         string(user.Role),
		Points:       user.Points,
		CaptureCount: user.CaptureCount,
		Streak:       currentStreak,
		Avatar:       user.Avatar,
		Badges:       earned,
	})
}

func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	if err := h.users.Delete(c.Request.Context(), user.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type rewardPayload struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	RequiredPoints int64  `json:"required_points"`
	Stock          int    `json:"stock"`
	Active         bool   `json:"active"`
}

func rewardToPayload(reward exchange.Reward) rewardPayload {
	return rewardPayload{
		ID:             reward.ID,
		Name:           reward.Name,
		Description:    reward.Description,
		RequiredPoints: reward.RequiredPoints,
		Stock:          reward.Stock,
		Active:         reward.Active,
	}
}

func (h *httpHandler) handleListRewards(c *gin.Context) {
	rewards, err := h.exchange.ListRewards(c.Request.Context(), true)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]rewardPayload, 0, len(rewards))
	for _, reward := range rewards {
		payload = append(payload, rewardToPayload(reward))
	}
	c.JSON(http.StatusOK, gin.H{"rewards": payload})
}

type badgePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
}

func (h *httpHandler) handleListBadges(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	earned := map[string]struct{}{}
	if h.badges != nil {
		ids, err := h.badges.Earned(c.Request.Context(), user.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, id := range ids {
			earned[id] = struct{}{}
		}
	}

	payload := make([]badgePayload, 0, len(badges.Catalog))
	for _, badge := range badges.Catalog {
		_, has := earned[badge.ID]
		payload = append(payload, badgePayload{
			ID:          badge.ID,
			Name:        badge.Name,
			Description: badge.Description,
			Earned:      has,
		})
	}
	c.JSON(http.StatusOK, gin.H{"badges": payload})
}
