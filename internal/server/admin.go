package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/campuswalk/jaileon/backend/internal/exchange"
	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/gin-gonic/gin"
)

type adminPointsRequestPayload struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *httpHandler) handleAdminPoints(c *gin.Context) {
	admin, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	var request adminPointsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.UserID) == "" ||
		strings.TrimSpace(request.Reason) == "" ||
		request.Amount == 0 {
		c.JSON(http.StatusBadRequest, errorPayload{
			Error: "user_id, a nonzero amount, and reason are required",
			Code:  codeInvalidRequest,
		})
		return
	}

	adminID := admin.ID
	newBalance, err := h.ledger.ApplyDelta(c.Request.Context(), ledger.Delta{
		UserID:             strings.TrimSpace(request.UserID),
		Amount:             request.Amount,
		Reason:             strings.TrimSpace(request.Reason),
		ActingAdminID:      &adminID,
		RequireNonNegative: true,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"new_points": newBalance})
}

type finalizeExchangeRequestPayload struct {
	Status string `json:"status"`
}

type exchangePayload struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	RewardID     uint64 `json:"reward_id"`
	PointsSpent  int64  `json:"points_spent"`
	ExchangeCode string `json:"exchange_code"`
	Status       string `json:"status"`
}

func (h *httpHandler) handleAdminFinalizeExchange(c *gin.Context) {
	admin, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorPayload{Error: "sign in to continue", Code: codeUnauthorized})
		return
	}

	exchangeID := strings.TrimSpace(c.Param("id"))
	var request finalizeExchangeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || exchangeID == "" {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "status is required", Code: codeInvalidRequest})
		return
	}

	target := exchange.Status(strings.ToLower(strings.TrimSpace(request.Status)))
	finalized, err := h.exchange.Finalize(c.Request.Context(), exchangeID, target, admin.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, exchangePayload{
		ID:           finalized.ID,
		UserID:       finalized.UserID,
		RewardID:     finalized.RewardID,
		PointsSpent:  finalized.PointsSpent,
		ExchangeCode: finalized.ExchangeCode,
		Status:       string(finalized.Status),
	})
}

type createLocationRequestPayload struct {
	LocationNumber int    `json:"location_number"`
	Name           string `json:"name"`
}

func (h *httpHandler) handleAdminCreateLocation(c *gin.Context) {
	if h.locations == nil {
		c.JSON(http.StatusInternalServerError, errorPayload{Error: "something went wrong", Code: codeInternalError})
		return
	}

	var request createLocationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		request.LocationNumber <= 0 ||
		strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, errorPayload{
			Error: "location_number and name are required",
			Code:  codeInvalidRequest,
		})
		return
	}

	location, err := h.locations.Create(c.Request.Context(), request.LocationNumber, request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              location.ID,
		"location_number": location.LocationNumber,
		"code":            location.Code,
		"name":            location.Name,
		"active":          location.Active,
	})
}

type updateLocationRequestPayload struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func (h *httpHandler) handleAdminUpdateLocation(c *gin.Context) {
	if h.locations == nil {
		c.JSON(http.StatusInternalServerError, errorPayload{Error: "something went wrong", Code: codeInternalError})
		return
	}

	locationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "location id is not valid", Code: codeInvalidRequest})
		return
	}

	var request updateLocationRequestPayload
	if bindErr := c.ShouldBindJSON(&request); bindErr != nil || (request.Name == nil && request.Active == nil) {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "name or active is required", Code: codeInvalidRequest})
		return
	}

	changes := map[string]interface{}{}
	if request.Name != nil {
		trimmed := strings.TrimSpace(*request.Name)
		if trimmed == "" {
			c.JSON(http.StatusBadRequest, errorPayload{Error: "name must not be blank", Code: codeInvalidRequest})
			return
		}
		changes["name"] = trimmed
	}
	if request.Active != nil {
		changes["active"] = *request.Active
	}

	updated, err := h.locations.Update(c.Request.Context(), locationID, changes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              updated.ID,
		"location_number": updated.LocationNumber,
		"name":            updated.Name,
		"active":          updated.Active,
	})
}

type createRewardRequestPayload struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	RequiredPoints int64  `json:"required_points"`
	Stock          int    `json:"stock"`
}

func (h *httpHandler) handleAdminCreateReward(c *gin.Context) {
	var request createRewardRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.Name) == "" ||
		request.RequiredPoints <= 0 {
		c.JSON(http.StatusBadRequest, errorPayload{
			Error: "name and a positive required_points are required",
			Code:  codeInvalidRequest,
		})
		return
	}

	reward, err := h.exchange.CreateReward(c.Request.Context(), exchange.Reward{
		Name:           request.Name,
		Description:    request.Description,
		RequiredPoints: request.RequiredPoints,
		Stock:          request.Stock,
		Active:         true,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rewardToPayload(reward))
}

type updateRewardRequestPayload struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	RequiredPoints *int64  `json:"required_points"`
	Stock          *int    `json:"stock"`
	Active         *bool   `json:"active"`
}

func (h *httpHandler) handleAdminUpdateReward(c *gin.Context) {
	rewardID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "reward id is not valid", Code: codeInvalidRequest})
		return
	}

	var request updateRewardRequestPayload
	if bindErr := c.ShouldBindJSON(&request); bindErr != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "request body is not valid", Code: codeInvalidRequest})
		return
	}

	changes := map[string]interface{}{}
	if request.Name != nil && strings.TrimSpace(*request.Name) != "" {
		changes["name"] = strings.TrimSpace(*request.Name)
	}
	if request.Description != nil {
		changes["description"] = *request.Description
	}
	if request.RequiredPoints != nil && *request.RequiredPoints > 0 {
		changes["required_points"] = *request.RequiredPoints
	}
	if request.Stock != nil && *request.Stock >= 0 {
		changes["stock"] = *request.Stock
	}
	if request.Active != nil {
		changes["active"] = *request.Active
	}
	if len(changes) == 0 {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "no valid fields to update", Code: codeInvalidRequest})
		return
	}

	reward, err := h.exchange.UpdateReward(c.Request.Context(), rewardID, changes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rewardToPayload(reward))
}
