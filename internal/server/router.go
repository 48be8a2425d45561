package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/campuswalk/jaileon/backend/internal/auth"
	"github.com/campuswalk/jaileon/backend/internal/badges"
	"github.com/campuswalk/jaileon/backend/internal/capture"
	"github.com/campuswalk/jaileon/backend/internal/exchange"
	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/campuswalk/jaileon/backend/internal/locations"
	"github.com/campuswalk/jaileon/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserContextKey = "jaileon_current_user"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserService      = errors.New("user service dependency required")
	errMissingCaptureService   = errors.New("capture service dependency required")
	errMissingExchangeService  = errors.New("exchange service dependency required")
	errMissingLedgerService    = errors.New("ledger service dependency required")
)

// Dependencies wires the services consumed by the HTTP layer.
type Dependencies struct {
	Sessions  *auth.SessionValidator
	Users     *users.Service
	Capture   *capture.Service
	Exchange  *exchange.Service
	Ledger    *ledger.Service
	Badges    *badges.Evaluator
	Locations *locations.Service
	Logger    *zap.Logger
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Capture == nil {
		return nil, errMissingCaptureService
	}
	if deps.Exchange == nil {
		return nil, errMissingExchangeService
	}
	if deps.Ledger == nil {
		return nil, errMissingLedgerService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:  deps.Sessions,
		users:     deps.Users,
		capture:   deps.Capture,
		exchange:  deps.Exchange,
		ledger:    deps.Ledger,
		badges:    deps.Badges,
		locations: deps.Locations,
		logger:    logger,
	}

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	api.POST("/capture", handler.handleCapture)
	api.POST("/exchanges", handler.handleRedeem)
	api.GET("/me", handler.handleProfile)
	api.DELETE("/me", handler.handleDeleteAccount)
	api.GET("/rewards", handler.handleListRewards)
	api.GET("/badges", handler.handleListBadges)

	admin := api.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.POST("/points", handler.handleAdminPoints)
	admin.PATCH("/exchanges/:id", handler.handleAdminFinalizeExchange)
	admin.POST("/locations", handler.handleAdminCreateLocation)
	admin.PATCH("/locations/:id", handler.handleAdminUpdateLocation)
	admin.POST("/rewards", handler.handleAdminCreateReward)
	admin.PATCH("/rewards/:id", handler.handleAdminUpdateReward)

	return router, nil
}

type httpHandler struct {
	sessions  *auth.SessionValidator
	users     *users.Service
	capture   *capture.Service
	exchange  *exchange.Service
	ledger    *ledger.Service
	badges    *badges.Evaluator
	locations *locations.Service
	logger    *zap.Logger
}

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Machine-readable error codes returned alongside human messages so clients
// can branch without string matching.
const (
	codeInvalidRequest     = "invalid_request"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeInvalidQR          = "invalid_qr"
	codeInactiveQR         = "inactive_qr"
	codeAlreadyScanned     = "already_scanned"
	codeRewardInactive     = "reward_inactive"
	codeOutOfStock         = "out_of_stock"
	codeInsufficientPoints = "insufficient_points"
	codeExchangeNotPending = "exchange_not_pending"
	codeNotFound           = "not_found"
	codeInternalError      = "internal_error"
)

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorPayload{
			Error: "sign in to continue",
			Code:  codeUnauthorized,
		})
		return
	}

	user, err := h.users.ResolveFromClaims(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorPayload{
				Error: "sign in to continue",
				Code:  codeUnauthorized,
			})
			return
		}
		h.logger.Error("user resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorPayload{
			Error: "something went wrong",
			Code:  codeInternalError,
		})
		return
	}

	c.Set(currentUserContextKey, user)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorPayload{
			Error: "sign in to continue",
			Code:  codeUnauthorized,
		})
		return
	}
	if !user.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, errorPayload{
			Error: "administrator access required",
			Code:  codeForbidden,
		})
		return
	}
	c.Next()
}

func (h *httpHandler) currentUser(c *gin.Context) (users.User, bool) {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return users.User{}, false
	}
	user, ok := value.(users.User)
	return user, ok
}

// respondError translates domain errors into the HTTP taxonomy. Internal
// failures are logged with detail and returned as a generic message.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, capture.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "scan code is not valid", Code: codeInvalidRequest})
	case errors.Is(err, capture.ErrUnknownCode):
		c.JSON(http.StatusNotFound, errorPayload{Error: "unknown scan code", Code: codeInvalidQR})
	case errors.Is(err, capture.ErrInactiveLocation):
		c.JSON(http.StatusForbidden, errorPayload{Error: "this location is not active", Code: codeInactiveQR})
	case errors.Is(err, capture.ErrAlreadyScanned):
		c.JSON(http.StatusConflict, errorPayload{Error: "already scanned here today", Code: codeAlreadyScanned})
	case errors.Is(err, exchange.ErrRewardNotFound):
		c.JSON(http.StatusNotFound, errorPayload{Error: "unknown reward", Code: codeNotFound})
	case errors.Is(err, exchange.ErrRewardInactive):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "this reward is not available", Code: codeRewardInactive})
	case errors.Is(err, exchange.ErrOutOfStock):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "this reward is out of stock", Code: codeOutOfStock})
	case errors.Is(err, ledger.ErrInsufficientPoints):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "not enough points", Code: codeInsufficientPoints})
	case errors.Is(err, exchange.ErrExchangeNotFound):
		c.JSON(http.StatusNotFound, errorPayload{Error: "unknown exchange", Code: codeNotFound})
	case errors.Is(err, exchange.ErrNotPending):
		c.JSON(http.StatusConflict, errorPayload{Error: "exchange was already processed", Code: codeExchangeNotPending})
	case errors.Is(err, exchange.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "status must be used or cancelled", Code: codeInvalidRequest})
	case errors.Is(err, ledger.ErrUnknownUser), errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, errorPayload{Error: "unknown user", Code: codeNotFound})
	case errors.Is(err, locations.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, errorPayload{Error: "unknown location", Code: codeNotFound})
	case errors.Is(err, locations.ErrDuplicateLocation):
		c.JSON(http.StatusBadRequest, errorPayload{Error: "location number is already taken", Code: codeInvalidRequest})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorPayload{Error: "something went wrong", Code: codeInternalError})
	}
}
