package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/creatorstack/storefront/pkg/api/errors"
	"github.com/creatorstack/storefront/pkg/chat"
	"github.com/creatorstack/storefront/pkg/metrics"
	"github.com/creatorstack/storefront/pkg/middleware"
	"github.com/creatorstack/storefront/pkg/models"
)

// ChatHandler relays assistant prompts behind a per-user request cap
type ChatHandler struct {
	chat      *chat.Service
	limiter   *middleware.FixedWindowLimiter
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewChatHandler creates a new chat handler
func NewChatHandler(c *chat.Service, limiter *middleware.FixedWindowLimiter, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{
		chat:      c,
		limiter:   limiter,
		metrics:   m,
		validator: validator.New(),
	}
}

// Chat proxies one prompt to the assistant
// POST /api/v1/chat
func (h *ChatHandler) Chat(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return apierrors.UnauthorizedError(c, "no user identity in context")
	}

	allowed, retryAfter := h.limiter.Allow(userID)
	if !allowed {
		if h.metrics != nil {
			h.metrics.RecordChatRequest("throttled")
		}
		seconds := int(math.Ceil(retryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
		return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "rate_limit_exceeded",
			Message: "Too many requests. Try again in " + strconv.Itoa(seconds) + " seconds.",
		})
	}

	var req models.ChatRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.chat.Relay(c.Request().Context(), req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordChatRequest("error")
		}
		return apierrors.InternalError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordChatRequest("ok")
	}
	return c.JSON(http.StatusOK, resp)
}
