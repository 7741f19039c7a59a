package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/creatorstack/storefront/pkg/api/errors"
	"github.com/creatorstack/storefront/pkg/email"
	"github.com/creatorstack/storefront/pkg/metrics"
	"github.com/creatorstack/storefront/pkg/models"
)

// EmailHandler exposes the retrying email relay
type EmailHandler struct {
	email     *email.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(e *email.Service, m *metrics.Metrics) *EmailHandler {
	return &EmailHandler{
		email:     e,
		metrics:   m,
		validator: validator.New(),
	}
}

// SendEmail attempts delivery with retries and always answers 200. A failed
// send degrades to a warning; callers treat email as best effort.
// POST /api/v1/emails/send
func (h *EmailHandler) SendEmail(c echo.Context) error {
	var req models.SendEmailRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	sent := h.email.SendWithRetry(req.To, req.Subject, req.Body, req.FromName)
	if h.metrics != nil {
		h.metrics.RecordEmailSent(sent)
	}

	if !sent {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"warning": "Email could not be delivered after retries",
		})
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Email sent"})
}
