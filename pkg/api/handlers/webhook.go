package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/creatorstack/storefront/pkg/metrics"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/payments"
)

// WebhookHandler handles the two Stripe webhook consumers
type WebhookHandler struct {
	payments *payments.Service
	metrics  *metrics.Metrics
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(p *payments.Service, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		payments: p,
		metrics:  m,
	}
}

// StripeWebhook receives marketplace gateway events
// POST /api/v1/webhooks/stripe
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Could not read webhook payload",
		})
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	err = h.payments.HandleMarketplaceWebhook(c.Request().Context(), payload, signature)
	if h.metrics != nil {
		h.metrics.RecordWebhookEvent("marketplace", "all", err == nil)
	}
	if err != nil {
		// Signature failures and unmarshal errors both land here; a 400 tells
		// Stripe the delivery itself was bad.
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "webhook_error",
			Message: "Webhook processing failed",
		})
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// StripeWebhookContentStudio receives content-studio subscription events
// POST /api/v1/webhooks/stripe/content-studio
func (h *WebhookHandler) StripeWebhookContentStudio(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Could not read webhook payload",
		})
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	err = h.payments.HandleContentStudioWebhook(c.Request().Context(), payload, signature)
	if h.metrics != nil {
		h.metrics.RecordWebhookEvent("content_studio", "all", err == nil)
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "webhook_error",
			Message: "Webhook processing failed",
		})
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
