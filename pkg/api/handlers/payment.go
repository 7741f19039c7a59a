package handlers

import (
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/creatorstack/storefront/pkg/api/errors"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/payments"
)

// PaymentHandler handles payment intent creation
type PaymentHandler struct {
	payments  *payments.Service
	validator *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(p *payments.Service) *PaymentHandler {
	return &PaymentHandler{
		payments:  p,
		validator: validator.New(),
	}
}

// CreateIntent creates a gateway payment intent
// POST /api/v1/payments/intent
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req models.CreatePaymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.payments.CreatePaymentIntent(c.Request().Context(), req)
	if err != nil {
		// Gateway rejections surface as a 400; the client retries with
		// corrected card details, not the same request.
		log.Printf("⚠️  Payment intent creation failed: %v", err)
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "payment_intent_failed",
			Message: "Could not create payment intent",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"paymentIntent": resp,
	})
}
