package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/creatorstack/storefront/pkg/api/errors"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/payments"
)

// BillingHandler opens gateway billing portal sessions
type BillingHandler struct {
	payments  *payments.Service
	returnURL string
	validator *validator.Validate
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(p *payments.Service, returnURL string) *BillingHandler {
	return &BillingHandler{
		payments:  p,
		returnURL: returnURL,
		validator: validator.New(),
	}
}

// CreatePortalSession opens a billing portal for a subscriber
// POST /api/v1/billing/portal
func (h *BillingHandler) CreatePortalSession(c echo.Context) error {
	var req models.BillingPortalRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.payments.CreateBillingPortalSession(c.Request().Context(), req.UserEmail, h.returnURL)
	if err != nil {
		if errors.Is(err, payments.ErrNoCustomer) {
			return apierrors.NotFoundError(c, "subscription")
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
