package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/creatorstack/storefront/pkg/api/errors"
	"github.com/creatorstack/storefront/pkg/metrics"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/settlement"
)

// PurchaseHandler handles client-invoked purchase settlement
type PurchaseHandler struct {
	settlement *settlement.Service
	metrics    *metrics.Metrics
	validator  *validator.Validate
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(settle *settlement.Service, m *metrics.Metrics) *PurchaseHandler {
	return &PurchaseHandler{
		settlement: settle,
		metrics:    m,
		validator:  validator.New(),
	}
}

// CompletePurchase settles a client-confirmed payment
// POST /api/v1/purchases/complete
func (h *PurchaseHandler) CompletePurchase(c echo.Context) error {
	var req models.CompletePurchaseRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	res, err := h.settlement.Settle(c.Request().Context(), settlement.Input{
		AppID:              req.AppID,
		AffiliateProductID: req.AffiliateProductID,
		BuyerName:          req.BuyerName,
		BuyerEmail:         req.BuyerEmail,
		AffiliateSlug:      req.AffiliateSlug,
		PaymentID:          req.PaymentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidInput):
			return apierrors.BadRequestError(c, "exactly one of app_id or affiliate_product_id is required")
		case errors.Is(err, settlement.ErrProductNotFound):
			return apierrors.NotFoundError(c, "product")
		default:
			return apierrors.StoreError(c, err)
		}
	}

	if h.metrics != nil && !res.Duplicate {
		h.metrics.RecordPurchaseSettled(string(res.Purchase.ReferralSource), res.CommissionEarned)
	}

	return c.JSON(http.StatusOK, models.CompletePurchaseResponse{
		Success:          true,
		PurchaseID:       res.Purchase.ID,
		CommissionEarned: res.CommissionEarned,
	})
}
