package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/creatorstack/storefront/pkg/metrics"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/visits"
)

// VisitHandler handles storefront visit tracking
type VisitHandler struct {
	visits  *visits.Service
	metrics *metrics.Metrics
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(v *visits.Service, m *metrics.Metrics) *VisitHandler {
	return &VisitHandler{
		visits:  v,
		metrics: m,
	}
}

// TrackVisit records a referral visit. Tracking is fire-and-forget: the
// response is success-shaped no matter what so page rendering never blocks.
// POST /api/v1/visits
func (h *VisitHandler) TrackVisit(c echo.Context) error {
	var req models.TrackVisitRequest
	if err := c.Bind(&req); err == nil && req.AffiliateSlug != "" {
		h.visits.Track(
			c.Request().Context(),
			req.AffiliateSlug,
			req.Referrer,
			c.Request().UserAgent(),
			c.RealIP(),
		)
		if h.metrics != nil {
			h.metrics.RecordVisitTracked()
		}
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
