// Package store is the entity-store client. Collections are independent
// documents: there is no cross-document transaction, so every multi-record
// flow in the services above tolerates partial application. The one atomicity
// guarantee implementations must provide is AdjustEarnings, which applies its
// delta as a single atomic operation floored at zero.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/creatorstack/storefront/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicatePayment is returned when a purchase already exists for the
	// payment id. Callers treat it as a successful no-op.
	ErrDuplicatePayment = errors.New("purchase already recorded for payment id")
)

// Store is the entity-store surface consumed by the settlement, visit and
// subscription services.
type Store interface {
	// Catalog (read-only for the core).
	GetApp(ctx context.Context, id string) (*models.App, error)
	GetAffiliateProduct(ctx context.Context, id string) (*models.AffiliateProduct, error)

	// Affiliates.
	GetAffiliateBySlug(ctx context.Context, slug string) (*models.AffiliateProfile, error)
	GetAffiliateByID(ctx context.Context, id string) (*models.AffiliateProfile, error)
	// AdjustEarnings atomically applies delta to the affiliate's running
	// total, clamped to a minimum of zero.
	AdjustEarnings(ctx context.Context, affiliateID string, delta float64) error

	// Purchases.
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error)
	MarkPurchaseRefunded(ctx context.Context, purchaseID string) error

	// Storefront visits.
	CreateVisit(ctx context.Context, v *models.StorefrontVisit) error
	// ConvertVisit flips one unconverted visit for the slug to converted and
	// reports whether one was found. Finding none is not an error.
	ConvertVisit(ctx context.Context, slug string) (bool, error)
	// DeleteUnconvertedVisitsBefore prunes stale unconverted visits and
	// returns how many were removed.
	DeleteUnconvertedVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Email templates.
	GetActiveEmailTemplate(ctx context.Context, trigger string) (*models.EmailTemplate, error)

	// Content-studio subscriptions.
	UpsertSubscription(ctx context.Context, s *models.UserSubscription) error
	GetSubscriptionByEmail(ctx context.Context, email string) (*models.UserSubscription, error)
	UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, periodEnd time.Time) error
}
