// Package settlement records completed purchases and their commission
// bookkeeping, and reverses the bookkeeping on refunds.
//
// Writing the Purchase row is the primary effect; everything after it
// (earnings credit, visit conversion, confirmation email) is secondary and
// must never fail the settlement. The entity store offers no cross-document
// transaction, so a purchase can land with degraded bookkeeping and that is
// an accepted terminal state.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/creatorstack/storefront/pkg/commission"
	"github.com/creatorstack/storefront/pkg/email"
	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/store"
)

var (
	// ErrProductNotFound is returned when neither product reference resolves.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidInput is returned when the product reference is missing or ambiguous.
	ErrInvalidInput = errors.New("exactly one of app_id or affiliate_product_id is required")
)

// EmailSender abstracts the confirmation email side effect.
type EmailSender interface {
	SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error
}

// Service orchestrates purchase settlement and refund reversal.
type Service struct {
	store store.Store
	email EmailSender
}

// NewService creates a settlement service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// SetEmailSender sets the sender used for purchase confirmations. Without one,
// the email step is skipped.
func (s *Service) SetEmailSender(e EmailSender) {
	s.email = e
}

// Input carries everything a settlement needs, whichever entry point produced it.
type Input struct {
	AppID              string
	AffiliateProductID string
	BuyerName          string
	BuyerEmail         string
	AffiliateSlug      string
	PaymentID          string
	// Source distinguishes a client-supplied slug (storefront) from webhook
	// metadata (ref_link). Ignored when no affiliate is attributed.
	Source models.ReferralSource
}

// Result is the settlement outcome.
type Result struct {
	Purchase         *models.Purchase
	CommissionEarned float64
	// Duplicate is true when the payment id was already settled and the
	// existing purchase is returned unchanged.
	Duplicate bool
}

// Settle runs the full settlement pipeline for one checkout.
func (s *Service) Settle(ctx context.Context, in Input) (*Result, error) {
	if in.PaymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required", ErrInvalidInput)
	}

	product, err := s.resolveProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	// Webhook providers redeliver events; an already-settled payment id is a
	// successful no-op, never a second row.
	if existing, err := s.store.GetPurchaseByPaymentID(ctx, in.PaymentID); err == nil {
		log.Printf("ℹ️  Purchase already settled for payment %s, skipping", in.PaymentID)
		return &Result{Purchase: existing, CommissionEarned: existing.CommissionAmount, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing purchase: %w", err)
	}

	affiliate, source := s.resolveAffiliate(ctx, product, in)

	var overrideRate *float64
	if affiliate != nil {
		overrideRate = affiliate.CommissionRate
	}
	comm, err := commission.Resolve(product.price, product.rate, overrideRate)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commission: %w", err)
	}

	purchase := &models.Purchase{
		ID:                 uuid.NewString(),
		PaymentID:          in.PaymentID,
		AppID:              product.appID,
		AffiliateProductID: product.productID,
		BuyerName:          in.BuyerName,
		BuyerEmail:         in.BuyerEmail,
		Amount:             product.price,
		CommissionRate:     comm.Rate,
		CommissionAmount:   comm.Amount,
		PaymentStatus:      models.PaymentStatusCompleted,
		ReferralSource:     source,
		ProductName:        product.name,
		CreatedAt:          time.Now().UTC(),
	}
	if affiliate != nil {
		purchase.AffiliateID = &affiliate.ID
		slug := affiliate.Slug
		purchase.AffiliateSlug = &slug
	} else if in.AffiliateSlug != "" {
		slug := in.AffiliateSlug
		purchase.AffiliateSlug = &slug
	}

	if err := s.store.CreatePurchase(ctx, purchase); err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) {
			// Lost the race against a concurrent delivery of the same event.
			existing, getErr := s.store.GetPurchaseByPaymentID(ctx, in.PaymentID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrently settled purchase: %w", getErr)
			}
			return &Result{Purchase: existing, CommissionEarned: existing.CommissionAmount, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}
	log.Printf("✅ Purchase settled: payment=%s product=%q amount=%.2f commission=%.2f",
		in.PaymentID, product.name, purchase.Amount, comm.Amount)

	// Secondary effects from here on: log and continue on failure.
	if affiliate != nil {
		if err := s.store.AdjustEarnings(ctx, affiliate.ID, comm.Amount); err != nil {
			log.Printf("⚠️  Failed to credit %.2f to affiliate %s: %v", comm.Amount, affiliate.Slug, err)
		}
		if _, err := s.store.ConvertVisit(ctx, affiliate.Slug); err != nil {
			log.Printf("⚠️  Failed to mark visit converted for %s: %v", affiliate.Slug, err)
		}
	}

	s.sendConfirmation(ctx, purchase)

	return &Result{Purchase: purchase, CommissionEarned: comm.Amount}, nil
}

// HandleRefund reverses the bookkeeping for a refunded payment. Unknown
// payment ids and repeat deliveries are acknowledged as no-ops so the gateway
// never retries indefinitely.
func (s *Service) HandleRefund(ctx context.Context, paymentIntentID string) error {
	purchase, err := s.store.GetPurchaseByPaymentID(ctx, paymentIntentID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("ℹ️  Refund for unknown payment %s, ignoring", paymentIntentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up purchase for refund: %w", err)
	}

	// A redelivered refund event must not subtract the commission twice.
	if purchase.PaymentStatus == models.PaymentStatusRefunded {
		log.Printf("ℹ️  Purchase %s already refunded, ignoring repeat event", purchase.ID)
		return nil
	}

	if err := s.store.MarkPurchaseRefunded(ctx, purchase.ID); err != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", err)
	}

	if purchase.AffiliateID != nil {
		if err := s.store.AdjustEarnings(ctx, *purchase.AffiliateID, -purchase.CommissionAmount); err != nil {
			log.Printf("⚠️  Failed to deduct %.2f from affiliate %s: %v",
				purchase.CommissionAmount, *purchase.AffiliateID, err)
		}
	}

	log.Printf("✅ Refund processed: payment=%s purchase=%s", paymentIntentID, purchase.ID)
	return nil
}

// resolvedProduct is the normalized view of either catalog collection.
type resolvedProduct struct {
	appID     *string
	productID *string
	name      string
	price     float64
	rate      *float64
	// ownerID is set for affiliate products: the sale is explicitly
	// attributed to the owning affiliate, slug or not.
	ownerID string
}

func (s *Service) resolveProduct(ctx context.Context, in Input) (*resolvedProduct, error) {
	switch {
	case in.AppID != "" && in.AffiliateProductID != "":
		return nil, ErrInvalidInput
	case in.AppID != "":
		app, err := s.store.GetApp(ctx, in.AppID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: app %s", ErrProductNotFound, in.AppID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve app: %w", err)
		}
		id := app.ID
		return &resolvedProduct{appID: &id, name: app.Name, price: app.Price, rate: app.CommissionRate}, nil
	case in.AffiliateProductID != "":
		p, err := s.store.GetAffiliateProduct(ctx, in.AffiliateProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: affiliate product %s", ErrProductNotFound, in.AffiliateProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve affiliate product: %w", err)
		}
		id := p.ID
		return &resolvedProduct{productID: &id, name: p.Name, price: p.Price, ownerID: p.AffiliateID}, nil
	default:
		return nil, ErrInvalidInput
	}
}

// resolveAffiliate picks the attribution for the sale. An explicit product
// owner wins over a referral slug; a slug that matches no profile is not an
// error, the sale simply proceeds unattributed.
func (s *Service) resolveAffiliate(ctx context.Context, product *resolvedProduct, in Input) (*models.AffiliateProfile, models.ReferralSource) {
	if product.ownerID != "" {
		aff, err := s.store.GetAffiliateByID(ctx, product.ownerID)
		if err == nil {
			source := in.Source
			if source == "" {
				source = models.ReferralSourceDirect
			}
			return aff, source
		}
		log.Printf("⚠️  Product owner %s not found: %v", product.ownerID, err)
	}

	if in.AffiliateSlug == "" {
		return nil, models.ReferralSourceDirect
	}

	aff, err := s.store.GetAffiliateBySlug(ctx, in.AffiliateSlug)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("⚠️  Affiliate lookup failed for slug %s: %v", in.AffiliateSlug, err)
		}
		return nil, models.ReferralSourceDirect
	}

	source := in.Source
	if source == "" {
		source = models.ReferralSourceStorefront
	}
	return aff, source
}

// sendConfirmation renders the active purchase_complete template, or the
// built-in fallback when none is configured, and sends it. Any failure is
// swallowed: the purchase is already durable.
func (s *Service) sendConfirmation(ctx context.Context, p *models.Purchase) {
	if s.email == nil {
		return
	}

	subject, html, plain := buildPurchaseConfirmationEmail(p.BuyerName, p.ProductName, p.Amount)

	if tpl, err := s.store.GetActiveEmailTemplate(ctx, models.EmailTriggerPurchaseComplete); err == nil {
		subject = email.RenderTemplate(tpl.Subject, p.BuyerName, p.ProductName, p.Amount)
		plain = email.RenderTemplate(tpl.Body, p.BuyerName, p.ProductName, p.Amount)
		html = plain
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("⚠️  Failed to load purchase_complete template: %v", err)
	}

	if err := s.email.SendEmail(p.BuyerEmail, p.BuyerName, subject, html, plain); err != nil {
		log.Printf("⚠️  Failed to send confirmation email to %s: %v", p.BuyerEmail, err)
	}
}
