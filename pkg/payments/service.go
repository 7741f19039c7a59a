// Package payments owns the Stripe surface: payment intents, the two webhook
// consumers and the billing portal. Webhook handlers verify signatures,
// translate events and hand settlement off to the settlement service.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	billingportalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/settlement"
	"github.com/creatorstack/storefront/pkg/store"
)

// ErrNoCustomer is returned when a billing portal is requested for an email
// with no known Stripe customer.
var ErrNoCustomer = errors.New("no billing customer for email")

// EventCache deduplicates webhook deliveries by event id. Settlement is
// idempotent on payment id regardless, so the cache is best effort.
type EventCache interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (seen bool, err error)
}

// Config holds Stripe configuration.
type Config struct {
	SecretKey                  string
	WebhookSecret              string
	ContentStudioWebhookSecret string
}

// Service handles Stripe payment operations.
type Service struct {
	store      store.Store
	settlement *settlement.Service
	config     *Config
	events     EventCache
}

// NewService creates a payments service and sets the global Stripe key.
func NewService(st store.Store, settle *settlement.Service, config *Config) *Service {
	stripe.Key = config.SecretKey
	return &Service{store: st, settlement: settle, config: config}
}

// SetEventCache enables best-effort webhook event deduplication.
func (s *Service) SetEventCache(c EventCache) {
	s.events = c
}

// CreatePaymentIntent creates a Stripe payment intent. Amount arrives in
// decimal currency units and is converted to cents for the gateway; metadata
// rides along so the webhook can settle the purchase later.
func (s *Service) CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(math.Round(req.Amount * 100))),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	log.Printf("💳 Payment intent created: %s amount=%.2f %s", pi.ID, req.Amount, currency)

	return &models.PaymentIntentResponse{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// HandleMarketplaceWebhook processes marketplace Stripe events. Signature
// failures are the only hard error; everything after verification is
// acknowledged so Stripe stops redelivering.
func (s *Service) HandleMarketplaceWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	log.Printf("📨 Stripe webhook received: %s (%s)", event.Type, event.ID)

	if s.alreadySeen(ctx, event.ID) {
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "charge.refunded":
		return s.handleChargeRefunded(ctx, event)
	default:
		log.Printf("ℹ️  Unhandled webhook event type: %s", event.Type)
	}

	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	paymentID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		paymentID = sess.PaymentIntent.ID
	}

	in := settlement.Input{
		AppID:              sess.Metadata["app_id"],
		AffiliateProductID: sess.Metadata["affiliate_product_id"],
		BuyerName:          sess.Metadata["buyer_name"],
		BuyerEmail:         sess.Metadata["buyer_email"],
		AffiliateSlug:      sess.Metadata["affiliate_slug"],
		PaymentID:          paymentID,
		Source:             models.ReferralSourceRefLink,
	}
	if sess.CustomerDetails != nil {
		if in.BuyerEmail == "" {
			in.BuyerEmail = sess.CustomerDetails.Email
		}
		if in.BuyerName == "" {
			in.BuyerName = sess.CustomerDetails.Name
		}
	}

	res, err := s.settlement.Settle(ctx, in)
	if err != nil {
		// Malformed metadata is a permanent failure; acknowledge it rather
		// than let Stripe redeliver the same broken event forever.
		if errors.Is(err, settlement.ErrInvalidInput) || errors.Is(err, settlement.ErrProductNotFound) {
			log.Printf("❌ Cannot settle checkout %s: %v", sess.ID, err)
			return nil
		}
		return err
	}
	if res.Duplicate {
		log.Printf("ℹ️  Checkout %s already settled", sess.ID)
	}
	return nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		log.Printf("⚠️  Refunded charge %s has no payment intent, ignoring", ch.ID)
		return nil
	}

	return s.settlement.HandleRefund(ctx, ch.PaymentIntent.ID)
}

// HandleContentStudioWebhook processes subscription lifecycle events from the
// content-studio Stripe account, verified against its own secret.
func (s *Service) HandleContentStudioWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.ContentStudioWebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	log.Printf("📨 Content-studio webhook received: %s (%s)", event.Type, event.ID)

	if s.alreadySeen(ctx, event.ID) {
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleStudioCheckoutCompleted(ctx, event)
	case "customer.subscription.updated", "customer.subscription.deleted":
		return s.handleStudioSubscriptionChanged(ctx, event)
	default:
		log.Printf("ℹ️  Unhandled content-studio event type: %s", event.Type)
	}

	return nil
}

func (s *Service) handleStudioCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if sess.Subscription == nil || sess.Subscription.ID == "" {
		log.Printf("ℹ️  Content-studio checkout %s has no subscription, ignoring", sess.ID)
		return nil
	}

	email := ""
	if sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	sub := &models.UserSubscription{
		ID:                   uuid.NewString(),
		UserEmail:            email,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sess.Subscription.ID,
		Plan:                 sess.Metadata["plan"],
		Status:               "active",
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	log.Printf("✅ Content-studio subscription active: %s email=%s", sess.Subscription.ID, email)
	return nil
}

func (s *Service) handleStudioSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	status := string(sub.Status)
	if event.Type == "customer.subscription.deleted" {
		status = "canceled"
	}

	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	err := s.store.UpdateSubscriptionStatus(ctx, sub.ID, status, periodEnd)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("⚠️  Subscription %s not found, ignoring %s", sub.ID, event.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	log.Printf("🔄 Content-studio subscription %s -> %s", sub.ID, status)
	return nil
}

// CreateBillingPortalSession creates a Stripe billing portal session for the
// customer behind a content-studio subscription.
func (s *Service) CreateBillingPortalSession(ctx context.Context, email, returnURL string) (*models.BillingPortalResponse, error) {
	sub, err := s.store.GetSubscriptionByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCustomer, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}
	if sub.StripeCustomerID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCustomer, email)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}

	sess, err := billingportalsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}

	return &models.BillingPortalResponse{URL: sess.URL}, nil
}

// alreadySeen reports whether this event id was already processed. Cache
// failures are treated as unseen: the settlement layer is idempotent anyway.
func (s *Service) alreadySeen(ctx context.Context, eventID string) bool {
	if s.events == nil || eventID == "" {
		return false
	}
	seen, err := s.events.MarkEventSeen(ctx, eventID, 24*time.Hour)
	if err != nil {
		log.Printf("⚠️  Webhook dedup cache unavailable: %v", err)
		return false
	}
	if seen {
		log.Printf("ℹ️  Duplicate webhook event %s, skipping", eventID)
	}
	return seen
}
