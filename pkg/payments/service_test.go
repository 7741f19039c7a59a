package payments

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/settlement"
	"github.com/creatorstack/storefront/pkg/store"
)

const (
	testWebhookSecret = "whsec_marketplace_test"
	testStudioSecret  = "whsec_studio_test"
)

func newTestService(mem *store.Memory) *Service {
	return NewService(mem, settlement.NewService(mem), &Config{
		SecretKey:                  "sk_test_123",
		WebhookSecret:              testWebhookSecret,
		ContentStudioWebhookSecret: testStudioSecret,
	})
}

// signPayload builds a Stripe-Signature header the way stripe-cli would.
func signPayload(payload []byte, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

type memEventCache struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (c *memEventCache) MarkEventSeen(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	prior := c.seen[eventID]
	c.seen[eventID] = true
	return prior, nil
}

func checkoutEvent(eventID, paymentIntentID, appID, slug string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"payment_intent": %q,
				"metadata": {"app_id": %q, "affiliate_slug": %q},
				"customer_details": {"email": "buyer@example.com", "name": "Buyer One"}
			}
		}
	}`, eventID, paymentIntentID, appID, slug))
}

func TestHandleMarketplaceWebhook_BadSignature(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	payload := checkoutEvent("evt_1", "pi_1", "a1", "")
	err := svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, "whsec_wrong"))
	require.Error(t, err)

	_, lookupErr := mem.GetPurchaseByPaymentID(context.Background(), "pi_1")
	assert.ErrorIs(t, lookupErr, store.ErrNotFound)
}

func TestHandleMarketplaceWebhook_CheckoutCompletedSettles(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedApp(models.App{ID: "a1", Name: "LaunchKit", Price: 100})
	mem.SeedAffiliate(models.AffiliateProfile{ID: "aff-1", Slug: "jane-123"})
	svc := newTestService(mem)

	payload := checkoutEvent("evt_2", "pi_2", "a1", "jane-123")
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))

	p, err := mem.GetPurchaseByPaymentID(context.Background(), "pi_2")
	require.NoError(t, err)
	assert.Equal(t, "Buyer One", p.BuyerName)
	assert.Equal(t, "buyer@example.com", p.BuyerEmail)
	assert.Equal(t, 100.0, p.Amount)
	assert.Equal(t, 30.0, p.CommissionAmount)
	assert.Equal(t, models.ReferralSourceRefLink, p.ReferralSource)

	aff, err := mem.GetAffiliateByID(context.Background(), "aff-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, aff.TotalEarnings)
}

func TestHandleMarketplaceWebhook_RedeliveredCheckoutIsNoOp(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedApp(models.App{ID: "a1", Name: "LaunchKit", Price: 100})
	mem.SeedAffiliate(models.AffiliateProfile{ID: "aff-1", Slug: "jane-123"})
	svc := newTestService(mem)

	payload := checkoutEvent("evt_3", "pi_3", "a1", "jane-123")
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))

	aff, err := mem.GetAffiliateByID(context.Background(), "aff-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, aff.TotalEarnings)
}

func TestHandleMarketplaceWebhook_EventCacheShortCircuits(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedApp(models.App{ID: "a1", Name: "LaunchKit", Price: 100})
	svc := newTestService(mem)
	cache := &memEventCache{}
	svc.SetEventCache(cache)

	payload := checkoutEvent("evt_4", "pi_4", "a1", "")
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))

	assert.True(t, cache.seen["evt_4"])
	_, err := mem.GetPurchaseByPaymentID(context.Background(), "pi_4")
	assert.NoError(t, err)
}

func TestHandleMarketplaceWebhook_CacheFailureFallsThrough(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedApp(models.App{ID: "a1", Name: "LaunchKit", Price: 100})
	svc := newTestService(mem)
	svc.SetEventCache(&memEventCache{err: fmt.Errorf("redis down")})

	payload := checkoutEvent("evt_5", "pi_5", "a1", "")
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))

	_, err := mem.GetPurchaseByPaymentID(context.Background(), "pi_5")
	assert.NoError(t, err)
}

func TestHandleMarketplaceWebhook_UnknownProductIsAcked(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	payload := checkoutEvent("evt_6", "pi_6", "a_missing", "")
	assert.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))
}

func TestHandleMarketplaceWebhook_ChargeRefundedReverses(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedApp(models.App{ID: "a1", Name: "LaunchKit", Price: 100})
	mem.SeedAffiliate(models.AffiliateProfile{ID: "aff-1", Slug: "jane-123", TotalEarnings: 50})
	svc := newTestService(mem)

	checkout := checkoutEvent("evt_7", "pi_7", "a1", "jane-123")
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), checkout, signPayload(checkout, testWebhookSecret)))

	refund := []byte(`{
		"id": "evt_8",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_7"}}
	}`)
	require.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), refund, signPayload(refund, testWebhookSecret)))

	p, err := mem.GetPurchaseByPaymentID(context.Background(), "pi_7")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, p.PaymentStatus)

	aff, _ := mem.GetAffiliateByID(context.Background(), "aff-1")
	assert.Equal(t, 50.0, aff.TotalEarnings)
}

func TestHandleMarketplaceWebhook_RefundForUnknownPaymentIsAcked(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	refund := []byte(`{
		"id": "evt_9",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_2", "payment_intent": "pi_unknown"}}
	}`)
	assert.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), refund, signPayload(refund, testWebhookSecret)))
}

func TestHandleMarketplaceWebhook_UnhandledTypeIsAcked(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	payload := []byte(`{"id": "evt_10", "type": "payment_intent.created", "data": {"object": {}}}`)
	assert.NoError(t, svc.HandleMarketplaceWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)))
}

func TestHandleContentStudioWebhook_SecretsAreNotInterchangeable(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	payload := []byte(`{"id": "evt_11", "type": "checkout.session.completed", "data": {"object": {"id": "cs_s1"}}}`)
	// Signed with the marketplace secret, delivered to the studio consumer.
	err := svc.HandleContentStudioWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.Error(t, err)
}

func TestHandleContentStudioWebhook_SubscriptionLifecycle(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	created := []byte(`{
		"id": "evt_12",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_s2",
				"customer": "cus_1",
				"subscription": "sub_1",
				"metadata": {"plan": "pro"},
				"customer_details": {"email": "studio@example.com"}
			}
		}
	}`)
	require.NoError(t, svc.HandleContentStudioWebhook(context.Background(), created, signPayload(created, testStudioSecret)))

	sub, err := mem.GetSubscriptionByEmail(context.Background(), "studio@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	assert.Equal(t, "pro", sub.Plan)
	assert.Equal(t, "active", sub.Status)

	deleted := []byte(`{
		"id": "evt_13",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "status": "canceled"}}
	}`)
	require.NoError(t, svc.HandleContentStudioWebhook(context.Background(), deleted, signPayload(deleted, testStudioSecret)))

	sub, err = mem.GetSubscriptionByEmail(context.Background(), "studio@example.com")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
}

func TestHandleContentStudioWebhook_UpdateForUnknownSubscriptionIsAcked(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	payload := []byte(`{
		"id": "evt_14",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_missing", "status": "past_due"}}
	}`)
	assert.NoError(t, svc.HandleContentStudioWebhook(context.Background(), payload, signPayload(payload, testStudioSecret)))
}

func TestCreateBillingPortalSession_UnknownEmail(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	_, err := svc.CreateBillingPortalSession(context.Background(), "nobody@example.com", "https://example.com/account")
	assert.ErrorIs(t, err, ErrNoCustomer)
}
