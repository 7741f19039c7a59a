package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creatorstack/storefront/pkg/models"
)

// Memory is an in-process Store used by tests and local development. All
// operations are guarded by one mutex, which also makes AdjustEarnings atomic.
type Memory struct {
	mu sync.Mutex

	apps          map[string]models.App
	products      map[string]models.AffiliateProduct
	affiliates    map[string]models.AffiliateProfile
	purchases     map[string]models.Purchase // keyed by payment_id
	visits        map[string]models.StorefrontVisit
	templates     []models.EmailTemplate
	subscriptions map[string]models.UserSubscription // keyed by stripe_subscription_id
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		apps:          make(map[string]models.App),
		products:      make(map[string]models.AffiliateProduct),
		affiliates:    make(map[string]models.AffiliateProfile),
		purchases:     make(map[string]models.Purchase),
		visits:        make(map[string]models.StorefrontVisit),
		subscriptions: make(map[string]models.UserSubscription),
	}
}

// SeedApp, SeedAffiliateProduct, SeedAffiliate and SeedEmailTemplate populate
// catalog fixtures for tests.
func (m *Memory) SeedApp(a models.App) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[a.ID] = a
}

func (m *Memory) SeedAffiliateProduct(p models.AffiliateProduct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) SeedAffiliate(a models.AffiliateProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affiliates[a.ID] = a
}

func (m *Memory) SeedEmailTemplate(t models.EmailTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
}

func (m *Memory) GetApp(_ context.Context, id string) (*models.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetAffiliateProduct(_ context.Context, id string) (*models.AffiliateProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GetAffiliateBySlug(_ context.Context, slug string) (*models.AffiliateProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.affiliates {
		if a.Slug == slug {
			af := a
			return &af, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetAffiliateByID(_ context.Context, id string) (*models.AffiliateProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.affiliates[id]
	if !ok {
		return nil, ErrNotFound
	}
	af := a
	return &af, nil
}

func (m *Memory) AdjustEarnings(_ context.Context, affiliateID string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.affiliates[affiliateID]
	if !ok {
		return ErrNotFound
	}
	a.TotalEarnings += delta
	if a.TotalEarnings < 0 {
		a.TotalEarnings = 0
	}
	m.affiliates[affiliateID] = a
	return nil
}

func (m *Memory) CreatePurchase(_ context.Context, p *models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.purchases[p.PaymentID]; exists {
		return ErrDuplicatePayment
	}
	m.purchases[p.PaymentID] = *p
	return nil
}

func (m *Memory) GetPurchaseByPaymentID(_ context.Context, paymentID string) (*models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	pu := p
	return &pu, nil
}

func (m *Memory) MarkPurchaseRefunded(_ context.Context, purchaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, p := range m.purchases {
		if p.ID == purchaseID {
			p.PaymentStatus = models.PaymentStatusRefunded
			m.purchases[key] = p
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) CreateVisit(_ context.Context, v *models.StorefrontVisit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits[v.ID] = *v
	return nil
}

func (m *Memory) ConvertVisit(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []models.StorefrontVisit
	for _, v := range m.visits {
		if v.AffiliateSlug == slug && !v.Converted {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	oldest := candidates[0]
	oldest.Converted = true
	m.visits[oldest.ID] = oldest
	return true, nil
}

func (m *Memory) DeleteUnconvertedVisitsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, v := range m.visits {
		if !v.Converted && v.CreatedAt.Before(cutoff) {
			delete(m.visits, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetActiveEmailTemplate(_ context.Context, trigger string) (*models.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Trigger == trigger && t.IsActive {
			tpl := t
			return &tpl, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpsertSubscription(_ context.Context, s *models.UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subscriptions[s.StripeSubscriptionID]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}
	m.subscriptions[s.StripeSubscriptionID] = *s
	return nil
}

func (m *Memory) GetSubscriptionByEmail(_ context.Context, email string) (*models.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.UserSubscription
	for _, s := range m.subscriptions {
		if s.UserEmail != email {
			continue
		}
		sub := s
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = &sub
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *Memory) UpdateSubscriptionStatus(_ context.Context, stripeSubscriptionID, status string, periodEnd time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[stripeSubscriptionID]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.CurrentPeriodEnd = periodEnd
	m.subscriptions[stripeSubscriptionID] = s
	return nil
}

// VisitsForSlug returns copies of all visits for a slug, for test assertions.
func (m *Memory) VisitsForSlug(slug string) []models.StorefrontVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StorefrontVisit
	for _, v := range m.visits {
		if v.AffiliateSlug == slug {
			out = append(out, v)
		}
	}
	return out
}
