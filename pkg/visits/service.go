// Package visits records anonymized storefront referral visits. Tracking is
// fire-and-forget: callers always see success, and the raw visitor IP is
// never stored.
package visits

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/store"
)

// Service handles visit tracking.
type Service struct {
	store store.Store
}

// NewService creates a visit tracker.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Track persists one unconverted visit for the slug. Internal failures are
// logged and swallowed so page rendering is never blocked.
func (s *Service) Track(ctx context.Context, slug, referrer, userAgent, callerIP string) {
	v := &models.StorefrontVisit{
		ID:            uuid.NewString(),
		AffiliateSlug: slug,
		VisitorIP:     HashIP(callerIP),
		Referrer:      referrer,
		UserAgent:     userAgent,
		Converted:     false,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateVisit(ctx, v); err != nil {
		log.Printf("⚠️  Failed to track visit for %s: %v", slug, err)
	}
}

// HashIP irreversibly anonymizes a visitor address: SHA-256, first 16 hex
// characters kept. An absent address hashes to the literal "unknown".
func HashIP(ip string) string {
	if ip == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:16]
}
