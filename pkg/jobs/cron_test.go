package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorstack/storefront/pkg/models"
	"github.com/creatorstack/storefront/pkg/store"
)

func TestSetupJobs(t *testing.T) {
	cm := NewCronManager(store.NewMemory(), nil)
	require.NoError(t, cm.SetupJobs())

	cm.Start()
	cm.Stop()
}

func TestVisitPruning_KeepsConvertedAndRecent(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	old := time.Now().Add(-visitRetention - 24*time.Hour)
	require.NoError(t, mem.CreateVisit(ctx, &models.StorefrontVisit{
		ID: "stale", AffiliateSlug: "jane", CreatedAt: old,
	}))
	require.NoError(t, mem.CreateVisit(ctx, &models.StorefrontVisit{
		ID: "converted", AffiliateSlug: "jane", CreatedAt: old, Converted: true,
	}))
	require.NoError(t, mem.CreateVisit(ctx, &models.StorefrontVisit{
		ID: "recent", AffiliateSlug: "jane", CreatedAt: time.Now(),
	}))

	deleted, err := mem.DeleteUnconvertedVisitsBefore(ctx, time.Now().Add(-visitRetention))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining := mem.VisitsForSlug("jane")
	assert.Len(t, remaining, 2)
	for _, v := range remaining {
		assert.NotEqual(t, "stale", v.ID)
	}
}
