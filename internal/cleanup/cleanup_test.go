package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
)

func TestRecordAndSweep(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	store := testsupport.NewFlakyStore()

	url, err := store.Put(ctx, "property_images", "p1/1-0.png", testsupport.PNG, "image/png")
	require.NoError(t, err)
	RecordOrphan(ctx, db, "property_images", "p1/1-0.png", url, models.OrphanReasonPersistFailed, errors.New("insert failed"))
	RecordOrphan(ctx, db, "property_images", "p1/2-0.png", "", models.OrphanReasonDeleteFailed, nil)

	svc := NewService(db, store)

	orphans, err := svc.FindOrphans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, "insert failed", orphans[0].Detail)

	// dry run leaves everything in place
	res, err := svc.Sweep(ctx, DefaultCleanupConfig())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.DeletedCount)
	assert.True(t, store.Has("property_images", "p1/1-0.png"))

	res, err = svc.Sweep(ctx, CleanupConfig{MaxDeletionCount: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Zero(t, res.ErrorCount)
	assert.False(t, store.Has("property_images", "p1/1-0.png"))

	orphans, err = svc.FindOrphans(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["pending"])
	assert.Equal(t, int64(2), stats["cleaned"])
}

func TestSweepSafetyLimitAndErrors(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	store := testsupport.NewFlakyStore()
	svc := NewService(db, store)

	for i := 0; i < 3; i++ {
		RecordOrphan(ctx, db, "b", "x", "", models.OrphanReasonDeleteFailed, nil)
	}

	_, err := svc.Sweep(ctx, CleanupConfig{MaxDeletionCount: 2})
	assert.Error(t, err)

	store.FailDelete = true
	res, err := svc.Sweep(ctx, CleanupConfig{MaxDeletionCount: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ErrorCount)
	assert.Zero(t, res.DeletedCount)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["pending"])
	assert.Equal(t, map[string]int64{models.OrphanReasonDeleteFailed: 3}, stats["pending_by_reason"])
}
