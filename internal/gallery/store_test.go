package gallery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
)

// seedGallery creates A (primary), B and C with orders 0, 1, 2
func seedGallery(t *testing.T, s *Store, propertyID string) (a, b, c *models.PropertyImage) {
	t.Helper()
	ctx := context.Background()
	var err error
	a, err = s.Create(ctx, propertyID, "http://test.local/files/property_images/"+propertyID+"/a.png", 0, true)
	require.NoError(t, err)
	b, err = s.Create(ctx, propertyID, "http://test.local/files/property_images/"+propertyID+"/b.png", 1, false)
	require.NoError(t, err)
	c, err = s.Create(ctx, propertyID, "http://test.local/files/property_images/"+propertyID+"/c.png", 2, false)
	require.NoError(t, err)
	return a, b, c
}

func propertyImageURL(t *testing.T, db *gorm.DB, propertyID string) *string {
	t.Helper()
	var p models.Property
	require.NoError(t, db.First(&p, "id = ?", propertyID).Error)
	return p.ImageURL
}

func primaryIDs(images []models.PropertyImage) []string {
	var ids []string
	for _, img := range images {
		if img.IsPrimary {
			ids = append(ids, img.ID)
		}
	}
	return ids
}

func imageIDs(images []models.PropertyImage) []string {
	ids := make([]string, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	return ids
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Altbau")
	s := NewStore(db)

	a, b, c := seedGallery(t, s, p.ID)
	assert.True(t, a.IsPrimary)
	assert.False(t, b.IsPrimary)
	assert.False(t, c.IsPrimary)

	url := propertyImageURL(t, db, p.ID)
	require.NotNil(t, url)
	assert.Equal(t, a.ImageURL, *url)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, imageIDs(images))

	maxOrder, hasPrimary, err := s.nextSlot(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxOrder)
	assert.True(t, hasPrimary)
}

func TestStoreCreateWithoutPrimaryBecomesPrimary(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Loft")
	s := NewStore(db)

	maxOrder, hasPrimary, err := s.nextSlot(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, maxOrder)
	assert.False(t, hasPrimary)

	img, err := s.Create(ctx, p.ID, "http://test.local/files/property_images/x.png", 0, false)
	require.NoError(t, err)
	assert.True(t, img.IsPrimary)
}

func TestStoreCreateUnknownProperty(t *testing.T) {
	db := testsupport.NewDB(t)
	s := NewStore(db)

	_, err := s.Create(context.Background(), "missing", "http://x/y.png", 0, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStoreSetPrimary(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Villa")
	s := NewStore(db)
	_, _, c := seedGallery(t, s, p.ID)

	img, err := s.SetPrimary(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, img.IsPrimary)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, primaryIDs(images))
	assert.Equal(t, c.ImageURL, *propertyImageURL(t, db, p.ID))

	// idempotent
	_, err = s.SetPrimary(ctx, c.ID)
	require.NoError(t, err)
	images, err = s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, primaryIDs(images))

	_, err = s.SetPrimary(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStoreReorder(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Penthouse")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	require.NoError(t, s.Reorder(ctx, p.ID, []string{c.ID, a.ID, b.ID}))

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, imageIDs(images))
	for i, img := range images {
		assert.Equal(t, i, img.DisplayOrder)
	}
	// primary is untouched by reordering
	assert.Equal(t, []string{a.ID}, primaryIDs(images))
}

func TestStoreReorderPartialFailure(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Reihenhaus")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	err := s.Reorder(ctx, p.ID, []string{c.ID, "ghost", a.ID, b.ID})
	var partial *apperr.PartialUpdateError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"ghost"}, partial.FailedIDs)
	assert.Equal(t, 3, partial.Applied)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, imageIDs(images))
}

func TestStoreReorderRowDeletedConcurrently(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Reihenhaus")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	// b disappears after the id list was read, right before the first update
	deleted := false
	err := db.Callback().Update().Before("gorm:update").Register("test:delete_b", func(tx *gorm.DB) {
		if deleted || tx.Statement.Table != "property_images" {
			return
		}
		deleted = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context, "DELETE FROM property_images WHERE id = ?", b.ID)
		if err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)

	err = s.Reorder(ctx, p.ID, []string{c.ID, a.ID, b.ID})
	var partial *apperr.PartialUpdateError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{b.ID}, partial.FailedIDs)
	assert.Equal(t, 2, partial.Applied)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, a.ID}, imageIDs(images))
}

func TestStoreReorderUpdateFailure(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Bungalow")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	failUpdatesOn(t, db, "property_images")

	err := s.Reorder(ctx, p.ID, []string{c.ID, a.ID, b.ID})
	var partial *apperr.PartialUpdateError
	require.True(t, errors.As(err, &partial))
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, partial.FailedIDs)
	assert.Zero(t, partial.Applied)
	assert.ErrorIs(t, err, testsupport.ErrInjected)
}

func TestStoreDeleteNonPrimary(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Stadthaus")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	deleted, err := s.Delete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)
	assert.False(t, deleted.IsPrimary)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, imageIDs(images))
	assert.Equal(t, 0, images[0].DisplayOrder)
	assert.Equal(t, 2, images[1].DisplayOrder)
	assert.Equal(t, []string{a.ID}, primaryIDs(images))
}

func TestStoreDeletePrimaryPromotesNext(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Chalet")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	deleted, err := s.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsPrimary)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, c.ID}, imageIDs(images))
	assert.Equal(t, []string{b.ID}, primaryIDs(images))
	assert.Equal(t, b.ImageURL, *propertyImageURL(t, db, p.ID))
}

func TestStoreDeleteLastClearsPropertyImage(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Einzimmer")
	s := NewStore(db)

	img, err := s.Create(ctx, p.ID, "http://test.local/files/property_images/only.png", 0, true)
	require.NoError(t, err)
	require.NotNil(t, propertyImageURL(t, db, p.ID))

	_, err = s.Delete(ctx, img.ID)
	require.NoError(t, err)
	assert.Nil(t, propertyImageURL(t, db, p.ID))

	_, err = s.Delete(ctx, img.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStoreExactlyOnePrimary(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Maisonette")
	s := NewStore(db)
	a, b, c := seedGallery(t, s, p.ID)

	steps := []func() error{
		func() error { _, err := s.SetPrimary(ctx, b.ID); return err },
		func() error { _, err := s.Create(ctx, p.ID, "http://test.local/files/property_images/d.png", 3, true); return err },
		func() error { return s.Reorder(ctx, p.ID, []string{c.ID, b.ID, a.ID}) },
		func() error { _, err := s.SetPrimary(ctx, a.ID); return err },
		func() error { _, err := s.Delete(ctx, a.ID); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		images, err := s.List(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, primaryIDs(images), 1, "step %d", i)
	}
}

// failUpdatesOn makes every UPDATE against table fail
func failUpdatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(testsupport.ErrInjected)
		}
	})
	require.NoError(t, err)
}

// failCreatesOn makes every INSERT against table fail
func failCreatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_create", func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(testsupport.ErrInjected)
		}
	})
	require.NoError(t, err)
}

func TestStoreRepairPrimaries(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	p := testsupport.SeedProperty(t, db, "Zinshaus")
	healthy := testsupport.SeedProperty(t, db, "Neubau")
	s := NewStore(db)
	a, b, _ := seedGallery(t, s, p.ID)
	seedGallery(t, s, healthy.ID)

	// simulate a gallery left without a primary
	require.NoError(t, db.Model(&models.PropertyImage{}).Where("id = ?", a.ID).Update("is_primary", false).Error)
	require.NoError(t, s.Reorder(ctx, p.ID, []string{b.ID, a.ID}))

	n, err := s.RepairPrimaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	images, err := s.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, primaryIDs(images))
	assert.Equal(t, b.ImageURL, *propertyImageURL(t, db, p.ID))

	n, err = s.RepairPrimaries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
