package gallery

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// Store persists gallery images and keeps properties.image_url in step with
// the primary image. Create, SetPrimary and Delete each run in one transaction
// that locks the owning property row.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on db
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// List returns the images of a property in display order
func (s *Store) List(ctx context.Context, propertyID string) ([]models.PropertyImage, error) {
	var images []models.PropertyImage
	err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("display_order ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&images).Error
	return images, err
}

// PropertyExists reports whether the owning property is present
func (s *Store) PropertyExists(ctx context.Context, propertyID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Property{}).Where("id = ?", propertyID).Count(&n).Error
	return n > 0, err
}

// nextSlot returns the highest display order (-1 when empty) and whether a primary exists
func (s *Store) nextSlot(ctx context.Context, propertyID string) (maxOrder int, hasPrimary bool, err error) {
	q := s.db.WithContext(ctx).Model(&models.PropertyImage{}).Where("property_id = ?", propertyID)
	if err := q.Select("COALESCE(MAX(display_order), -1)").Row().Scan(&maxOrder); err != nil {
		return 0, false, err
	}

	var primaries int64
	err = s.db.WithContext(ctx).Model(&models.PropertyImage{}).
		Where("property_id = ? AND is_primary = ?", propertyID, true).
		Count(&primaries).Error
	return maxOrder, primaries > 0, err
}

// Create inserts an image record. With isPrimary the sibling primaries are
// cleared first; an image added to a gallery without a primary becomes primary.
func (s *Store) Create(ctx context.Context, propertyID, url string, order int, isPrimary bool) (*models.PropertyImage, error) {
	img := &models.PropertyImage{
		PropertyID:   propertyID,
		ImageURL:     url,
		DisplayOrder: order,
		IsPrimary:    isPrimary,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProperty(tx, propertyID); err != nil {
			return err
		}

		if isPrimary {
			if err := clearPrimary(tx, propertyID); err != nil {
				return err
			}
		} else {
			var primaries int64
			if err := tx.Model(&models.PropertyImage{}).
				Where("property_id = ? AND is_primary = ?", propertyID, true).
				Count(&primaries).Error; err != nil {
				return err
			}
			img.IsPrimary = primaries == 0
		}

		if err := tx.Create(img).Error; err != nil {
			return err
		}
		if img.IsPrimary {
			return setPropertyImage(tx, propertyID, &img.ImageURL)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// SetPrimary clears the siblings, flags the target and updates properties.image_url.
// Calling it again repairs a gallery that was left without a primary.
func (s *Store) SetPrimary(ctx context.Context, imageID string) (*models.PropertyImage, error) {
	var img models.PropertyImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findImage(tx, imageID, &img); err != nil {
			return err
		}
		if err := lockProperty(tx, img.PropertyID); err != nil {
			return err
		}
		if err := clearPrimary(tx, img.PropertyID); err != nil {
			return err
		}
		if err := tx.Model(&models.PropertyImage{}).Where("id = ?", img.ID).Update("is_primary", true).Error; err != nil {
			return err
		}
		img.IsPrimary = true
		return setPropertyImage(tx, img.PropertyID, &img.ImageURL)
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Reorder sets display_order to each id's index. Every id is updated on its
// own; ids that fail are collected into a PartialUpdateError. Primary flags
// are left alone.
func (s *Store) Reorder(ctx context.Context, propertyID string, orderedIDs []string) error {
	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.PropertyImage{}).
		Where("property_id = ?", propertyID).
		Pluck("id", &existing).Error; err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	var failed []string
	var firstErr error
	applied := 0
	for i, id := range orderedIDs {
		if !known[id] {
			failed = append(failed, id)
			if firstErr == nil {
				firstErr = apperr.ErrNotFound
			}
			continue
		}

		res := s.db.WithContext(ctx).Model(&models.PropertyImage{}).
			Where("id = ? AND property_id = ?", id, propertyID).
			Update("display_order", i)
		err := res.Error
		if err == nil && res.RowsAffected == 0 {
			// deleted since the id list was read
			err = apperr.ErrNotFound
		}
		if err != nil {
			log.Printf("[gallery] op=reorder property_id=%s image_id=%s err=%v", propertyID, id, err)
			failed = append(failed, id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}

	if len(failed) > 0 {
		return &apperr.PartialUpdateError{FailedIDs: failed, Applied: applied, Err: firstErr}
	}
	return nil
}

// Delete removes the record and returns it as it was. When it was primary the
// remaining image with the smallest display order takes over, or image_url
// becomes NULL when the gallery is empty. The blob is the caller's job.
func (s *Store) Delete(ctx context.Context, imageID string) (*models.PropertyImage, error) {
	var img models.PropertyImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findImage(tx, imageID, &img); err != nil {
			return err
		}
		if err := lockProperty(tx, img.PropertyID); err != nil {
			return err
		}
		if err := tx.Where("id = ?", img.ID).Delete(&models.PropertyImage{}).Error; err != nil {
			return err
		}
		if !img.IsPrimary {
			return nil
		}

		var next models.PropertyImage
		err := tx.Where("property_id = ?", img.PropertyID).
			Order("display_order ASC").
			Order("created_at ASC").
			First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return setPropertyImage(tx, img.PropertyID, nil)
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.PropertyImage{}).Where("id = ?", next.ID).Update("is_primary", true).Error; err != nil {
			return err
		}
		return setPropertyImage(tx, img.PropertyID, &next.ImageURL)
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func findImage(tx *gorm.DB, imageID string, img *models.PropertyImage) error {
	err := tx.Where("id = ?", imageID).First(img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}

// lockProperty takes a row lock on the property; SQLite has no row locks
// and serializes writers on its own.
func lockProperty(tx *gorm.DB, propertyID string) error {
	q := tx.Model(&models.Property{}).Select("id").Where("id = ?", propertyID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Property
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}

func clearPrimary(tx *gorm.DB, propertyID string) error {
	return tx.Model(&models.PropertyImage{}).
		Where("property_id = ? AND is_primary = ?", propertyID, true).
		Update("is_primary", false).Error
}

func setPropertyImage(tx *gorm.DB, propertyID string, url *string) error {
	var value interface{} = gorm.Expr("NULL")
	if url != nil {
		value = *url
	}
	return tx.Model(&models.Property{}).Where("id = ?", propertyID).Update("image_url", value).Error
}
