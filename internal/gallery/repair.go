package gallery

import (
	"context"
	"log"

	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// RepairPrimaries finds galleries that have images but no primary and makes
// the first image primary. It returns the number of repaired properties.
func (s *Store) RepairPrimaries(ctx context.Context) (int, error) {
	var propertyIDs []string
	err := s.db.WithContext(ctx).Model(&models.PropertyImage{}).
		Select("property_id").
		Group("property_id").
		Having("SUM(CASE WHEN is_primary THEN 1 ELSE 0 END) = 0").
		Pluck("property_id", &propertyIDs).Error
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, pid := range propertyIDs {
		var first models.PropertyImage
		err := s.db.WithContext(ctx).
			Where("property_id = ?", pid).
			Order("display_order ASC").
			Order("created_at ASC").
			First(&first).Error
		if err != nil {
			log.Printf("[gallery] op=repair property_id=%s err=%v", pid, err)
			continue
		}
		if _, err := s.SetPrimary(ctx, first.ID); err != nil {
			log.Printf("[gallery] op=repair property_id=%s image_id=%s err=%v", pid, first.ID, err)
			continue
		}
		log.Printf("[gallery] op=repair property_id=%s image_id=%s", pid, first.ID)
		repaired++
	}
	return repaired, nil
}
