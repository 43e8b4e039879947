package models

import "time"

// PropertyStatusChange records one transition in a property's sales lifecycle
type PropertyStatusChange struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string         `gorm:"type:varchar(36);not null;index" json:"property_id"`
	OldStatus  PropertyStatus `gorm:"type:varchar(20);not null" json:"old_status"`
	NewStatus  PropertyStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	UserID     string         `gorm:"type:varchar(36)" json:"user_id,omitempty"`
	ChangedAt  time.Time      `gorm:"not null;autoCreateTime;index" json:"changed_at"`
}

// TableName specifies the table name
func (PropertyStatusChange) TableName() string {
	return "property_status_changes"
}
