package models

import "time"

// OrphanBlob is a stored object that no database row points at any more.
// Rows are written when a put succeeded but the follow-up insert failed,
// or when a record was removed but its blob could not be deleted.
type OrphanBlob struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Bucket    string     `gorm:"type:varchar(100);not null;index" json:"bucket"`
	Path      string     `gorm:"type:varchar(500);not null" json:"path"`
	URL       string     `gorm:"type:text" json:"url"`
	Reason    string     `gorm:"type:varchar(50);not null;index" json:"reason"`
	Detail    string     `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	CleanedAt *time.Time `gorm:"index" json:"cleaned_at,omitempty"`
}

// TableName specifies the table name
func (OrphanBlob) TableName() string {
	return "orphan_blobs"
}

// Orphan reasons
const (
	OrphanReasonPersistFailed = "persist_failed"
	OrphanReasonDeleteFailed  = "delete_failed"
)
