package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
)

// Service removes blobs that lost their database row. It only runs when an
// admin asks for it.
type Service struct {
	db      *gorm.DB
	objects storage.ObjectStore
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB, objects storage.ObjectStore) *Service {
	return &Service{db: db, objects: objects}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	MaxDeletionCount int  // Refuse to run when more orphans than this are pending
	DryRun           bool // Only log what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		MaxDeletionCount: 1000,
		DryRun:           true,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount  int       `json:"target_count"`
	DeletedCount int       `json:"deleted_count"`
	ErrorCount   int       `json:"error_count"`
	DryRun       bool      `json:"dry_run"`
	ExecutedAt   time.Time `json:"executed_at"`
	DeletedPaths []string  `json:"deleted_paths"`
	Errors       []string  `json:"errors,omitempty"`
}

// RecordOrphan logs an orphaned blob and stores it for a later sweep.
// Failing to record is only logged; the caller already has a primary error.
func RecordOrphan(ctx context.Context, db *gorm.DB, bucket, path, url, reason string, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	log.Printf("[orphan] bucket=%s path=%s reason=%s cause=%v", bucket, path, reason, cause)

	orphan := models.OrphanBlob{
		Bucket: bucket,
		Path:   path,
		URL:    url,
		Reason: reason,
		Detail: detail,
	}
	if err := db.WithContext(ctx).Create(&orphan).Error; err != nil {
		log.Printf("[orphan] failed to record bucket=%s path=%s err=%v", bucket, path, err)
	}
}

// FindOrphans returns orphans that have not been cleaned yet, oldest first
func (s *Service) FindOrphans(ctx context.Context, limit int) ([]models.OrphanBlob, error) {
	var orphans []models.OrphanBlob
	q := s.db.WithContext(ctx).Where("cleaned_at IS NULL").Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orphans).Error; err != nil {
		return nil, fmt.Errorf("failed to find orphans: %w", err)
	}
	return orphans, nil
}

// Sweep deletes every pending orphan blob and marks its row cleaned
func (s *Service) Sweep(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:     config.DryRun,
		ExecutedAt: time.Now(),
	}

	orphans, err := s.FindOrphans(ctx, 0)
	if err != nil {
		return nil, err
	}
	result.TargetCount = len(orphans)

	if result.TargetCount == 0 {
		log.Println("[cleanup] no orphans pending")
		return result, nil
	}

	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d orphans exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	log.Printf("[cleanup] starting sweep targets=%d dry_run=%v", result.TargetCount, config.DryRun)

	for _, o := range orphans {
		if config.DryRun {
			log.Printf("[cleanup] [DRY-RUN] would delete bucket=%s path=%s reason=%s", o.Bucket, o.Path, o.Reason)
			result.DeletedPaths = append(result.DeletedPaths, o.Bucket+"/"+o.Path)
			result.DeletedCount++
			continue
		}

		if err := s.objects.Delete(ctx, o.Bucket, o.Path); err != nil {
			msg := fmt.Sprintf("failed to delete %s/%s: %v", o.Bucket, o.Path, err)
			log.Printf("[cleanup] ERROR: %s", msg)
			result.Errors = append(result.Errors, msg)
			result.ErrorCount++
			continue
		}

		now := time.Now()
		if err := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).
			Where("id = ?", o.ID).
			Update("cleaned_at", now).Error; err != nil {
			msg := fmt.Sprintf("deleted %s/%s but failed to mark cleaned: %v", o.Bucket, o.Path, err)
			log.Printf("[cleanup] ERROR: %s", msg)
			result.Errors = append(result.Errors, msg)
			result.ErrorCount++
			continue
		}

		result.DeletedPaths = append(result.DeletedPaths, o.Bucket+"/"+o.Path)
		result.DeletedCount++
	}

	log.Printf("[cleanup] sweep completed deleted=%d/%d errors=%d dry_run=%v",
		result.DeletedCount, result.TargetCount, result.ErrorCount, config.DryRun)
	return result, nil
}

// Stats returns counts of pending and cleaned orphans
func (s *Service) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var pending, cleaned int64
	if err := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).Where("cleaned_at IS NULL").Count(&pending).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).Where("cleaned_at IS NOT NULL").Count(&cleaned).Error; err != nil {
		return nil, err
	}
	stats["pending"] = pending
	stats["cleaned"] = cleaned

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).
		Select("reason, count(*) as count").
		Where("cleaned_at IS NULL").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}

	reasonMap := make(map[string]int64)
	for _, rc := range reasonCounts {
		reasonMap[rc.Reason] = rc.Count
	}
	stats["pending_by_reason"] = reasonMap

	return stats, nil
}
