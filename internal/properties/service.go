// Package properties manages listings: the wizard form, status lifecycle,
// property of the month and the tour video. Gallery images belong to the
// gallery package; this package only removes them with their property.
package properties

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/metrics"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// Indexer keeps the search index in step with the table
type Indexer interface {
	IndexProperty(p *models.Property) error
	DeleteProperty(id string) error
}

// GalleryCache drops per-property gallery state
type GalleryCache interface {
	Forget(propertyID string)
}

// Options configures a Service
type Options struct {
	ImageBucket   string
	VideoBucket   string
	MaxVideoBytes int64
	Indexer       Indexer
	Gallery       GalleryCache
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
}

// Detail is a property with its gallery in display order
type Detail struct {
	models.Property
	Images []models.PropertyImage `json:"images"`
}

// Service implements the property operations
type Service struct {
	db        *gorm.DB
	objects   storage.ObjectStore
	opts      Options
	validator *validator.Validate
	now       func() time.Time
}

// NewService creates a property service
func NewService(db *gorm.DB, objects storage.ObjectStore, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	return &Service{
		db:        db,
		objects:   objects,
		opts:      opts,
		validator: newValidator(),
		now:       time.Now,
	}
}

func (in *Input) apply(p *models.Property) {
	p.Title = in.Title
	p.Address = in.Address
	p.City = in.City
	p.District = in.District
	p.Price = in.Price
	p.Area = in.Area
	p.Rooms = in.Rooms
	p.Bathrooms = in.Bathrooms
	p.Type = in.Type
	p.Description = in.Description
	p.Features = in.Features
}

// Create validates the form and inserts a property owned by the caller
func (s *Service) Create(ctx context.Context, in *Input) (*models.Property, error) {
	session, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	p := &models.Property{UserID: session.UserID, Status: in.Status}
	if p.Status == "" {
		p.Status = models.PropertyStatusAvailable
	}
	in.apply(p)

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	log.Printf("[properties] op=create property_id=%s user_id=%s", p.ID, p.UserID)

	s.index(p)
	s.emit(ctx, p.ID, "create")
	return p, nil
}

// Get returns the property and its images
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Property: *p}
	err = s.db.WithContext(ctx).
		Where("property_id = ?", id).
		Order("display_order ASC").
		Order("created_at ASC").
		Find(&d.Images).Error
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Update replaces the form fields. A status change is recorded in the history.
func (s *Service) Update(ctx context.Context, id string, in *Input) (*models.Property, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var p *models.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.findForUpdate(ctx, tx, id); err != nil {
			return err
		}
		old := p.Status
		in.apply(p)
		if in.Status != "" {
			p.Status = in.Status
		}
		// image_url and video_url belong to the gallery and video uploads
		if err := tx.Model(p).Select(formColumns).Updates(p).Error; err != nil {
			return err
		}
		if err := s.recordStatus(ctx, tx, p.ID, old, p.Status); err != nil {
			return err
		}
		p, err = s.find(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[properties] op=update property_id=%s", id)

	s.index(p)
	s.emit(ctx, id, "update")
	return p, nil
}

// Delete removes the property with its images and video. Blobs that cannot
// be removed are recorded as orphans.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}

	var p *models.Property
	var imageURLs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.findForUpdate(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.PropertyImage{}).Where("property_id = ?", id).Pluck("image_url", &imageURLs).Error; err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyStatusChange{}).Error; err != nil {
			return err
		}
		return tx.Delete(p).Error
	})
	if err != nil {
		return err
	}
	log.Printf("[properties] op=delete property_id=%s images=%d", id, len(imageURLs))

	for _, url := range imageURLs {
		s.removeBlob(ctx, s.opts.ImageBucket, url)
	}
	if p.VideoURL != nil {
		s.removeBlob(ctx, s.opts.VideoBucket, *p.VideoURL)
	}

	if s.opts.Indexer != nil {
		if err := s.opts.Indexer.DeleteProperty(id); err != nil {
			log.Printf("[properties] op=unindex property_id=%s err=%v", id, err)
		}
	}
	if s.opts.Gallery != nil {
		s.opts.Gallery.Forget(id)
	}
	s.emit(ctx, id, "delete")
	return nil
}

// SetStatus moves the property through its sales lifecycle
func (s *Service) SetStatus(ctx context.Context, id string, status models.PropertyStatus) (*models.Property, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	switch status {
	case models.PropertyStatusAvailable, models.PropertyStatusReserved, models.PropertyStatusSold:
	default:
		return nil, apperr.Invalid("unknown status %q", status)
	}

	var p *models.Property
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.findForUpdate(ctx, tx, id); err != nil {
			return err
		}
		if p.Status == status {
			return nil
		}
		old := p.Status
		if err := tx.Model(p).Update("status", status).Error; err != nil {
			return err
		}
		p.Status = status
		changed = true
		return s.recordStatus(ctx, tx, id, old, status)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Printf("[properties] op=set_status property_id=%s status=%s", id, status)
		s.index(p)
		s.emit(ctx, id, "status")
	}
	return p, nil
}

// History returns the status changes of a property, newest first
func (s *Service) History(ctx context.Context, id string, limit int) ([]models.PropertyStatusChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []models.PropertyStatusChange
	err := s.db.WithContext(ctx).
		Where("property_id = ?", id).
		Order("changed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}

func (s *Service) recordStatus(ctx context.Context, tx *gorm.DB, id string, old, next models.PropertyStatus) error {
	if old == next {
		return nil
	}
	return tx.Create(&models.PropertyStatusChange{
		PropertyID: id,
		OldStatus:  old,
		NewStatus:  next,
		UserID:     auth.UserID(ctx),
	}).Error
}

// SetPropertyOfMonth makes id the only featured property
func (s *Service) SetPropertyOfMonth(ctx context.Context, id string) (*models.Property, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}

	var p *models.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.findForUpdate(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Property{}).
			Where("is_property_of_month = ?", true).
			Update("is_property_of_month", false).Error; err != nil {
			return err
		}
		p.IsPropertyOfMonth = true
		return tx.Model(p).Update("is_property_of_month", true).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[properties] op=set_property_of_month property_id=%s", id)

	s.index(p)
	s.emit(ctx, id, "property_of_month")
	return p, nil
}

// RemovePropertyOfMonth clears the featured flag of id
func (s *Service) RemovePropertyOfMonth(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	p, err := s.find(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(p).Update("is_property_of_month", false).Error; err != nil {
		return err
	}
	p.IsPropertyOfMonth = false
	s.index(p)
	s.emit(ctx, id, "property_of_month")
	return nil
}

// UploadVideo replaces the tour video. The new file is stored first; the
// previous blob is removed once video_url points at the new one.
func (s *Service) UploadVideo(ctx context.Context, id string, f upload.File) (*models.Property, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	contentType, _, err := upload.Check(f, s.opts.MaxVideoBytes, "video/mp4")
	if err != nil {
		s.opts.Metrics.ObserveUpload("video", err)
		return nil, err
	}

	p, err := s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	previous := p.VideoURL

	path := storage.VideoPath(id, s.now())
	url, err := s.objects.Put(ctx, s.opts.VideoBucket, path, f.Data, contentType)
	if err != nil {
		err = &apperr.UploadError{Bucket: s.opts.VideoBucket, Path: path, Err: err}
		s.opts.Metrics.ObserveUpload("video", err)
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(p).Update("video_url", url).Error; err != nil {
		cleanup.RecordOrphan(ctx, s.db, s.opts.VideoBucket, path, url, models.OrphanReasonPersistFailed, err)
		err = &apperr.PersistenceError{Bucket: s.opts.VideoBucket, Path: path, URL: url, Err: err}
		s.opts.Metrics.ObserveUpload("video", err)
		return nil, err
	}
	p.VideoURL = &url
	s.opts.Metrics.ObserveUpload("video", nil)
	log.Printf("[properties] op=upload_video property_id=%s path=%s bytes=%d", id, path, f.Size())

	if previous != nil && *previous != url {
		s.removeBlob(ctx, s.opts.VideoBucket, *previous)
	}
	s.emit(ctx, id, "video")
	return p, nil
}

// DeleteVideo clears video_url and removes the blob
func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	p, err := s.find(ctx, s.db, id)
	if err != nil {
		return err
	}
	if p.VideoURL == nil {
		return apperr.ErrNotFound
	}

	if err := s.db.WithContext(ctx).Model(p).Update("video_url", gorm.Expr("NULL")).Error; err != nil {
		return err
	}
	s.removeBlob(ctx, s.opts.VideoBucket, *p.VideoURL)
	log.Printf("[properties] op=delete_video property_id=%s", id)
	s.emit(ctx, id, "video")
	return nil
}

// Reindex pushes the current row of id to the search index
func (s *Service) Reindex(ctx context.Context, id string) {
	p, err := s.find(ctx, s.db, id)
	if err != nil {
		log.Printf("[properties] op=reindex property_id=%s err=%v", id, err)
		return
	}
	s.index(p)
}

// formColumns are the columns written by Update
var formColumns = []string{
	"title", "address", "city", "district", "price", "area",
	"rooms", "bathrooms", "type", "description", "features", "status",
}

func (s *Service) find(ctx context.Context, db *gorm.DB, id string) (*models.Property, error) {
	return s.first(db.WithContext(ctx).Where("id = ?", id))
}

// findForUpdate locks the row for the rest of the transaction, the same lock
// gallery operations take before touching image_url
func (s *Service) findForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Property, error) {
	q := tx.WithContext(ctx).Where("id = ?", id)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.first(q)
}

func (s *Service) first(q *gorm.DB) (*models.Property, error) {
	var p models.Property
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) index(p *models.Property) {
	if s.opts.Indexer == nil {
		return
	}
	if err := s.opts.Indexer.IndexProperty(p); err != nil {
		log.Printf("[properties] op=index property_id=%s err=%v", p.ID, err)
	}
}

func (s *Service) removeBlob(ctx context.Context, bucket, url string) {
	path, ok := s.objects.PathFromURL(bucket, url)
	if !ok {
		log.Printf("[properties] op=delete_blob bucket=%s url=%s err=path not derivable", bucket, url)
		return
	}
	if err := s.objects.Delete(ctx, bucket, path); err != nil {
		cleanup.RecordOrphan(ctx, s.db, bucket, path, url, models.OrphanReasonDeleteFailed, err)
	}
}

func (s *Service) emit(ctx context.Context, id, op string) {
	events.Emit(ctx, s.opts.Publisher, events.Event{
		Type:       events.TypePropertyChanged,
		PropertyID: id,
		Op:         op,
	})
}
