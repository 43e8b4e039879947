// Package content manages the editorial parts of the public site: blog
// posts, team members and client testimonials.
package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/metrics"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// Options configures a Service
type Options struct {
	BlogBucket        string
	TeamBucket        string
	TestimonialBucket string
	MaxImageBytes     int64
	Publisher         events.Publisher
	Metrics           *metrics.Metrics
}

// Service implements blog, team and testimonial operations
type Service struct {
	db        *gorm.DB
	objects   storage.ObjectStore
	opts      Options
	validator *validator.Validate
	now       func() time.Time
}

// NewService creates a content service
func NewService(db *gorm.DB, objects storage.ObjectStore, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Service{
		db:        db,
		objects:   objects,
		opts:      opts,
		validator: v,
		now:       time.Now,
	}
}

func (s *Service) validate(in interface{}) error {
	err := s.validator.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Invalid("%v", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields[fe.Field()] = fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		} else {
			fields[fe.Field()] = "failed " + fe.Tag()
		}
	}
	return &apperr.ValidationError{Fields: fields}
}

// storePhoto validates an image and writes it to {prefix}/{uuid}.{ext}
func (s *Service) storePhoto(ctx context.Context, bucket, prefix string, f *upload.File) (url, path string, err error) {
	contentType, ext, err := upload.Check(*f, s.opts.MaxImageBytes, upload.Images...)
	if err != nil {
		s.opts.Metrics.ObserveUpload(prefix, err)
		return "", "", err
	}

	path = fmt.Sprintf("%s/%s.%s", prefix, uuid.NewString(), ext)
	url, err = s.objects.Put(ctx, bucket, path, f.Data, contentType)
	if err != nil {
		err = &apperr.UploadError{Bucket: bucket, Path: path, Err: err}
		s.opts.Metrics.ObserveUpload(prefix, err)
		return "", "", err
	}
	s.opts.Metrics.ObserveUpload(prefix, nil)
	return url, path, nil
}

func (s *Service) removeBlob(ctx context.Context, bucket string, url *string) {
	if url == nil || *url == "" {
		return
	}
	path, ok := s.objects.PathFromURL(bucket, *url)
	if !ok {
		log.Printf("[content] op=delete_blob bucket=%s url=%s err=path not derivable", bucket, *url)
		return
	}
	if err := s.objects.Delete(ctx, bucket, path); err != nil {
		cleanup.RecordOrphan(ctx, s.db, bucket, path, *url, models.OrphanReasonDeleteFailed, err)
	}
}

// persistFailed records the fresh blob as orphaned and wraps err
func (s *Service) persistFailed(ctx context.Context, bucket, path, url string, err error) error {
	cleanup.RecordOrphan(ctx, s.db, bucket, path, url, models.OrphanReasonPersistFailed, err)
	return &apperr.PersistenceError{Bucket: bucket, Path: path, URL: url, Err: err}
}

func (s *Service) first(ctx context.Context, dest interface{}, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}

// reorder sets display_order to each id's index in one transaction
func (s *Service) reorder(ctx context.Context, model interface{}, ids []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(model).Where("id = ?", id).Update("display_order", i)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
}

// checkIDs verifies every id exists in model's table
func (s *Service) checkIDs(ctx context.Context, model interface{}, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperr.Invalid("id %s listed twice", id)
		}
		seen[id] = true
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind, op, id string) {
	events.Emit(ctx, s.opts.Publisher, events.Event{
		Type: events.TypeContentChanged,
		Op:   kind + "." + op,
		Data: map[string]string{"kind": kind, "id": id},
	})
}
