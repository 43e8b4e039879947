// Package sidecosts stores the two "Nebenkosten" PDFs offered on the public
// site, one for renting and one for buying. Each kind keeps a single file.
package sidecosts

import (
	"context"
	"fmt"
	"log"
	"path"
	"sort"
	"time"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/metrics"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// Kind selects the rent or purchase document
type Kind string

const (
	KindRent     Kind = "rent"
	KindPurchase Kind = "purchase"
)

// ParseKind validates a kind from a URL parameter
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRent, KindPurchase:
		return Kind(s), nil
	}
	return "", apperr.Invalid("unknown side cost type %q", s)
}

// File describes the stored document
type File struct {
	ID         string    `json:"id"`
	Type       Kind      `json:"type"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
	FileSize   int64     `json:"file_size"`
}

// Service manages the side cost documents
type Service struct {
	objects   storage.ObjectStore
	bucket    string
	maxBytes  int64
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates a side cost service on bucket
func NewService(objects storage.ObjectStore, bucket string, maxBytes int64, publisher events.Publisher, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		objects:   objects,
		bucket:    bucket,
		maxBytes:  maxBytes,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

func prefix(kind Kind) string {
	return string(kind) + "/"
}

// Upload replaces the document of kind. Existing files under the kind's
// prefix are removed before the new one is written.
func (s *Service) Upload(ctx context.Context, kind Kind, f upload.File) (*File, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	contentType, _, err := upload.Check(f, s.maxBytes, "application/pdf")
	if err != nil {
		s.metrics.ObserveUpload("sidecosts", err)
		return nil, err
	}

	if err := s.Remove(ctx, kind); err != nil {
		return nil, err
	}

	now := s.now()
	name := fmt.Sprintf("nebenkosten_%s_%d.pdf", kind, now.UnixMilli())
	objectPath := prefix(kind) + name
	url, err := s.objects.Put(ctx, s.bucket, objectPath, f.Data, contentType)
	if err != nil {
		err = &apperr.UploadError{Bucket: s.bucket, Path: objectPath, Err: err}
		s.metrics.ObserveUpload("sidecosts", err)
		return nil, err
	}
	s.metrics.ObserveUpload("sidecosts", nil)
	log.Printf("[sidecosts] op=upload kind=%s path=%s bytes=%d", kind, objectPath, f.Size())

	events.Emit(ctx, s.publisher, events.Event{
		Type: events.TypeContentChanged,
		Op:   "sidecosts.upload",
		Data: map[string]string{"kind": string(kind)},
	})
	return &File{
		ID:         objectPath,
		Type:       kind,
		Filename:   name,
		URL:        url,
		UploadedAt: now,
		FileSize:   f.Size(),
	}, nil
}

// Latest returns the newest document of kind
func (s *Service) Latest(ctx context.Context, kind Kind) (*File, error) {
	objects, err := s.objects.List(ctx, s.bucket, prefix(kind))
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, apperr.ErrNotFound
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].UpdatedAt.After(objects[j].UpdatedAt)
	})
	latest := objects[0]
	return &File{
		ID:         latest.Path,
		Type:       kind,
		Filename:   path.Base(latest.Path),
		URL:        s.objects.PublicURL(s.bucket, latest.Path),
		UploadedAt: latest.UpdatedAt,
		FileSize:   latest.Size,
	}, nil
}

// Remove deletes every document of kind
func (s *Service) Remove(ctx context.Context, kind Kind) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	objects, err := s.objects.List(ctx, s.bucket, prefix(kind))
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	paths := make([]string, len(objects))
	for i, o := range objects {
		paths[i] = o.Path
	}
	if err := s.objects.Delete(ctx, s.bucket, paths...); err != nil {
		return fmt.Errorf("failed to remove %s documents: %w", kind, err)
	}
	log.Printf("[sidecosts] op=remove kind=%s count=%d", kind, len(paths))
	return nil
}
