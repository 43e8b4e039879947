package gallery

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/metrics"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
)

// Options configures a Manager
type Options struct {
	Bucket    string
	MaxBytes  int64
	Parallel  int
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// Snapshot is what a gallery looks like right now
type Snapshot struct {
	PropertyID string                 `json:"property_id"`
	Images     []models.PropertyImage `json:"images"`
	State      State                  `json:"state"`
}

// UploadResult is the outcome for one file of a multi-file upload
type UploadResult struct {
	Filename string                `json:"filename"`
	Image    *models.PropertyImage `json:"image,omitempty"`
	Err      error                 `json:"-"`
}

// Manager runs gallery operations: optimistic change on the property's
// Editor, persist through the Store, then confirm from a fresh read or roll
// back and re-read.
type Manager struct {
	store     *Store
	uploader  *Uploader
	objects   storage.ObjectStore
	bucket    string
	parallel  int
	publisher events.Publisher
	metrics   *metrics.Metrics

	onPrimaryChanged func(ctx context.Context, propertyID string)

	mu      sync.Mutex
	editors map[string]*Editor
}

// NewManager wires a manager
func NewManager(store *Store, objects storage.ObjectStore, opts Options) *Manager {
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	return &Manager{
		store:     store,
		uploader:  NewUploader(objects, opts.Bucket, opts.MaxBytes),
		objects:   objects,
		bucket:    opts.Bucket,
		parallel:  opts.Parallel,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		editors:   make(map[string]*Editor),
	}
}

// OnPrimaryChanged registers a callback run after the primary image of a property changed
func (m *Manager) OnPrimaryChanged(fn func(ctx context.Context, propertyID string)) {
	m.onPrimaryChanged = fn
}

// editor returns the property's editor, refreshed from the store when idle.
// Editors are only created for properties that exist.
func (m *Manager) editor(ctx context.Context, propertyID string) (*Editor, error) {
	m.mu.Lock()
	e, ok := m.editors[propertyID]
	m.mu.Unlock()

	if !ok {
		exists, err := m.store.PropertyExists(ctx, propertyID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ErrNotFound
		}

		m.mu.Lock()
		if e, ok = m.editors[propertyID]; !ok {
			e = NewEditor(nil)
			m.editors[propertyID] = e
		}
		m.mu.Unlock()
	}

	if e.Idle() {
		images, err := m.store.List(ctx, propertyID)
		if err != nil {
			return nil, err
		}
		e.Load(images)
	}
	return e, nil
}

// Forget drops the cached editor of a deleted property
func (m *Manager) Forget(propertyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.editors, propertyID)
}

// Gallery returns the current draft and busy flags
func (m *Manager) Gallery(ctx context.Context, propertyID string) (*Snapshot, error) {
	ok, err := m.store.PropertyExists(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return m.snapshot(propertyID, e), nil
}

func (m *Manager) snapshot(propertyID string, e *Editor) *Snapshot {
	return &Snapshot{PropertyID: propertyID, Images: e.Images(), State: e.State()}
}

// Upload stores several files in parallel. Every file is validated before
// any network call; invalid files get a ValidationError in their result.
// Display orders continue after the current maximum, and the first file
// becomes primary when the gallery has none. The returned error is set only
// when the request as a whole failed.
func (m *Manager) Upload(ctx context.Context, propertyID string, files []File) ([]UploadResult, error) {
	if len(files) == 0 {
		return nil, apperr.Invalid("no files")
	}

	results := make([]UploadResult, len(files))
	var firstInvalid error
	validCount := 0
	for i, f := range files {
		results[i].Filename = f.Name
		if _, _, err := m.uploader.Validate(f); err != nil {
			results[i].Err = err
			m.metrics.ObserveUpload("image", err)
			if firstInvalid == nil {
				firstInvalid = err
			}
			continue
		}
		validCount++
	}
	if validCount == 0 {
		return results, firstInvalid
	}

	ok, err := m.store.PropertyExists(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}

	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := e.BeginUpload(); err != nil {
		return nil, err
	}

	maxOrder, hasPrimary, err := m.store.nextSlot(ctx, propertyID)
	if err != nil {
		e.EndUpload()
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(m.parallel)
	pos := 0
	for i, f := range files {
		i, f := i, f
		if results[i].Err != nil {
			continue
		}
		order := maxOrder + 1 + pos
		primary := !hasPrimary && pos == 0
		pos++

		g.Go(func() error {
			img, err := m.uploadOne(ctx, propertyID, f, order, primary)
			results[i].Image = img
			results[i].Err = err
			m.metrics.ObserveUpload("image", err)
			return nil
		})
	}
	_ = g.Wait()
	e.EndUpload()

	if e.Idle() {
		if images, err := m.store.List(ctx, propertyID); err == nil {
			e.Load(images)
		}
	}

	primaryChanged := false
	uploaded := 0
	for _, r := range results {
		if r.Image != nil {
			uploaded++
			primaryChanged = primaryChanged || r.Image.IsPrimary
		}
	}
	log.Printf("[gallery] op=upload property_id=%s files=%d uploaded=%d", propertyID, len(files), uploaded)

	if uploaded > 0 {
		m.emit(ctx, propertyID, "upload")
	}
	if primaryChanged {
		m.primaryChanged(ctx, propertyID)
	}
	return results, nil
}

func (m *Manager) uploadOne(ctx context.Context, propertyID string, f File, order int, primary bool) (*models.PropertyImage, error) {
	url, path, err := m.uploader.Upload(ctx, propertyID, f, order)
	if err != nil {
		log.Printf("[gallery] op=upload property_id=%s file=%s err=%v", propertyID, f.Name, err)
		return nil, err
	}

	img, err := m.store.Create(ctx, propertyID, url, order, primary)
	if err != nil {
		cleanup.RecordOrphan(ctx, m.store.db, m.bucket, path, url, models.OrphanReasonPersistFailed, err)
		return nil, &apperr.PersistenceError{Bucket: m.bucket, Path: path, URL: url, Err: err}
	}
	return img, nil
}

// Reorder persists a complete new order given as image ids
func (m *Manager) Reorder(ctx context.Context, propertyID string, orderedIDs []string) (*Snapshot, error) {
	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := e.Arrange(orderedIDs); err != nil {
		return nil, err
	}

	err = m.store.Reorder(ctx, propertyID, orderedIDs)
	m.finish(ctx, propertyID, e, "reorder", err)
	if err != nil {
		return nil, err
	}
	return m.snapshot(propertyID, e), nil
}

// Move applies one drag gesture from one position to another and persists
// the resulting order with a single reorder call.
func (m *Manager) Move(ctx context.Context, propertyID string, from, to int) (*Snapshot, error) {
	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := e.DragStart(from); err != nil {
		return nil, err
	}
	if err := e.DragOver(to); err != nil {
		e.Rollback()
		return nil, err
	}
	ids := e.DragEnd()

	err = m.store.Reorder(ctx, propertyID, ids)
	m.finish(ctx, propertyID, e, "move", err)
	if err != nil {
		return nil, err
	}
	return m.snapshot(propertyID, e), nil
}

// SetPrimary makes imageID the primary image of the property
func (m *Manager) SetPrimary(ctx context.Context, propertyID, imageID string) (*Snapshot, error) {
	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := e.MarkPrimary(imageID); err != nil {
		return nil, err
	}

	_, err = m.store.SetPrimary(ctx, imageID)
	m.finish(ctx, propertyID, e, "set_primary", err)
	if err != nil {
		return nil, err
	}
	m.primaryChanged(ctx, propertyID)
	return m.snapshot(propertyID, e), nil
}

// Delete removes the image record and then its blob. A blob that cannot be
// removed is recorded as an orphan; the delete itself still succeeds.
func (m *Manager) Delete(ctx context.Context, propertyID, imageID string) (*Snapshot, error) {
	e, err := m.editor(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if _, err := e.Remove(imageID); err != nil {
		return nil, err
	}

	deleted, err := m.store.Delete(ctx, imageID)
	if err == nil {
		m.deleteBlob(ctx, deleted.ImageURL)
	}
	m.finish(ctx, propertyID, e, "delete", err)
	if err != nil {
		return nil, err
	}
	if deleted.IsPrimary {
		m.primaryChanged(ctx, propertyID)
	}
	return m.snapshot(propertyID, e), nil
}

func (m *Manager) deleteBlob(ctx context.Context, url string) {
	path, ok := m.objects.PathFromURL(m.bucket, url)
	if !ok {
		log.Printf("[gallery] op=delete_blob url=%s err=path not derivable", url)
		return
	}
	if err := m.objects.Delete(ctx, m.bucket, path); err != nil {
		cleanup.RecordOrphan(ctx, m.store.db, m.bucket, path, url, models.OrphanReasonDeleteFailed, err)
	}
}

// finish confirms the draft from a fresh read, or rolls back and re-reads
func (m *Manager) finish(ctx context.Context, propertyID string, e *Editor, op string, opErr error) {
	m.metrics.ObserveGalleryOp(op, opErr)

	if opErr != nil {
		log.Printf("[gallery] op=%s property_id=%s err=%v", op, propertyID, opErr)
		e.Rollback()
		if images, err := m.store.List(ctx, propertyID); err == nil {
			e.Load(images)
		}
		return
	}

	images, err := m.store.List(ctx, propertyID)
	if err != nil {
		log.Printf("[gallery] op=%s property_id=%s refetch_err=%v", op, propertyID, err)
		images = e.Images()
		sortImages(images)
	}
	e.Confirm(images)
	m.emit(ctx, propertyID, op)
}

func (m *Manager) emit(ctx context.Context, propertyID, op string) {
	events.Emit(ctx, m.publisher, events.Event{
		Type:       events.TypeGalleryChanged,
		PropertyID: propertyID,
		Op:         op,
	})
}

func (m *Manager) primaryChanged(ctx context.Context, propertyID string) {
	if m.onPrimaryChanged != nil {
		m.onPrimaryChanged(ctx, propertyID)
	}
}

// IsBusy reports whether err came from a conflicting in-flight operation
func IsBusy(err error) bool {
	return errors.Is(err, apperr.ErrBusy)
}
