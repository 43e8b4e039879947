// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
)

// ErrInjected is returned by the failing fakes
var ErrInjected = errors.New("injected failure")

// NewDB returns a migrated in-memory SQLite database.
// A single connection keeps every query on the same in-memory file.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedProperty inserts a minimal valid property
func SeedProperty(t testing.TB, db *gorm.DB, title string) *models.Property {
	t.Helper()
	p := &models.Property{
		Title:       title,
		Address:     "Hauptstraße 1",
		City:        "Wien",
		District:    "1010",
		Price:       350000,
		Area:        80,
		Rooms:       3,
		Bathrooms:   1,
		Type:        models.PropertyTypeApartment,
		Status:      models.PropertyStatusAvailable,
		Description: "Helle Wohnung mit Balkon in zentraler Lage.",
		Features:    []string{"Balkon"},
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return p
}

// FlakyStore wraps a MemoryStore and fails on demand
type FlakyStore struct {
	*storage.MemoryStore

	mu         sync.Mutex
	FailPut    bool
	FailDelete bool
	Puts       int
	Deletes    int
}

// NewFlakyStore creates a FlakyStore over a fresh MemoryStore
func NewFlakyStore() *FlakyStore {
	return &FlakyStore{MemoryStore: storage.NewMemoryStore("http://test.local")}
}

func (s *FlakyStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	s.Puts++
	fail := s.FailPut
	s.mu.Unlock()
	if fail {
		return "", ErrInjected
	}
	return s.MemoryStore.Put(ctx, bucket, path, data, contentType)
}

func (s *FlakyStore) Delete(ctx context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	s.Deletes++
	fail := s.FailDelete
	s.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.MemoryStore.Delete(ctx, bucket, paths...)
}

// PutCount returns how many puts were attempted
func (s *FlakyStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Puts
}

// RecordingPublisher keeps published events in memory
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return nil
}

// Ops returns the op names of the recorded events in order
func (p *RecordingPublisher) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		ops = append(ops, e.Op)
	}
	return ops
}

// PNG is the smallest header mimetype recognizes as image/png
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// JPEG is a minimal JPEG header
var JPEG = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

// PDF is a minimal PDF header
var PDF = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

// MP4 is a minimal ISO base media header with an mp42 brand
var MP4 = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom\x00\x00\x00\x08free")
