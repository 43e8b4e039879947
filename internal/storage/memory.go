package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. It backs the "memory"
// driver for local development and the package tests.
type MemoryStore struct {
	baseURL string
	now     func() time.Time

	mu      sync.RWMutex
	objects map[string]map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// NewMemoryStore creates an empty store whose URLs start with baseURL
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		now:     time.Now,
		objects: make(map[string]map[string]memObject),
	}
}

func (s *MemoryStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objects[bucket] == nil {
		s.objects[bucket] = make(map[string]memObject)
	}
	s.objects[bucket][path] = memObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		updatedAt:   s.now(),
	}
	return s.PublicURL(bucket, path), nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket string, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		delete(s.objects[bucket], p)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for p, obj := range s.objects[bucket] {
		if strings.HasPrefix(p, prefix) {
			out = append(out, Object{
				Path:        p,
				Size:        int64(len(obj.data)),
				ContentType: obj.contentType,
				UpdatedAt:   obj.updatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *MemoryStore) Open(ctx context.Context, bucket, path string) (io.ReadCloser, Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[bucket][path]
	if !ok {
		return nil, Object{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), Object{
		Path:        path,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// Has reports whether an object exists
func (s *MemoryStore) Has(bucket, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[bucket][path]
	return ok
}

// Count returns the number of objects in a bucket
func (s *MemoryStore) Count(bucket string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects[bucket])
}

// SetClock replaces the timestamp source
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) PublicURL(bucket, path string) string {
	return joinURL(s.baseURL+"/files", bucket, path)
}

func (s *MemoryStore) PathFromURL(bucket, url string) (string, bool) {
	return splitURL(bucket, url)
}
