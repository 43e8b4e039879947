// Package storage wraps the object stores that hold images, videos and PDFs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Open when the object does not exist
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored blob
type Object struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ObjectStore is the subset of a blob store the services rely on
type ObjectStore interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, bucket string, paths ...string) error
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	PublicURL(bucket, path string) string
	PathFromURL(bucket, url string) (string, bool)
}

// Opener is implemented by stores that serve their own objects over /files
type Opener interface {
	Open(ctx context.Context, bucket, path string) (io.ReadCloser, Object, error)
}

// ImagePath builds {propertyId}/{unixMillis}-{index}.{ext}
func ImagePath(propertyID string, t time.Time, index int, ext string) string {
	return fmt.Sprintf("%s/%d-%d.%s", propertyID, t.UnixMilli(), index, ext)
}

// VideoPath builds {propertyId}/{unixMillis}.mp4
func VideoPath(propertyID string, t time.Time) string {
	return fmt.Sprintf("%s/%d.mp4", propertyID, t.UnixMilli())
}

// joinURL builds {base}/{bucket}/{path}
func joinURL(base, bucket, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(objectPath, "/")
}

// splitURL recovers the object path from a public URL by cutting at /{bucket}/
func splitURL(bucket, url string) (string, bool) {
	marker := "/" + bucket + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", false
	}
	p := url[idx+len(marker):]
	if q := strings.IndexAny(p, "?#"); q >= 0 {
		p = p[:q]
	}
	if p == "" {
		return "", false
	}
	return p, true
}
