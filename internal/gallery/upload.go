package gallery

import (
	"context"
	"time"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// File is one uploaded image as received from the client
type File = upload.File

// Uploader validates image files and writes them to the image bucket
type Uploader struct {
	objects  storage.ObjectStore
	bucket   string
	maxBytes int64
	now      func() time.Time
}

// NewUploader creates an uploader for bucket with a per-file size limit
func NewUploader(objects storage.ObjectStore, bucket string, maxBytes int64) *Uploader {
	return &Uploader{
		objects:  objects,
		bucket:   bucket,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Validate checks size and sniffed MIME type without touching the network
func (u *Uploader) Validate(f File) (contentType, ext string, err error) {
	return upload.Check(f, u.maxBytes, upload.Images...)
}

// Upload stores f under {propertyId}/{timestamp}-{index}.{ext} and returns its public URL
func (u *Uploader) Upload(ctx context.Context, propertyID string, f File, index int) (url, path string, err error) {
	contentType, ext, err := u.Validate(f)
	if err != nil {
		return "", "", err
	}

	path = storage.ImagePath(propertyID, u.now(), index, ext)
	url, err = u.objects.Put(ctx, u.bucket, path, f.Data, contentType)
	if err != nil {
		return "", path, &apperr.UploadError{Bucket: u.bucket, Path: path, Err: err}
	}
	return url, path, nil
}
