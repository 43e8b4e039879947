package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/RalphPichler23/twi-react-backend/internal/config"
)

// Open builds the object store selected by cfg.Driver.
// baseURL is used for drivers served through this process (/files).
func Open(ctx context.Context, cfg config.StorageConfig, baseURL string) (ObjectStore, error) {
	switch cfg.Driver {
	case "s3":
		log.Printf("[storage] driver=s3 endpoint=%s", cfg.S3.Endpoint)
		return NewS3Store(cfg.S3)
	case "gridfs":
		log.Printf("[storage] driver=gridfs database=%s", cfg.GridFS.Database)
		if cfg.GridFS.PublicBaseURL == "" {
			cfg.GridFS.PublicBaseURL = baseURL
		}
		return NewGridFSStore(ctx, cfg.GridFS)
	case "memory":
		log.Println("[storage] driver=memory (objects are lost on restart)")
		return NewMemoryStore(baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
