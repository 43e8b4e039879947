package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RalphPichler23/twi-react-backend/internal/config"
)

// GridFSStore keeps blobs in MongoDB GridFS, one GridFS bucket per storage bucket.
// Objects are served back through the /files route.
type GridFSStore struct {
	client        *mongo.Client
	db            *mongo.Database
	publicBaseURL string

	mu      sync.Mutex
	buckets map[string]*gridfs.Bucket
}

type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   struct {
		ContentType string `bson:"contentType"`
	} `bson:"metadata"`
}

// NewGridFSStore connects to MongoDB
func NewGridFSStore(ctx context.Context, cfg config.GridFSConfig) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &GridFSStore{
		client:        client,
		db:            client.Database(cfg.Database),
		publicBaseURL: cfg.PublicBaseURL,
		buckets:       make(map[string]*gridfs.Bucket),
	}, nil
}

// Close disconnects from MongoDB
func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *GridFSStore) bucket(name string) (*gridfs.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[name]; ok {
		return b, nil
	}
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, err
	}
	s.buckets[name] = b
	return b, nil
}

func (s *GridFSStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := b.UploadFromStream(path, bytes.NewReader(data), opts); err != nil {
		return "", err
	}
	return s.PublicURL(bucket, path), nil
}

func (s *GridFSStore) Delete(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	files, err := s.find(ctx, b, bson.M{"filename": bson.M{"$in": paths}})
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := b.DeleteContext(ctx, f.ID); err != nil && err != gridfs.ErrFileNotFound {
			return fmt.Errorf("failed to delete %s: %w", f.Name, err)
		}
	}
	return nil
}

func (s *GridFSStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"filename": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	files, err := s.find(ctx, b, filter)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(files))
	for _, f := range files {
		objects = append(objects, Object{
			Path:        f.Name,
			Size:        f.Length,
			ContentType: f.Metadata.ContentType,
			UpdatedAt:   f.UploadDate,
		})
	}
	return objects, nil
}

func (s *GridFSStore) Open(ctx context.Context, bucket, path string) (io.ReadCloser, Object, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, Object{}, err
	}

	files, err := s.find(ctx, b, bson.M{"filename": path})
	if err != nil {
		return nil, Object{}, err
	}
	if len(files) == 0 {
		return nil, Object{}, ErrObjectNotFound
	}

	// newest revision wins
	f := files[0]
	stream, err := b.OpenDownloadStream(f.ID)
	if err != nil {
		return nil, Object{}, err
	}
	return stream, Object{
		Path:        f.Name,
		Size:        f.Length,
		ContentType: f.Metadata.ContentType,
		UpdatedAt:   f.UploadDate,
	}, nil
}

func (s *GridFSStore) find(ctx context.Context, b *gridfs.Bucket, filter interface{}) ([]gridFile, error) {
	opts := options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	cursor, err := b.FindContext(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var files []gridFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *GridFSStore) PublicURL(bucket, path string) string {
	return joinURL(s.publicBaseURL+"/files", bucket, path)
}

func (s *GridFSStore) PathFromURL(bucket, url string) (string, bool) {
	return splitURL(bucket, url)
}
