package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Upload    UploadConfig    `yaml:"upload"`
	Auth      AuthConfig      `yaml:"auth"`
	Search    SearchConfig    `yaml:"search"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ReleaseMode    bool     `yaml:"release_mode"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	LogSQL   bool           `yaml:"log_sql"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig selects the object storage backend and its bucket names
type StorageConfig struct {
	Driver  string        `yaml:"driver"`
	S3      S3Config      `yaml:"s3"`
	GridFS  GridFSConfig  `yaml:"gridfs"`
	Buckets BucketsConfig `yaml:"buckets"`
}

// S3Config contains settings for an S3-compatible endpoint
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// GridFSConfig contains MongoDB GridFS settings
type GridFSConfig struct {
	URI           string `yaml:"uri"`
	Database      string `yaml:"database"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// BucketsConfig names the buckets used per asset kind
type BucketsConfig struct {
	PropertyImages    string `yaml:"property_images"`
	PropertyVideo     string `yaml:"property_video"`
	Sidecosts         string `yaml:"sidecosts"`
	TeamPhotos        string `yaml:"team_photos"`
	TestimonialPhotos string `yaml:"testimonial_photos"`
	BlogImages        string `yaml:"blog_images"`
}

// UploadConfig contains upload limits
type UploadConfig struct {
	MaxImageMB      int `yaml:"max_image_mb"`
	MaxVideoMB      int `yaml:"max_video_mb"`
	MaxDocumentMB   int `yaml:"max_document_mb"`
	MaxRequestMB    int `yaml:"max_request_mb"`
	ParallelUploads int `yaml:"parallel_uploads"`
}

// AuthConfig contains session verification settings
type AuthConfig struct {
	JWTSecret string      `yaml:"jwt_secret"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the sign-out revocation list
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// EventsConfig contains NATS publishing settings
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RateLimitConfig contains upload rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// SchedulerConfig contains cron job settings
type SchedulerConfig struct {
	ReindexEnabled bool   `yaml:"reindex_enabled"`
	ReindexTime    string `yaml:"reindex_time"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Type: "postgres",
			Postgres: PostgresConfig{
				SSLMode: "disable",
			},
		},
		Storage: StorageConfig{
			Driver: "s3",
			S3: S3Config{
				Region:         "eu-central-1",
				ForcePathStyle: true,
			},
			GridFS: GridFSConfig{
				Database: "twi_assets",
			},
			Buckets: BucketsConfig{
				PropertyImages:    "property_images",
				PropertyVideo:     "property_video",
				Sidecosts:         "sidecosts",
				TeamPhotos:        "team_photos",
				TestimonialPhotos: "testimonial_photos",
				BlogImages:        "blog_images",
			},
		},
		Upload: UploadConfig{
			MaxImageMB:      10,
			MaxVideoMB:      50,
			MaxDocumentMB:   10,
			MaxRequestMB:    120,
			ParallelUploads: 4,
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Index: "properties",
			},
		},
		Events: EventsConfig{
			SubjectPrefix: "twi",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			RequestsPerHour:   600,
		},
		Scheduler: SchedulerConfig{
			ReindexEnabled: false,
			ReindexTime:    "03:00",
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	// Missing file means defaults
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks values that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	switch c.Storage.Driver {
	case "s3", "gridfs", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Upload.MaxImageMB <= 0 || c.Upload.MaxVideoMB <= 0 || c.Upload.MaxDocumentMB <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}
	// a multipart body must fit at least one file of every kind
	if c.Upload.MaxRequestMB < max(c.Upload.MaxImageMB, c.Upload.MaxVideoMB, c.Upload.MaxDocumentMB) {
		return fmt.Errorf("upload.max_request_mb (%d) is below a per-file limit", c.Upload.MaxRequestMB)
	}
	if c.Upload.ParallelUploads <= 0 {
		return fmt.Errorf("upload.parallel_uploads must be positive, got %d", c.Upload.ParallelUploads)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	return nil
}

const megabyte = 1 << 20

// MaxImageBytes returns the image size limit in bytes
func (c *UploadConfig) MaxImageBytes() int64 {
	return int64(c.MaxImageMB) * megabyte
}

// MaxVideoBytes returns the video size limit in bytes
func (c *UploadConfig) MaxVideoBytes() int64 {
	return int64(c.MaxVideoMB) * megabyte
}

// MaxDocumentBytes returns the document size limit in bytes
func (c *UploadConfig) MaxDocumentBytes() int64 {
	return int64(c.MaxDocumentMB) * megabyte
}

// MaxRequestBytes returns the multipart body limit in bytes
func (c *UploadConfig) MaxRequestBytes() int64 {
	return int64(c.MaxRequestMB) * megabyte
}

// CronSpec converts the HH:MM reindex time into a cron expression
// Example: "03:30" -> "30 3 * * *"
func (c *SchedulerConfig) CronSpec() string {
	var hour, minute int
	n, _ := fmt.Sscanf(c.ReindexTime, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}
	return "0 3 * * *"
}

// ShutdownTimeout is how long the server waits for in-flight requests on exit
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return 10 * time.Second
}
