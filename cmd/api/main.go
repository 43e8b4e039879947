package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/config"
	"github.com/RalphPichler23/twi-react-backend/internal/database"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "twi-admin",
		Short: "Admin backend for property listings and site content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		getEnv("CONFIG_PATH", "/app/config/config.yaml"), "Path to the YAML config file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(configPath)
			},
		},
		&cobra.Command{
			Use:   "reindex",
			Short: "Repair primary images and rebuild the search index once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return reindex(cmd.Context(), configPath)
			},
		},
		orphansCmd(&configPath),
	)
	return cmd
}

func orphansCmd(configPath *string) *cobra.Command {
	var (
		apply    bool
		maxCount int
	)
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Delete blobs left behind by failed uploads and deletes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := cleanup.DefaultCleanupConfig()
			cfg.DryRun = !apply
			if maxCount > 0 {
				cfg.MaxDeletionCount = maxCount
			}
			result, err := a.cleanup.Sweep(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			log.Printf("Orphan sweep: target=%d deleted=%d errors=%d dry_run=%v",
				result.TargetCount, result.DeletedCount, result.ErrorCount, result.DryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete blobs instead of only listing them")
	cmd.Flags().IntVar(&maxCount, "max", 0, "Refuse to run when more orphans than this are pending")
	return cmd
}

func migrate(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	gdb, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer gdb.Close()

	if err := gdb.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Println("Schema is up to date")
	return nil
}

func reindex(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scheduler.RunNow(ctx)
	if err != nil {
		return err
	}
	log.Printf("Reindex finished: repaired=%d indexed=%d duration=%s", result.Repaired, result.Indexed, result.Duration)
	return nil
}

// loadConfig reads the YAML file, applies environment overrides and validates
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded configuration from %s", path)

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv lets container environments override connection settings
func applyEnv(cfg *config.Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Database.Type = getEnv("DB_TYPE", cfg.Database.Type)

	switch cfg.Database.Type {
	case "mysql":
		m := &cfg.Database.MySQL
		m.Host = getEnvOrConfig(m.Host, "DB_HOST", "mysql")
		m.Port = getEnvInt(m.Port, "DB_PORT", 3306)
		m.User = getEnvOrConfig(m.User, "DB_USER", "twi_user")
		m.Password = getEnvOrConfig(m.Password, "DB_PASSWORD", "")
		m.Database = getEnvOrConfig(m.Database, "DB_NAME", "twi_db")
	default:
		p := &cfg.Database.Postgres
		p.Host = getEnvOrConfig(p.Host, "DB_HOST", "db")
		p.Port = getEnvInt(p.Port, "DB_PORT", 5432)
		p.User = getEnvOrConfig(p.User, "DB_USER", "twi_user")
		p.Password = getEnvOrConfig(p.Password, "DB_PASSWORD", "")
		p.Database = getEnvOrConfig(p.Database, "DB_NAME", "twi_db")
	}

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	s3 := &cfg.Storage.S3
	s3.Endpoint = getEnvOrConfig(s3.Endpoint, "S3_ENDPOINT", "")
	s3.AccessKeyID = getEnvOrConfig(s3.AccessKeyID, "S3_ACCESS_KEY_ID", "")
	s3.SecretAccessKey = getEnvOrConfig(s3.SecretAccessKey, "S3_SECRET_ACCESS_KEY", "")
	s3.PublicBaseURL = getEnvOrConfig(s3.PublicBaseURL, "S3_PUBLIC_BASE_URL", "")
	cfg.Storage.GridFS.URI = getEnvOrConfig(cfg.Storage.GridFS.URI, "MONGO_URI", "mongodb://mongo:27017")

	cfg.Auth.JWTSecret = getEnvOrConfig(cfg.Auth.JWTSecret, "JWT_SECRET", "")
	cfg.Auth.Redis.Addr = getEnvOrConfig(cfg.Auth.Redis.Addr, "REDIS_ADDR", "redis:6379")
	cfg.Auth.Redis.Password = getEnvOrConfig(cfg.Auth.Redis.Password, "REDIS_PASSWORD", "")

	cfg.Search.Meilisearch.Host = getEnvOrConfig(cfg.Search.Meilisearch.Host, "MEILISEARCH_HOST", "http://meilisearch:7700")
	cfg.Search.Meilisearch.APIKey = getEnvOrConfig(cfg.Search.Meilisearch.APIKey, "MEILISEARCH_KEY", "")

	cfg.Events.URL = getEnvOrConfig(cfg.Events.URL, "NATS_URL", "nats://nats:4222")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}

// getEnvInt is getEnvOrConfig for ports; 0 counts as unset
func getEnvInt(configValue int, envKey string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if v, err := strconv.Atoi(os.Getenv(envKey)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
