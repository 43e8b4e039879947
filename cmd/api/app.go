package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/config"
	"github.com/RalphPichler23/twi-react-backend/internal/content"
	"github.com/RalphPichler23/twi-react-backend/internal/database"
	"github.com/RalphPichler23/twi-react-backend/internal/events"
	"github.com/RalphPichler23/twi-react-backend/internal/gallery"
	"github.com/RalphPichler23/twi-react-backend/internal/handlers"
	"github.com/RalphPichler23/twi-react-backend/internal/metrics"
	"github.com/RalphPichler23/twi-react-backend/internal/properties"
	"github.com/RalphPichler23/twi-react-backend/internal/ratelimit"
	"github.com/RalphPichler23/twi-react-backend/internal/scheduler"
	"github.com/RalphPichler23/twi-react-backend/internal/search"
	"github.com/RalphPichler23/twi-react-backend/internal/sidecosts"
	"github.com/RalphPichler23/twi-react-backend/internal/storage"
)

// app holds every long-lived dependency of the process
type app struct {
	cfg      *config.Config
	db       *database.GormDB
	objects  storage.ObjectStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	publisher events.Publisher
	searcher  *search.SearchClient
	redis     *redis.Client

	gallery    *gallery.Manager
	properties *properties.Service
	content    *content.Service
	sidecosts  *sidecosts.Service
	cleanup    *cleanup.Service
	scheduler  *scheduler.Scheduler

	closers []func()
}

// newApp loads the config and builds every service. Optional backends
// (search, events, redis) only log when they are unreachable.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	a.db, err = database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })
	if err := a.db.InitSchema(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	baseURL := getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Server.Port)
	a.objects, err = storage.Open(ctx, cfg.Storage, baseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open object storage: %w", err)
	}
	if gs, ok := a.objects.(*storage.GridFSStore); ok {
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = gs.Close(closeCtx)
		})
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			log.Printf("Warning: events disabled: %v", err)
		} else {
			a.publisher = pub
			a.closers = append(a.closers, func() { _ = pub.Close() })
			log.Printf("Publishing events to %s", cfg.Events.URL)
		}
	}

	if cfg.Search.Enabled {
		mc := cfg.Search.Meilisearch
		a.searcher = search.NewSearchClient(mc.Host, mc.APIKey, mc.Index)
		if err := a.searcher.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
	}

	a.buildServices()
	return a, nil
}

func (a *app) buildServices() {
	cfg := a.cfg
	buckets := cfg.Storage.Buckets
	gormDB := a.db.DB()

	galleryStore := gallery.NewStore(gormDB)
	a.gallery = gallery.NewManager(galleryStore, a.objects, gallery.Options{
		Bucket:    buckets.PropertyImages,
		MaxBytes:  cfg.Upload.MaxImageBytes(),
		Parallel:  cfg.Upload.ParallelUploads,
		Publisher: a.publisher,
		Metrics:   a.metrics,
	})

	propertyOpts := properties.Options{
		ImageBucket:   buckets.PropertyImages,
		VideoBucket:   buckets.PropertyVideo,
		MaxVideoBytes: cfg.Upload.MaxVideoBytes(),
		Gallery:       a.gallery,
		Publisher:     a.publisher,
		Metrics:       a.metrics,
	}
	// Indexer stays a nil interface when search is off
	if a.searcher != nil {
		propertyOpts.Indexer = search.NewCircuitBreaker(a.searcher, 3, time.Minute)
	}
	a.properties = properties.NewService(gormDB, a.objects, propertyOpts)
	a.gallery.OnPrimaryChanged(a.properties.Reindex)

	a.content = content.NewService(gormDB, a.objects, content.Options{
		BlogBucket:        buckets.BlogImages,
		TeamBucket:        buckets.TeamPhotos,
		TestimonialBucket: buckets.TestimonialPhotos,
		MaxImageBytes:     cfg.Upload.MaxImageBytes(),
		Publisher:         a.publisher,
		Metrics:           a.metrics,
	})
	a.sidecosts = sidecosts.NewService(a.objects, buckets.Sidecosts, cfg.Upload.MaxDocumentBytes(), a.publisher, a.metrics)
	a.cleanup = cleanup.NewService(gormDB, a.objects)

	var indexer scheduler.BulkIndexer
	if a.searcher != nil {
		indexer = a.searcher
	}
	a.scheduler = scheduler.NewScheduler(cfg.Scheduler, a.db, indexer, galleryStore)
}

// revocations picks Redis when configured so sign-outs survive restarts
func (a *app) revocations(ctx context.Context) auth.Revocations {
	rc := a.cfg.Auth.Redis
	if !rc.Enabled {
		return auth.NewMemoryRevocations()
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unreachable at %s, sign-outs are kept in memory: %v", rc.Addr, err)
		_ = a.redis.Close()
		a.redis = nil
		return auth.NewMemoryRevocations()
	}
	client := a.redis
	a.closers = append(a.closers, func() { _ = client.Close() })
	log.Printf("Session revocations stored in Redis at %s", rc.Addr)
	return auth.NewRedisRevocations(client)
}

// router builds the gin engine with every route mounted
func (a *app) router(ctx context.Context) *gin.Engine {
	cfg := a.cfg
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Logging.LogRequests {
		r.Use(gin.Logger())
	}
	r.Use(a.metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour, true)
		log.Printf("Rate limiter initialized: %d req/min, %d req/hour",
			cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour)
	} else {
		limiter = ratelimit.NewRateLimiter(0, 0, false)
	}

	revocations := a.revocations(ctx)
	routes := &handlers.Routes{
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret),
		Revocations: revocations,
		RateLimiter: limiter,
		Limits: handlers.UploadLimits{
			Request:  cfg.Upload.MaxRequestBytes(),
			Image:    cfg.Upload.MaxImageBytes(),
			Video:    cfg.Upload.MaxVideoBytes(),
			Document: cfg.Upload.MaxDocumentBytes(),
		},
		Auth:       handlers.NewAuthHandler(revocations),
		Properties: handlers.NewPropertyHandler(a.db, a.properties),
		Gallery:    handlers.NewGalleryHandler(a.gallery),
		Content:    handlers.NewContentHandler(a.content),
		Sidecosts:  handlers.NewSidecostsHandler(a.sidecosts),
		Admin:      handlers.NewAdminHandler(a.cleanup, a.scheduler, limiter),
	}
	if a.searcher != nil {
		routes.Search = handlers.NewSearchHandler(a.searcher)
	}
	// Stores without public URLs are served through /files
	if opener, ok := a.objects.(storage.Opener); ok && cfg.Storage.Driver != "s3" {
		routes.Files = handlers.NewFilesHandler(opener)
	}
	routes.Mount(r)

	log.Println("API routes registered at /api/*")
	return r
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer a.scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           a.router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", a.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
