package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/cleanup"
	"github.com/RalphPichler23/twi-react-backend/internal/ratelimit"
	"github.com/RalphPichler23/twi-react-backend/internal/scheduler"
)

// Reindexer runs the nightly maintenance job on demand
type Reindexer interface {
	RunNow(ctx context.Context) (*scheduler.RunResult, error)
	LastRun() *scheduler.RunResult
}

// AdminHandler handles maintenance requests
type AdminHandler struct {
	cleanupService *cleanup.Service
	reindexer      Reindexer
	rateLimiter    *ratelimit.RateLimiter
}

// NewAdminHandler creates a new admin handler. reindexer may be nil when search is disabled.
func NewAdminHandler(cleanupService *cleanup.Service, reindexer Reindexer, rl *ratelimit.RateLimiter) *AdminHandler {
	return &AdminHandler{
		cleanupService: cleanupService,
		reindexer:      reindexer,
		rateLimiter:    rl,
	}
}

// Register mounts the admin routes on rg
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	{
		admin.GET("/orphans", h.GetOrphans)
		admin.GET("/orphans/stats", h.GetOrphanStats)
		admin.POST("/orphans/sweep", h.SweepOrphans)

		admin.POST("/reindex", h.TriggerReindex)
		admin.GET("/reindex/status", h.GetReindexStatus)

		admin.GET("/ratelimit/stats", h.GetRateLimitStats)
	}
}

// GetOrphans lists blobs waiting for cleanup
func (h *AdminHandler) GetOrphans(c *gin.Context) {
	orphans, err := h.cleanupService.FindOrphans(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orphans": orphans,
		"count":   len(orphans),
	})
}

// GetOrphanStats returns orphan counts
func (h *AdminHandler) GetOrphanStats(c *gin.Context) {
	stats, err := h.cleanupService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SweepOrphans deletes pending orphan blobs. Dry run unless dry_run is false.
func (h *AdminHandler) SweepOrphans(c *gin.Context) {
	var req struct {
		MaxDeletionCount int   `json:"max_deletion_count"`
		DryRun           *bool `json:"dry_run"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	config := cleanup.DefaultCleanupConfig()
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	if req.DryRun != nil {
		config.DryRun = *req.DryRun
	}

	log.Printf("[admin] op=sweep max=%d dry_run=%v", config.MaxDeletionCount, config.DryRun)
	result, err := h.cleanupService.Sweep(c.Request.Context(), config)
	if err != nil {
		log.Printf("[admin] op=sweep err=%v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// TriggerReindex starts the maintenance job. With ?wait=true it runs inline
// and returns the result.
func (h *AdminHandler) TriggerReindex(c *gin.Context) {
	if h.reindexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is disabled"})
		return
	}

	if c.Query("wait") == "true" {
		result, err := h.reindexer.RunNow(c.Request.Context())
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	log.Println("[admin] manual reindex requested")
	go func() {
		if _, err := h.reindexer.RunNow(context.Background()); err != nil {
			log.Printf("[admin] manual reindex failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Reindex started",
		"status":  "running",
	})
}

// GetReindexStatus returns the last completed run
func (h *AdminHandler) GetReindexStatus(c *gin.Context) {
	if h.reindexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is disabled"})
		return
	}
	last := h.reindexer.LastRun()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"status": "never_run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "last_run": last})
}

// GetRateLimitStats returns limiter statistics, plus the usage of ?key when given
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	stats := gin.H{"limiter": h.rateLimiter.GetStats()}
	if key := c.Query("key"); key != "" {
		stats["key"] = h.rateLimiter.GetKeyStats(key)
	}
	c.JSON(http.StatusOK, stats)
}
