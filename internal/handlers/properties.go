package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/database"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/properties"
)

// PropertyHandler serves the property list, form and detail pages
type PropertyHandler struct {
	db      *database.GormDB
	service *properties.Service
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(db *database.GormDB, service *properties.Service) *PropertyHandler {
	return &PropertyHandler{db: db, service: service}
}

// Register mounts the property routes on rg
func (h *PropertyHandler) Register(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	rg.GET("/properties", h.List)
	rg.POST("/properties", h.Create)
	rg.POST("/properties/validate/:step", h.ValidateStep)
	rg.GET("/properties/of-month", h.GetPropertyOfMonth)
	rg.GET("/properties/:id", h.Get)
	rg.PUT("/properties/:id", h.Update)
	rg.DELETE("/properties/:id", h.Delete)
	rg.PUT("/properties/:id/status", h.SetStatus)
	rg.GET("/properties/:id/history", h.History)
	rg.POST("/properties/:id/of-month", h.SetPropertyOfMonth)
	rg.DELETE("/properties/:id/of-month", h.RemovePropertyOfMonth)
	rg.POST("/properties/:id/video", chain(uploads, h.UploadVideo)...)
	rg.DELETE("/properties/:id/video", h.DeleteVideo)

	rg.GET("/dashboard/stats", h.DashboardStats)
	rg.GET("/dashboard/recent", h.RecentProperties)
}

// List returns one page of the property overview
func (h *PropertyHandler) List(c *gin.Context) {
	filters := database.PropertyFilters{
		Search:   c.Query("search"),
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		District: c.Query("district"),
		MinPrice: queryFloat(c, "min_price"),
		MaxPrice: queryFloat(c, "max_price"),
		MinArea:  queryFloat(c, "min_area"),
		MaxArea:  queryFloat(c, "max_area"),
		SortBy:   c.DefaultQuery("sort", "newest"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", database.DefaultPageSize),
	}
	if v, err := strconv.Atoi(c.Query("min_rooms")); err == nil {
		filters.MinRooms = &v
	}
	if c.Query("mine") == "true" {
		filters.UserID = auth.UserID(c.Request.Context())
	}

	page, err := h.db.ListProperties(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns a property with its ordered images
func (h *PropertyHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create stores a new property for the signed-in user
func (h *PropertyHandler) Create(c *gin.Context) {
	var in properties.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Create(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ValidateStep checks one step of the property wizard
func (h *PropertyHandler) ValidateStep(c *gin.Context) {
	var in properties.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.ValidateStep(c.Param("step"), &in); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Update replaces the editable fields of a property
func (h *PropertyHandler) Update(c *gin.Context) {
	var in properties.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Update(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete removes a property with its images and video
func (h *PropertyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus changes the sales status
func (h *PropertyHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status models.PropertyStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// History returns recorded status changes
func (h *PropertyHandler) History(c *gin.Context) {
	changes, err := h.service.History(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"property_id": c.Param("id"),
		"changes":     changes,
		"count":       len(changes),
	})
}

// GetPropertyOfMonth returns the featured property
func (h *PropertyHandler) GetPropertyOfMonth(c *gin.Context) {
	p, err := h.db.PropertyOfMonth(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetPropertyOfMonth features one property
func (h *PropertyHandler) SetPropertyOfMonth(c *gin.Context) {
	p, err := h.service.SetPropertyOfMonth(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// RemovePropertyOfMonth clears the featured flag
func (h *PropertyHandler) RemovePropertyOfMonth(c *gin.Context) {
	if err := h.service.RemovePropertyOfMonth(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadVideo replaces the property video
func (h *PropertyHandler) UploadVideo(c *gin.Context) {
	files, err := formFiles(c, "video")
	if err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.UploadVideo(c.Request.Context(), c.Param("id"), files[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteVideo removes the property video
func (h *PropertyHandler) DeleteVideo(c *gin.Context) {
	if err := h.service.DeleteVideo(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DashboardStats returns portfolio counts and values
func (h *PropertyHandler) DashboardStats(c *gin.Context) {
	userID := ""
	if c.Query("mine") == "true" {
		userID = auth.UserID(c.Request.Context())
	}
	stats, err := h.db.DashboardStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RecentProperties returns the newest properties for the dashboard
func (h *PropertyHandler) RecentProperties(c *gin.Context) {
	userID := ""
	if c.Query("mine") == "true" {
		userID = auth.UserID(c.Request.Context())
	}
	list, err := h.db.RecentProperties(c.Request.Context(), userID, queryInt(c, "limit", 5))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": list,
		"count":      len(list),
	})
}
