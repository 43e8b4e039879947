package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/gallery"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// GalleryHandler serves the image gallery of a property
type GalleryHandler struct {
	manager *gallery.Manager
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(manager *gallery.Manager) *GalleryHandler {
	return &GalleryHandler{manager: manager}
}

// Register mounts the gallery routes on rg
func (h *GalleryHandler) Register(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	rg.GET("/properties/:id/images", h.Get)
	rg.POST("/properties/:id/images", chain(uploads, h.Upload)...)
	rg.PUT("/properties/:id/images/order", h.Reorder)
	rg.POST("/properties/:id/images/move", h.Move)
	rg.PUT("/properties/:id/images/:imageId/primary", h.SetPrimary)
	rg.DELETE("/properties/:id/images/:imageId", h.Delete)
}

// GalleryItem is one thumbnail with its 1-based position badge
type GalleryItem struct {
	models.PropertyImage
	Position int `json:"position"`
}

// GalleryView is the gallery as the dashboard renders it
type GalleryView struct {
	PropertyID string        `json:"property_id"`
	Images     []GalleryItem `json:"images"`
	Count      int           `json:"count"`
	PrimaryID  string        `json:"primary_id,omitempty"`
	Uploading  int           `json:"uploading"`
	Busy       string        `json:"busy"`
	Editable   bool          `json:"editable"`
}

// NewGalleryView builds the view of a snapshot
func NewGalleryView(s *gallery.Snapshot) GalleryView {
	v := GalleryView{
		PropertyID: s.PropertyID,
		Images:     make([]GalleryItem, len(s.Images)),
		Count:      len(s.Images),
		Uploading:  s.State.Uploading,
		Busy:       s.State.Busy,
		Editable:   s.State.Uploading == 0 && s.State.Busy == gallery.OpNone.String(),
	}
	for i, img := range s.Images {
		v.Images[i] = GalleryItem{PropertyImage: img, Position: i + 1}
		if img.IsPrimary {
			v.PrimaryID = img.ID
		}
	}
	return v
}

// Get returns the current gallery
func (h *GalleryHandler) Get(c *gin.Context) {
	snap, err := h.manager.Gallery(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewGalleryView(snap))
}

type uploadResultView struct {
	Filename string                `json:"filename"`
	Image    *models.PropertyImage `json:"image,omitempty"`
	Error    string                `json:"error,omitempty"`
	Status   int                   `json:"status"`
}

// Upload stores the files sent as multipart field "images".
// Responds 201 when every file was stored and 207 when only some were.
func (h *GalleryHandler) Upload(c *gin.Context) {
	files, err := formFiles(c, "images")
	if err != nil {
		badRequest(c, err)
		return
	}

	propertyID := c.Param("id")
	results, err := h.manager.Upload(c.Request.Context(), propertyID, files)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]uploadResultView, len(results))
	failed := 0
	for i, r := range results {
		views[i] = uploadResultView{Filename: r.Filename, Image: r.Image, Status: http.StatusCreated}
		if r.Err != nil {
			failed++
			views[i].Status, _ = statusFor(r.Err)
			views[i].Error = r.Err.Error()
		}
	}

	status := http.StatusCreated
	if failed == len(results) {
		status, _ = statusFor(results[0].Err)
	} else if failed > 0 {
		status = http.StatusMultiStatus
	}

	body := gin.H{
		"results":  views,
		"uploaded": len(results) - failed,
		"failed":   failed,
	}
	if snap, err := h.manager.Gallery(c.Request.Context(), propertyID); err == nil {
		body["gallery"] = NewGalleryView(snap)
	}
	c.JSON(status, body)
}

// Reorder persists a full new order
func (h *GalleryHandler) Reorder(c *gin.Context) {
	var req struct {
		ImageIDs []string `json:"image_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.manager.Reorder(c.Request.Context(), c.Param("id"), req.ImageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewGalleryView(snap))
}

// Move applies one drag gesture from position to position (0-based)
func (h *GalleryHandler) Move(c *gin.Context) {
	var req struct {
		From *int `json:"from" binding:"required"`
		To   *int `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.manager.Move(c.Request.Context(), c.Param("id"), *req.From, *req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewGalleryView(snap))
}

// SetPrimary marks one image as the property's primary image
func (h *GalleryHandler) SetPrimary(c *gin.Context) {
	snap, err := h.manager.SetPrimary(c.Request.Context(), c.Param("id"), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewGalleryView(snap))
}

// Delete removes one image
func (h *GalleryHandler) Delete(c *gin.Context) {
	snap, err := h.manager.Delete(c.Request.Context(), c.Param("id"), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewGalleryView(snap))
}
