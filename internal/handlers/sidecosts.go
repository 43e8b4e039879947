package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/sidecosts"
)

// SidecostsHandler serves the rent and purchase side cost PDFs
type SidecostsHandler struct {
	service *sidecosts.Service
}

// NewSidecostsHandler creates a new side costs handler
func NewSidecostsHandler(service *sidecosts.Service) *SidecostsHandler {
	return &SidecostsHandler{service: service}
}

// Register mounts the side cost routes on rg
func (h *SidecostsHandler) Register(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	rg.GET("/sidecosts/:kind", h.Latest)
	rg.POST("/sidecosts/:kind", chain(uploads, h.Upload)...)
	rg.DELETE("/sidecosts/:kind", h.Remove)
}

// Latest returns the current document of a kind
func (h *SidecostsHandler) Latest(c *gin.Context) {
	kind, err := sidecosts.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := h.service.Latest(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// Upload replaces the document of a kind
func (h *SidecostsHandler) Upload(c *gin.Context) {
	kind, err := sidecosts.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}
	files, err := formFiles(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.service.Upload(c.Request.Context(), kind, files[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// Remove deletes the document of a kind
func (h *SidecostsHandler) Remove(c *gin.Context) {
	kind, err := sidecosts.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.service.Remove(c.Request.Context(), kind); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
