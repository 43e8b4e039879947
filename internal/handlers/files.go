package handlers

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/storage"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// FilesHandler streams stored objects for backends without their own public URLs
type FilesHandler struct {
	opener storage.Opener
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(opener storage.Opener) *FilesHandler {
	return &FilesHandler{opener: opener}
}

// Register mounts GET /files/:bucket/*path
func (h *FilesHandler) Register(r gin.IRoutes) {
	r.GET("/files/:bucket/*path", h.Serve)
}

// Serve writes one object
func (h *FilesHandler) Serve(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}

	rc, obj, err := h.opener.Open(c.Request.Context(), c.Param("bucket"), objectPath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("X-Content-Type-Options", "nosniff")
	if !inline(contentType) {
		c.Header("Content-Disposition", "attachment")
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

// inline reports whether contentType is a media type the dashboard embeds.
// Anything else, markup in particular, is only offered as a download.
func inline(contentType string) bool {
	switch contentType {
	case "video/mp4", "application/pdf":
		return true
	}
	return slices.Contains(upload.Images, contentType)
}
