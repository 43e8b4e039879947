package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/content"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// ContentHandler serves blog posts, team members and testimonials
type ContentHandler struct {
	service *content.Service
}

// NewContentHandler creates a new content handler
func NewContentHandler(service *content.Service) *ContentHandler {
	return &ContentHandler{service: service}
}

// Register mounts the content routes on rg
func (h *ContentHandler) Register(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	blog := rg.Group("/blog")
	{
		blog.GET("", h.ListBlogPosts)
		blog.POST("", h.CreateBlogPost)
		blog.POST("/images", chain(uploads, h.UploadBlogImage)...)
		blog.GET("/:id", h.GetBlogPost)
		blog.PUT("/:id", h.UpdateBlogPost)
		blog.DELETE("/:id", h.DeleteBlogPost)
		blog.POST("/:id/toggle-published", h.TogglePublished)
	}

	team := rg.Group("/team")
	{
		team.GET("", h.ListTeamMembers)
		team.POST("", chain(uploads, h.CreateTeamMember)...)
		team.PUT("/order", h.ReorderTeamMembers)
		team.GET("/:id", h.GetTeamMember)
		team.PUT("/:id", chain(uploads, h.UpdateTeamMember)...)
		team.DELETE("/:id", h.DeleteTeamMember)
		team.POST("/:id/toggle-active", h.ToggleTeamMemberActive)
	}

	testimonials := rg.Group("/testimonials")
	{
		testimonials.GET("", h.ListTestimonials)
		testimonials.POST("", chain(uploads, h.CreateTestimonial)...)
		testimonials.PUT("/order", h.ReorderTestimonials)
		testimonials.GET("/:id", h.GetTestimonial)
		testimonials.PUT("/:id", chain(uploads, h.UpdateTestimonial)...)
		testimonials.DELETE("/:id", h.DeleteTestimonial)
		testimonials.POST("/:id/toggle-active", h.ToggleTestimonialActive)
	}
}

// bindWithPhoto decodes either a JSON body, or a multipart form with the
// JSON document in field "data" and an optional file in field "photo".
func bindWithPhoto(c *gin.Context, dst interface{}) (*upload.File, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, c.ShouldBindJSON(dst)
	}
	if err := json.Unmarshal([]byte(c.PostForm("data")), dst); err != nil {
		return nil, fmt.Errorf("invalid data field: %w", err)
	}
	return optionalFile(c, "photo")
}

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// ListBlogPosts returns posts, newest first
func (h *ContentHandler) ListBlogPosts(c *gin.Context) {
	posts, err := h.service.ListBlogPosts(c.Request.Context(), c.Query("published") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// GetBlogPost returns one post
func (h *ContentHandler) GetBlogPost(c *gin.Context) {
	post, err := h.service.GetBlogPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreateBlogPost stores a new post
func (h *ContentHandler) CreateBlogPost(c *gin.Context) {
	var in content.BlogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.service.CreateBlogPost(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdateBlogPost replaces a post
func (h *ContentHandler) UpdateBlogPost(c *gin.Context) {
	var in content.BlogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.service.UpdateBlogPost(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeleteBlogPost removes a post
func (h *ContentHandler) DeleteBlogPost(c *gin.Context) {
	if err := h.service.DeleteBlogPost(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TogglePublished publishes or unpublishes a post
func (h *ContentHandler) TogglePublished(c *gin.Context) {
	post, err := h.service.TogglePublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// UploadBlogImage stores an image for use in a post and returns its URL
func (h *ContentHandler) UploadBlogImage(c *gin.Context) {
	files, err := formFiles(c, "image")
	if err != nil {
		badRequest(c, err)
		return
	}
	url, err := h.service.UploadBlogImage(c.Request.Context(), files[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// ListTeamMembers returns members by display order
func (h *ContentHandler) ListTeamMembers(c *gin.Context) {
	members, err := h.service.ListTeamMembers(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "count": len(members)})
}

// GetTeamMember returns one member
func (h *ContentHandler) GetTeamMember(c *gin.Context) {
	m, err := h.service.GetTeamMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateTeamMember stores a new member with an optional photo
func (h *ContentHandler) CreateTeamMember(c *gin.Context) {
	var in content.TeamInput
	photo, err := bindWithPhoto(c, &in)
	if err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.service.CreateTeamMember(c.Request.Context(), &in, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UpdateTeamMember replaces a member, optionally with a new photo
func (h *ContentHandler) UpdateTeamMember(c *gin.Context) {
	var in content.TeamInput
	photo, err := bindWithPhoto(c, &in)
	if err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.service.UpdateTeamMember(c.Request.Context(), c.Param("id"), &in, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteTeamMember removes a member and the photo
func (h *ContentHandler) DeleteTeamMember(c *gin.Context) {
	if err := h.service.DeleteTeamMember(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleTeamMemberActive flips is_active
func (h *ContentHandler) ToggleTeamMemberActive(c *gin.Context) {
	m, err := h.service.ToggleTeamMemberActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ReorderTeamMembers sets display_order from the position of each id
func (h *ContentHandler) ReorderTeamMembers(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.ReorderTeamMembers(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTestimonials returns testimonials by display order
func (h *ContentHandler) ListTestimonials(c *gin.Context) {
	list, err := h.service.ListTestimonials(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"testimonials": list, "count": len(list)})
}

// GetTestimonial returns one testimonial
func (h *ContentHandler) GetTestimonial(c *gin.Context) {
	t, err := h.service.GetTestimonial(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTestimonial stores a new testimonial with an optional photo
func (h *ContentHandler) CreateTestimonial(c *gin.Context) {
	var in content.TestimonialInput
	photo, err := bindWithPhoto(c, &in)
	if err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.service.CreateTestimonial(c.Request.Context(), &in, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// UpdateTestimonial replaces a testimonial, optionally with a new photo
func (h *ContentHandler) UpdateTestimonial(c *gin.Context) {
	var in content.TestimonialInput
	photo, err := bindWithPhoto(c, &in)
	if err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.service.UpdateTestimonial(c.Request.Context(), c.Param("id"), &in, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTestimonial removes a testimonial and the photo
func (h *ContentHandler) DeleteTestimonial(c *gin.Context) {
	if err := h.service.DeleteTestimonial(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleTestimonialActive flips is_active
func (h *ContentHandler) ToggleTestimonialActive(c *gin.Context) {
	t, err := h.service.ToggleTestimonialActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ReorderTestimonials sets display_order from the position of each id
func (h *ContentHandler) ReorderTestimonials(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.ReorderTestimonials(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
