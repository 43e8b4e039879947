package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/auth"
)

// AuthHandler exposes the session lifecycle: init and sign-out
type AuthHandler struct {
	revocations auth.Revocations
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(revocations auth.Revocations) *AuthHandler {
	return &AuthHandler{revocations: revocations}
}

// Register mounts the auth routes on rg
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/auth/session", h.Session)
	rg.POST("/auth/signout", h.SignOut)
}

// Session returns the caller's session
func (h *AuthHandler) Session(c *gin.Context) {
	session, err := auth.RequireSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SignOut revokes the bearer token until it expires
func (h *AuthHandler) SignOut(c *gin.Context) {
	session, err := auth.RequireSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	until := session.ExpiresAt
	if until.IsZero() {
		until = time.Now().Add(24 * time.Hour)
	}
	if err := h.revocations.Revoke(c.Request.Context(), session.Token, until); err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[auth] op=signout user_id=%s", session.UserID)
	c.Status(http.StatusNoContent)
}
