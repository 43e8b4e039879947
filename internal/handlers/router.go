package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/ratelimit"
)

// Routes holds every handler mounted under /api. Search and Files are
// optional and skipped when nil.
type Routes struct {
	Verifier    *auth.Verifier
	Revocations auth.Revocations
	RateLimiter *ratelimit.RateLimiter
	Limits      UploadLimits

	Auth       *AuthHandler
	Properties *PropertyHandler
	Gallery    *GalleryHandler
	Content    *ContentHandler
	Sidecosts  *SidecostsHandler
	Search     *SearchHandler
	Admin      *AdminHandler
	Files      *FilesHandler
}

// Mount registers /api behind the auth middleware, and /files when set
func (r *Routes) Mount(engine *gin.Engine) {
	if r.Files != nil {
		r.Files.Register(engine)
	}

	api := engine.Group("/api", auth.Middleware(r.Verifier, r.Revocations))

	r.Auth.Register(api)
	r.Properties.Register(api, r.uploads(r.Limits.Video)...)
	r.Gallery.Register(api, r.uploads(r.Limits.Image)...)
	r.Content.Register(api, r.uploads(r.Limits.Image)...)
	r.Sidecosts.Register(api, r.uploads(r.Limits.Document)...)
	if r.Search != nil {
		r.Search.Register(api)
	}
	r.Admin.Register(api)
}

// uploads is the middleware in front of routes that accept files
func (r *Routes) uploads(maxFile int64) []gin.HandlerFunc {
	var mw []gin.HandlerFunc
	if r.RateLimiter != nil {
		mw = append(mw, RateLimit(r.RateLimiter))
	}
	return append(mw, UploadLimit(r.Limits.Request, maxFile))
}
