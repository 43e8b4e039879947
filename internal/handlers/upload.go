package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/ratelimit"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

var errNoFiles = errors.New("no files in request")

const maxFileKey = "upload.max_file_bytes"

// UploadLimits caps multipart uploads. Request bounds the whole body; the
// others bound a single file of that kind. Zero means no limit.
type UploadLimits struct {
	Request  int64
	Image    int64
	Video    int64
	Document int64
}

// UploadLimit rejects bodies larger than maxBody and records maxFile for
// formFiles, which checks each part's declared size before reading it.
func UploadLimit(maxBody, maxFile int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBody > 0 {
			if c.Request.ContentLength > maxBody {
				log.Printf("[upload] path=%s content_length=%d limit=%d", c.FullPath(), c.Request.ContentLength, maxBody)
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("request body exceeds %d bytes", maxBody),
				})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		}
		if maxFile > 0 {
			c.Set(maxFileKey, maxFile)
		}
		c.Next()
	}
}

// formFiles reads every multipart file under field into memory
func formFiles(c *gin.Context, field string) ([]upload.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, errNoFiles
	}

	files := make([]upload.File, 0, len(headers))
	maxFile := c.GetInt64(maxFileKey)
	for _, fh := range headers {
		f, err := readFile(fh, maxFile)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// optionalFile returns the file under field, or nil when none was sent
func optionalFile(c *gin.Context, field string) (*upload.File, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	f, err := readFile(fh, c.GetInt64(maxFileKey))
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func readFile(fh *multipart.FileHeader, maxBytes int64) (upload.File, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return upload.File{}, apperr.Invalid("%s is %d bytes, limit is %d", fh.Filename, fh.Size, maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return upload.File{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return upload.File{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return upload.File{Name: fh.Filename, Data: data}, nil
}

// chain returns middleware followed by h without touching the caller's slice
func chain(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	out = append(out, middleware...)
	return append(out, h)
}

// RateLimit limits requests per signed-in user, falling back to client IP
func RateLimit(rl *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := auth.UserID(c.Request.Context())
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			retry := rl.RetryAfter(key)
			log.Printf("[ratelimit] key=%s path=%s retry_after=%s", key, c.FullPath(), retry)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
				"stats": rl.GetKeyStats(key),
			})
			return
		}
		c.Next()
	}
}
