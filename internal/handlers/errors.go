package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
)

// statusFor maps a service error onto an HTTP status and JSON body
func statusFor(err error) (int, gin.H) {
	var (
		validation  *apperr.ValidationError
		partial     *apperr.PartialUpdateError
		uploadErr   *apperr.UploadError
		persistence *apperr.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": err.Error()}
		if len(validation.Fields) > 0 {
			body["fields"] = validation.Fields
		}
		return http.StatusBadRequest, body
	case auth.IsUnauthenticated(err):
		return http.StatusUnauthorized, gin.H{"error": err.Error()}
	case errors.As(err, &partial):
		return http.StatusConflict, gin.H{
			"error":      err.Error(),
			"failed_ids": partial.FailedIDs,
			"applied":    partial.Applied,
		}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, apperr.ErrBusy):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.As(err, &persistence):
		return http.StatusInternalServerError, gin.H{
			"error":      err.Error(),
			"orphan_url": persistence.URL,
		}
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, gin.H{"error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}

// respondError writes err as JSON, logging server-side failures
func respondError(c *gin.Context, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[http] method=%s path=%s status=%d err=%v", c.Request.Method, c.FullPath(), status, err)
	}
	c.JSON(status, body)
}

// badRequest reports malformed request bodies or parameters. A body cut off
// by UploadLimit is reported as 413, an oversized file as a validation error.
func badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	var validation *apperr.ValidationError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
	case errors.As(err, &validation):
		respondError(c, err)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

// queryFloat parses an optional float query parameter
func queryFloat(c *gin.Context, key string) *float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &v
}
