// Package upload checks files received from the dashboard before they are
// written to object storage.
package upload

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
)

// Images are the raster formats accepted for photos. SVG is left out since
// stored files can be served back from the API origin.
var Images = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/avif"}

// File is one uploaded file as received from the client
type File struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Check enforces the size limit and sniffs the content type. accept lists
// allowed MIME types; an entry ending in "/" allows the whole family.
func Check(f File, maxBytes int64, accept ...string) (contentType, ext string, err error) {
	if len(f.Data) == 0 {
		return "", "", apperr.Invalid("%s is empty", f.Name)
	}
	if maxBytes > 0 && f.Size() > maxBytes {
		return "", "", apperr.Invalid("%s is %d bytes, limit is %d", f.Name, f.Size(), maxBytes)
	}

	mt := mimetype.Detect(f.Data)
	if !accepted(mt, accept) {
		return "", "", apperr.Invalid("%s is %s, expected %s", f.Name, mt.String(), strings.Join(accept, " or "))
	}
	// strip parameters such as "; charset=utf-8"
	contentType = strings.TrimSpace(strings.SplitN(mt.String(), ";", 2)[0])
	// the extension follows the content, never the client's file name
	ext = strings.TrimPrefix(mt.Extension(), ".")
	if ext == "" {
		ext = "bin"
	}
	return contentType, ext, nil
}

func accepted(mt *mimetype.MIME, accept []string) bool {
	if len(accept) == 0 {
		return true
	}
	for _, a := range accept {
		if strings.HasSuffix(a, "/") {
			if strings.HasPrefix(mt.String(), a) {
				return true
			}
			continue
		}
		if mt.Is(a) {
			return true
		}
	}
	return false
}
