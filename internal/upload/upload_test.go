package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		file     File
		max      int64
		accept   []string
		wantType string
		wantExt  string
		wantErr  bool
	}{
		{"png by family", File{Name: "Front.PNG", Data: testsupport.PNG}, 1024, []string{"image/"}, "image/png", "png", false},
		{"jpeg without extension", File{Name: "photo", Data: testsupport.JPEG}, 1024, []string{"image/"}, "image/jpeg", "jpg", false},
		{"pdf exact", File{Name: "kosten.pdf", Data: testsupport.PDF}, 1024, []string{"application/pdf"}, "application/pdf", "pdf", false},
		{"mp4 exact", File{Name: "tour.mp4", Data: testsupport.MP4}, 1024, []string{"video/mp4"}, "video/mp4", "mp4", false},
		{"pdf as image", File{Name: "kosten.pdf", Data: testsupport.PDF}, 1024, []string{"image/"}, "", "", true},
		{"empty", File{Name: "a.png"}, 1024, []string{"image/"}, "", "", true},
		{"too large", File{Name: "a.png", Data: testsupport.PNG}, 8, []string{"image/"}, "", "", true},
		{"extension from content", File{Name: "x.html", Data: testsupport.PNG}, 1024, Images, "image/png", "png", false},
		{"jpeg named png", File{Name: "haus.png", Data: testsupport.JPEG}, 1024, Images, "image/jpeg", "jpg", false},
		{"svg not a photo", File{Name: "logo.svg", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)}, 1024, Images, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, ext, err := Check(tt.file, tt.max, tt.accept...)
			if tt.wantErr {
				var verr *apperr.ValidationError
				require.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ct)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}
