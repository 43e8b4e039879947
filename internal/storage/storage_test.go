package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagePath(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "p1/1700000000123-2.jpg", ImagePath("p1", ts, 2, "jpg"))
	assert.Equal(t, "p1/1700000000123.mp4", VideoPath("p1", ts))
}

func TestSplitURL(t *testing.T) {
	url := "https://abc.supabase.co/storage/v1/object/public/property_images/p1/123-0.jpg"
	p, ok := splitURL("property_images", url)
	require.True(t, ok)
	assert.Equal(t, "p1/123-0.jpg", p)

	p, ok = splitURL("property_images", url+"?token=x")
	require.True(t, ok)
	assert.Equal(t, "p1/123-0.jpg", p)

	_, ok = splitURL("property_video", url)
	assert.False(t, ok)

	_, ok = splitURL("property_images", "https://cdn/property_images/")
	assert.False(t, ok)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("http://localhost:8080")

	url, err := s.Put(ctx, "sidecosts", "rent/a.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/sidecosts/rent/a.pdf", url)

	p, ok := s.PathFromURL("sidecosts", url)
	require.True(t, ok)
	assert.Equal(t, "rent/a.pdf", p)

	_, err = s.Put(ctx, "sidecosts", "purchase/b.pdf", []byte("%PDF-1"), "application/pdf")
	require.NoError(t, err)

	objs, err := s.List(ctx, "sidecosts", "rent/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "rent/a.pdf", objs[0].Path)
	assert.Equal(t, int64(4), objs[0].Size)

	rc, obj, err := s.Open(ctx, "sidecosts", "rent/a.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "application/pdf", obj.ContentType)

	require.NoError(t, s.Delete(ctx, "sidecosts", "rent/a.pdf"))
	assert.False(t, s.Has("sidecosts", "rent/a.pdf"))
	assert.Equal(t, 1, s.Count("sidecosts"))

	_, _, err = s.Open(ctx, "sidecosts", "rent/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
