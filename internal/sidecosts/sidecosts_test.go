package sidecosts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

const bucket = "sidecosts"

func newService(t *testing.T) (*Service, *testsupport.FlakyStore, context.Context) {
	t.Helper()
	objects := testsupport.NewFlakyStore()
	svc := NewService(objects, bucket, 1<<20, nil, nil)
	ctx := auth.NewContext(context.Background(), &auth.Session{UserID: "user-1"})
	return svc, objects, ctx
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("rent")
	require.NoError(t, err)
	assert.Equal(t, KindRent, k)

	_, err = ParseKind("lease")
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUploadReplacesAndLatest(t *testing.T) {
	svc, objects, ctx := newService(t)
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	objects.SetClock(func() time.Time { return clock })

	_, err := svc.Latest(ctx, KindRent)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first, err := svc.Upload(ctx, KindRent, upload.File{Name: "miete.pdf", Data: testsupport.PDF})
	require.NoError(t, err)
	assert.Equal(t, "nebenkosten_rent_1705312800000.pdf", first.Filename)
	assert.Equal(t, "rent/nebenkosten_rent_1705312800000.pdf", first.ID)

	clock = clock.Add(time.Hour)
	second, err := svc.Upload(ctx, KindRent, upload.File{Name: "miete-neu.pdf", Data: testsupport.PDF})
	require.NoError(t, err)
	assert.Equal(t, 1, objects.Count(bucket))

	latest, err := svc.Latest(ctx, KindRent)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, second.URL, latest.URL)
	assert.Equal(t, int64(len(testsupport.PDF)), latest.FileSize)

	// purchase is independent of rent
	_, err = svc.Upload(ctx, KindPurchase, upload.File{Name: "kauf.pdf", Data: testsupport.PDF})
	require.NoError(t, err)
	assert.Equal(t, 2, objects.Count(bucket))

	require.NoError(t, svc.Remove(ctx, KindRent))
	_, err = svc.Latest(ctx, KindRent)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Latest(ctx, KindPurchase)
	assert.NoError(t, err)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	svc, objects, ctx := newService(t)

	_, err := svc.Upload(ctx, KindPurchase, upload.File{Name: "kauf.pdf", Data: testsupport.PNG})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, objects.PutCount())
}

func TestUploadStorageFailure(t *testing.T) {
	svc, objects, ctx := newService(t)
	objects.FailPut = true

	_, err := svc.Upload(ctx, KindRent, upload.File{Name: "miete.pdf", Data: testsupport.PDF})
	var uerr *apperr.UploadError
	assert.ErrorAs(t, err, &uerr)
}

func TestUploadRequiresSession(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Upload(context.Background(), KindRent, upload.File{Name: "miete.pdf", Data: testsupport.PDF})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}
