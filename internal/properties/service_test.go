package properties

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

const (
	imageBucket = "property_images"
	videoBucket = "property_videos"
)

type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[string]models.Property
	deleted []string
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[string]models.Property{}}
}

func (f *fakeIndexer) IndexProperty(p *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[p.ID] = *p
	return nil
}

func (f *fakeIndexer) DeleteProperty(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGallery struct {
	forgotten []string
}

func (g *fakeGallery) Forget(id string) { g.forgotten = append(g.forgotten, id) }

type fixture struct {
	db        *gorm.DB
	objects   *testsupport.FlakyStore
	indexer   *fakeIndexer
	gallery   *fakeGallery
	publisher *testsupport.RecordingPublisher
	svc       *Service
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:        testsupport.NewDB(t),
		objects:   testsupport.NewFlakyStore(),
		indexer:   newFakeIndexer(),
		gallery:   &fakeGallery{},
		publisher: &testsupport.RecordingPublisher{},
	}
	f.svc = NewService(f.db, f.objects, Options{
		ImageBucket:   imageBucket,
		VideoBucket:   videoBucket,
		MaxVideoBytes: 1 << 20,
		Indexer:       f.indexer,
		Gallery:       f.gallery,
		Publisher:     f.publisher,
	})
	f.ctx = auth.NewContext(context.Background(), &auth.Session{UserID: "user-1", Email: "makler@example.at"})
	return f
}

func validInput() *Input {
	return &Input{
		Title:       "Altbauwohnung im 7. Bezirk",
		Address:     "Neubaugasse 12",
		City:        "Wien",
		District:    "1070",
		Price:       489000,
		Area:        92.5,
		Rooms:       3,
		Bathrooms:   1,
		Type:        models.PropertyTypeApartment,
		Description: "Sanierte Altbauwohnung mit hohen Räumen und Fischgrätparkett.",
		Features:    []string{"Balkon", "Lift"},
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, models.PropertyStatusAvailable, p.Status)
	assert.Contains(t, f.indexer.indexed, p.ID)
	assert.Equal(t, []string{"create"}, f.publisher.Ops())

	d, err := f.svc.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Balkon", "Lift"}, []string(d.Features))
	assert.Empty(t, d.Images)
}

func TestCreateRequiresSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	var n int64
	require.NoError(t, f.db.Model(&models.Property{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.Title = ""
	in.District = "107"
	in.Price = 0
	in.Rooms = 0
	in.Type = "castle"
	in.Description = "zu kurz"
	in.Features = nil

	_, err := f.svc.Create(f.ctx, in)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "district", "price", "type", "description", "features"} {
		assert.Contains(t, verr.Fields, field)
	}
	// castle is not residential
	assert.NotContains(t, verr.Fields, "rooms")
}

func TestResidentialRequiresRooms(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.Type = models.PropertyTypeHouse
	in.Rooms = 0
	in.Bathrooms = 0
	_, err := f.svc.Create(f.ctx, in)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "rooms")
	assert.Contains(t, verr.Fields, "bathrooms")

	in.Type = models.PropertyTypeLand
	_, err = f.svc.Create(f.ctx, in)
	require.NoError(t, err)
}

func TestValidateStep(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.Price = 0
	in.Rooms = 0
	assert.NoError(t, f.svc.ValidateStep(StepBasic, in))
	assert.NoError(t, f.svc.ValidateStep(StepImages, in))
	assert.NoError(t, f.svc.ValidateStep(StepFeatures, in))

	err := f.svc.ValidateStep(StepDetails, in)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price")
	assert.Contains(t, verr.Fields, "rooms")

	assert.Error(t, f.svc.ValidateStep("summary", in))
}

func TestUpdateRecordsStatusChange(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Price = 450000
	in.Status = models.PropertyStatusReserved
	updated, err := f.svc.Update(f.ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 450000.0, updated.Price)
	assert.Equal(t, models.PropertyStatusReserved, updated.Status)

	history, err := f.svc.History(f.ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.PropertyStatusAvailable, history[0].OldStatus)
	assert.Equal(t, models.PropertyStatusReserved, history[0].NewStatus)
	assert.Equal(t, "user-1", history[0].UserID)

	_, err = f.svc.Update(f.ctx, "missing", validInput())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateKeepsMediaURLsWrittenAfterRead(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	// a new primary image and video land right after Update read the row
	const imageURL = "http://test.local/files/property_images/p/new-primary.jpg"
	const videoURL = "http://test.local/files/property_videos/p/tour.mp4"
	written := false
	err = f.db.Callback().Query().After("gorm:query").Register("test:media_written", func(tx *gorm.DB) {
		if written || tx.Statement.Table != "properties" {
			return
		}
		written = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE properties SET image_url = ?, video_url = ? WHERE id = ?", imageURL, videoURL, p.ID)
		if err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)

	in := validInput()
	in.Title = "Altbauwohnung mit Balkon"
	updated, err := f.svc.Update(f.ctx, p.ID, in)
	require.NoError(t, err)
	require.True(t, written)
	assert.Equal(t, "Altbauwohnung mit Balkon", updated.Title)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, imageURL, *updated.ImageURL)

	var stored models.Property
	require.NoError(t, f.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, "Altbauwohnung mit Balkon", stored.Title)
	require.NotNil(t, stored.ImageURL)
	assert.Equal(t, imageURL, *stored.ImageURL)
	require.NotNil(t, stored.VideoURL)
	assert.Equal(t, videoURL, *stored.VideoURL)
	assert.Equal(t, imageURL, *f.indexer.indexed[p.ID].ImageURL)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.SetStatus(f.ctx, p.ID, models.PropertyStatusAvailable)
	require.NoError(t, err)
	history, err := f.svc.History(f.ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	got, err := f.svc.SetStatus(f.ctx, p.ID, models.PropertyStatusSold)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusSold, got.Status)
	assert.Equal(t, models.PropertyStatusSold, f.indexer.indexed[p.ID].Status)

	history, err = f.svc.History(f.ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.svc.SetStatus(f.ctx, p.ID, "rented")
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPropertyOfMonthIsExclusive(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)
	b, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.SetPropertyOfMonth(f.ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.SetPropertyOfMonth(f.ctx, b.ID)
	require.NoError(t, err)

	var featured []string
	require.NoError(t, f.db.Model(&models.Property{}).Where("is_property_of_month = ?", true).Pluck("id", &featured).Error)
	assert.Equal(t, []string{b.ID}, featured)

	require.NoError(t, f.svc.RemovePropertyOfMonth(f.ctx, b.ID))
	featured = nil
	require.NoError(t, f.db.Model(&models.Property{}).Where("is_property_of_month = ?", true).Pluck("id", &featured).Error)
	assert.Empty(t, featured)

	_, err = f.svc.SetPropertyOfMonth(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUploadVideoReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	first, err := f.svc.UploadVideo(f.ctx, p.ID, upload.File{Name: "tour.mp4", Data: testsupport.MP4})
	require.NoError(t, err)
	require.NotNil(t, first.VideoURL)
	firstPath, ok := f.objects.PathFromURL(videoBucket, *first.VideoURL)
	require.True(t, ok)
	assert.Equal(t, p.ID+"/1717232400000.mp4", firstPath)

	clock = clock.Add(time.Minute)
	second, err := f.svc.UploadVideo(f.ctx, p.ID, upload.File{Name: "tour2.mp4", Data: testsupport.MP4})
	require.NoError(t, err)
	assert.NotEqual(t, *first.VideoURL, *second.VideoURL)
	assert.False(t, f.objects.Has(videoBucket, firstPath))
	assert.Equal(t, 1, f.objects.Count(videoBucket))

	require.NoError(t, f.svc.DeleteVideo(f.ctx, p.ID))
	assert.Zero(t, f.objects.Count(videoBucket))
	d, err := f.svc.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, d.VideoURL)

	assert.ErrorIs(t, f.svc.DeleteVideo(f.ctx, p.ID), apperr.ErrNotFound)
}

func TestUploadVideoRejectsOtherTypes(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.UploadVideo(f.ctx, p.ID, upload.File{Name: "tour.mp4", Data: testsupport.PNG})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, f.objects.PutCount())
}

func TestUploadVideoStorageFailure(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)
	f.objects.FailPut = true

	_, err = f.svc.UploadVideo(f.ctx, p.ID, upload.File{Name: "tour.mp4", Data: testsupport.MP4})
	var uerr *apperr.UploadError
	assert.ErrorAs(t, err, &uerr)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)

	url, err := f.objects.Put(f.ctx, imageBucket, p.ID+"/1-0.png", testsupport.PNG, "image/png")
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.PropertyImage{PropertyID: p.ID, ImageURL: url, IsPrimary: true}).Error)
	_, err = f.svc.UploadVideo(f.ctx, p.ID, upload.File{Name: "tour.mp4", Data: testsupport.MP4})
	require.NoError(t, err)
	_, err = f.svc.SetStatus(f.ctx, p.ID, models.PropertyStatusSold)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.ctx, p.ID))

	_, err = f.svc.Get(f.ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	var images int64
	require.NoError(t, f.db.Model(&models.PropertyImage{}).Where("property_id = ?", p.ID).Count(&images).Error)
	assert.Zero(t, images)
	assert.Zero(t, f.objects.Count(imageBucket))
	assert.Zero(t, f.objects.Count(videoBucket))
	assert.Equal(t, []string{p.ID}, f.indexer.deleted)
	assert.Equal(t, []string{p.ID}, f.gallery.forgotten)

	assert.ErrorIs(t, f.svc.Delete(f.ctx, p.ID), apperr.ErrNotFound)
}

func TestDeleteRecordsOrphans(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(f.ctx, validInput())
	require.NoError(t, err)
	url, err := f.objects.Put(f.ctx, imageBucket, p.ID+"/1-0.png", testsupport.PNG, "image/png")
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.PropertyImage{PropertyID: p.ID, ImageURL: url, IsPrimary: true}).Error)
	f.objects.FailDelete = true

	require.NoError(t, f.svc.Delete(f.ctx, p.ID))

	var orphans []models.OrphanBlob
	require.NoError(t, f.db.Find(&orphans).Error)
	require.Len(t, orphans, 1)
	assert.Equal(t, models.OrphanReasonDeleteFailed, orphans[0].Reason)
	assert.Equal(t, p.ID+"/1-0.png", orphans[0].Path)
}
