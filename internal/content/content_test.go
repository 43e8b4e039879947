package content

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/testsupport"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

type fixture struct {
	objects   *testsupport.FlakyStore
	publisher *testsupport.RecordingPublisher
	svc       *Service
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		objects:   testsupport.NewFlakyStore(),
		publisher: &testsupport.RecordingPublisher{},
	}
	f.svc = NewService(testsupport.NewDB(t), f.objects, Options{
		BlogBucket:        "blog_images",
		TeamBucket:        "team_photos",
		TestimonialBucket: "testimonial_photos",
		MaxImageBytes:     1 << 20,
		Publisher:         f.publisher,
	})
	f.ctx = auth.NewContext(context.Background(), &auth.Session{UserID: "user-1"})
	return f
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "wohnen-in-doebling", Slugify("Wohnen in Döbling"))
	assert.Equal(t, "grosse-terrasse-100-m", Slugify("  Große Terrasse: 100 m²! "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestReadingTimeAndExcerpt(t *testing.T) {
	body := "<h1>Titel</h1>\n<p>" + strings.Repeat("wort ", 450) + "</p><script>var x = 1;</script>"
	assert.Equal(t, 3, ReadingTime(body))
	assert.Equal(t, 1, ReadingTime("<p></p>"))

	excerpt := Excerpt(body)
	assert.True(t, strings.HasPrefix(excerpt, "Titel wort wort"))
	assert.LessOrEqual(t, len([]rune(excerpt)), excerptLength+1)
	assert.True(t, strings.HasSuffix(excerpt, "…"))
	assert.NotContains(t, excerpt, "var x")

	assert.Equal(t, "Kurz.", Excerpt("<p>Kurz.</p>"))
}

func TestBlogLifecycle(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	post, err := f.svc.CreateBlogPost(f.ctx, &BlogInput{
		Title:   "Kaufnebenkosten in Österreich",
		Content: "<p>Grunderwerbsteuer, Eintragungsgebühr und Makler.</p>",
		Tags:    []string{"kauf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "kaufnebenkosten-in-oesterreich", post.Slug)
	assert.Equal(t, 1, post.ReadingTime)
	assert.Equal(t, "Grunderwerbsteuer, Eintragungsgebühr und Makler.", post.Excerpt)
	assert.False(t, post.IsPublished)
	assert.Nil(t, post.PublishedAt)
	assert.Equal(t, "user-1", post.UserID)

	// a second post with the same title gets a numbered slug
	twin, err := f.svc.CreateBlogPost(f.ctx, &BlogInput{Title: "Kaufnebenkosten in Österreich", Content: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "kaufnebenkosten-in-oesterreich-2", twin.Slug)

	// a chosen slug that is taken is rejected
	_, err = f.svc.UpdateBlogPost(f.ctx, twin.ID, &BlogInput{Title: "x", Slug: post.Slug, Content: "<p>x</p>"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "slug")

	published, err := f.svc.TogglePublished(f.ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)
	firstPublish := *published.PublishedAt

	clock = clock.Add(24 * time.Hour)
	_, err = f.svc.TogglePublished(f.ctx, post.ID)
	require.NoError(t, err)
	again, err := f.svc.TogglePublished(f.ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, again.PublishedAt.Equal(firstPublish))

	list, err := f.svc.ListBlogPosts(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, post.ID, list[0].ID)

	require.NoError(t, f.svc.DeleteBlogPost(f.ctx, post.ID))
	assert.ErrorIs(t, f.svc.DeleteBlogPost(f.ctx, post.ID), apperr.ErrNotFound)
}

func TestBlogValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBlogPost(f.ctx, &BlogInput{Title: "", Content: ""})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "content")

	_, err = f.svc.CreateBlogPost(context.Background(), &BlogInput{Title: "a", Content: "b"})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTeamMembers(t *testing.T) {
	f := newFixture(t)

	anna, err := f.svc.CreateTeamMember(f.ctx, &TeamInput{Name: "Anna", Position: "Maklerin", DisplayOrder: 1},
		&upload.File{Name: "anna.png", Data: testsupport.PNG})
	require.NoError(t, err)
	require.NotNil(t, anna.PhotoURL)
	assert.True(t, anna.IsActive)
	assert.Contains(t, *anna.PhotoURL, "/team_photos/team/")
	assert.True(t, strings.HasSuffix(*anna.PhotoURL, ".png"))

	inactive := false
	ben, err := f.svc.CreateTeamMember(f.ctx, &TeamInput{Name: "Ben", Position: "Assistenz", IsActive: &inactive}, nil)
	require.NoError(t, err)
	assert.False(t, ben.IsActive)

	active, err := f.svc.ListTeamMembers(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, anna.ID, active[0].ID)

	// a new photo replaces the old blob
	oldPhoto := *anna.PhotoURL
	anna, err = f.svc.UpdateTeamMember(f.ctx, anna.ID, &TeamInput{Name: "Anna", Position: "Geschäftsführerin"},
		&upload.File{Name: "anna.jpg", Data: testsupport.JPEG})
	require.NoError(t, err)
	assert.NotEqual(t, oldPhoto, *anna.PhotoURL)
	assert.Equal(t, 1, f.objects.Count("team_photos"))

	require.NoError(t, f.svc.ReorderTeamMembers(f.ctx, []string{ben.ID, anna.ID}))
	all, err := f.svc.ListTeamMembers(f.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, ben.ID, all[0].ID)
	assert.Equal(t, 0, all[0].DisplayOrder)
	assert.Equal(t, 1, all[1].DisplayOrder)

	assert.ErrorIs(t, f.svc.ReorderTeamMembers(f.ctx, []string{ben.ID, "ghost"}), apperr.ErrNotFound)

	toggled, err := f.svc.ToggleTeamMemberActive(f.ctx, ben.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	require.NoError(t, f.svc.DeleteTeamMember(f.ctx, anna.ID))
	assert.Zero(t, f.objects.Count("team_photos"))
	_, err = f.svc.GetTeamMember(f.ctx, anna.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTeamPhotoMustBeImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTeamMember(f.ctx, &TeamInput{Name: "Anna", Position: "Maklerin"},
		&upload.File{Name: "cv.pdf", Data: testsupport.PDF})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, f.objects.PutCount())

	members, err := f.svc.ListTeamMembers(f.ctx, false)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestTestimonials(t *testing.T) {
	f := newFixture(t)

	bad := 6
	_, err := f.svc.CreateTestimonial(f.ctx, &TestimonialInput{ClientName: "Familie Huber", TestimonialText: "Top", Rating: &bad}, nil)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "rating")

	five := 5
	item, err := f.svc.CreateTestimonial(f.ctx, &TestimonialInput{
		ClientName:      "Familie Huber",
		TestimonialText: "Schnelle und ehrliche Beratung.",
		Rating:          &five,
	}, &upload.File{Name: "huber.png", Data: testsupport.PNG})
	require.NoError(t, err)
	assert.Contains(t, *item.PhotoURL, "/testimonial_photos/testimonials/")

	noRating, err := f.svc.CreateTestimonial(f.ctx, &TestimonialInput{ClientName: "M. Berger", TestimonialText: "Gerne wieder."}, nil)
	require.NoError(t, err)
	assert.Nil(t, noRating.Rating)

	toggled, err := f.svc.ToggleTestimonialActive(f.ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	require.NoError(t, f.svc.ReorderTestimonials(f.ctx, []string{noRating.ID, item.ID}))
	list, err := f.svc.ListTestimonials(f.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{noRating.ID, item.ID}, []string{list[0].ID, list[1].ID})

	f.objects.FailDelete = true
	require.NoError(t, f.svc.DeleteTestimonial(f.ctx, item.ID))

	var orphans []models.OrphanBlob
	require.NoError(t, f.svc.db.Find(&orphans).Error)
	require.Len(t, orphans, 1)
	assert.Equal(t, "testimonial_photos", orphans[0].Bucket)
}

func TestContentEvents(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreateBlogPost(f.ctx, &BlogInput{Title: "Hallo", Content: "<p>Welt</p>"})
	require.NoError(t, err)
	_, err = f.svc.TogglePublished(f.ctx, post.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"blog.create", "blog.publish"}, f.publisher.Ops())
}
