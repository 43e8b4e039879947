package content

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

const (
	wordsPerMinute = 200
	excerptLength  = 160
)

// BlogInput is the blog editor form
type BlogInput struct {
	Title            string   `json:"title" validate:"required,max=255"`
	Slug             string   `json:"slug" validate:"omitempty,max=255"`
	Excerpt          string   `json:"excerpt"`
	Content          string   `json:"content" validate:"required"`
	FeaturedImageURL *string  `json:"featured_image_url" validate:"omitempty,url"`
	Author           string   `json:"author" validate:"max=255"`
	IsPublished      bool     `json:"is_published"`
	ReadingTime      int      `json:"reading_time" validate:"gte=0"`
	Tags             []string `json:"tags" validate:"dive,required"`
}

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Slugify turns a title into a URL slug
func Slugify(title string) string {
	s := umlauts.Replace(strings.ToLower(title))
	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// PlainText extracts the visible text of an HTML body
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ReadingTime estimates minutes at 200 words per minute, at least 1
func ReadingTime(html string) int {
	words := len(strings.FieldsFunc(PlainText(html), unicode.IsSpace))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns the first 160 characters of text, cut at a word boundary
func Excerpt(html string) string {
	text := []rune(PlainText(html))
	if len(text) <= excerptLength {
		return string(text)
	}
	cut := string(text[:excerptLength])
	if i := strings.LastIndex(cut, " "); i > excerptLength/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// ListBlogPosts returns all posts, newest first
func (s *Service) ListBlogPosts(ctx context.Context, publishedOnly bool) ([]models.BlogPost, error) {
	var posts []models.BlogPost
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	err := q.Find(&posts).Error
	return posts, err
}

// GetBlogPost returns one post
func (s *Service) GetBlogPost(ctx context.Context, id string) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := s.first(ctx, &post, id); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreateBlogPost inserts a post owned by the caller
func (s *Service) CreateBlogPost(ctx context.Context, in *BlogInput) (*models.BlogPost, error) {
	session, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	post := &models.BlogPost{UserID: session.UserID}
	if err := s.applyBlog(ctx, post, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	log.Printf("[content] op=blog_create id=%s slug=%s", post.ID, post.Slug)
	s.emit(ctx, "blog", "create", post.ID)
	return post, nil
}

// UpdateBlogPost replaces the editable fields of a post
func (s *Service) UpdateBlogPost(ctx context.Context, id string, in *BlogInput) (*models.BlogPost, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	post, err := s.GetBlogPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyBlog(ctx, post, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(post).Error; err != nil {
		return nil, err
	}
	log.Printf("[content] op=blog_update id=%s", id)
	s.emit(ctx, "blog", "update", id)
	return post, nil
}

// DeleteBlogPost removes a post. Featured images may be shared and are kept.
func (s *Service) DeleteBlogPost(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.BlogPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	log.Printf("[content] op=blog_delete id=%s", id)
	s.emit(ctx, "blog", "delete", id)
	return nil
}

// TogglePublished flips is_published; published_at is set on the first publish
func (s *Service) TogglePublished(ctx context.Context, id string) (*models.BlogPost, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	post, err := s.GetBlogPost(ctx, id)
	if err != nil {
		return nil, err
	}

	post.IsPublished = !post.IsPublished
	updates := map[string]interface{}{"is_published": post.IsPublished}
	if post.IsPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
		updates["published_at"] = now
	}
	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, err
	}
	s.emit(ctx, "blog", "publish", id)
	return post, nil
}

// UploadBlogImage stores a featured image and returns its URL
func (s *Service) UploadBlogImage(ctx context.Context, f upload.File) (string, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return "", err
	}
	url, _, err := s.storePhoto(ctx, s.opts.BlogBucket, "blog", &f)
	return url, err
}

func (s *Service) applyBlog(ctx context.Context, post *models.BlogPost, in *BlogInput) error {
	slug := Slugify(in.Slug)
	generated := slug == ""
	if generated {
		slug = Slugify(in.Title)
	}
	if slug == "" {
		return &apperr.ValidationError{Fields: map[string]string{"slug": "cannot be derived from title"}}
	}
	slug, err := s.uniqueSlug(ctx, slug, post.ID, generated)
	if err != nil {
		return err
	}

	post.Title = in.Title
	post.Slug = slug
	post.Content = in.Content
	post.FeaturedImageURL = in.FeaturedImageURL
	post.Author = in.Author
	post.Tags = in.Tags
	post.Excerpt = in.Excerpt
	if post.Excerpt == "" {
		post.Excerpt = Excerpt(in.Content)
	}
	post.ReadingTime = in.ReadingTime
	if post.ReadingTime == 0 {
		post.ReadingTime = ReadingTime(in.Content)
	}
	if in.IsPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
	post.IsPublished = in.IsPublished
	return nil
}

// uniqueSlug returns slug or, for generated slugs, the first free slug-N.
// A chosen slug that is taken is rejected.
func (s *Service) uniqueSlug(ctx context.Context, slug, selfID string, generated bool) (string, error) {
	candidate := slug
	for n := 2; ; n++ {
		var count int64
		q := s.db.WithContext(ctx).Model(&models.BlogPost{}).Where("slug = ?", candidate)
		if selfID != "" {
			q = q.Where("id <> ?", selfID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		if !generated {
			return "", &apperr.ValidationError{Fields: map[string]string{"slug": "is already in use"}}
		}
		candidate = fmt.Sprintf("%s-%d", slug, n)
	}
}
