package content

import (
	"context"
	"log"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// TestimonialInput is the testimonial form
type TestimonialInput struct {
	ClientName      string `json:"client_name" validate:"required,max=255"`
	ClientPosition  string `json:"client_position" validate:"max=255"`
	ClientCompany   string `json:"client_company" validate:"max=255"`
	TestimonialText string `json:"testimonial_text" validate:"required"`
	Rating          *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	DisplayOrder    int    `json:"display_order" validate:"gte=0"`
	IsActive        *bool  `json:"is_active"`
}

// ListTestimonials returns testimonials by display order
func (s *Service) ListTestimonials(ctx context.Context, activeOnly bool) ([]models.Testimonial, error) {
	var items []models.Testimonial
	q := s.db.WithContext(ctx).Order("display_order ASC").Order("created_at ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&items).Error
	return items, err
}

// GetTestimonial returns one testimonial
func (s *Service) GetTestimonial(ctx context.Context, id string) (*models.Testimonial, error) {
	var t models.Testimonial
	if err := s.first(ctx, &t, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTestimonial inserts a testimonial, storing photo first when given
func (s *Service) CreateTestimonial(ctx context.Context, in *TestimonialInput, photo *upload.File) (*models.Testimonial, error) {
	session, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	t := &models.Testimonial{UserID: session.UserID, IsActive: true}
	applyTestimonial(t, in)

	var path string
	if photo != nil {
		url, p, err := s.storePhoto(ctx, s.opts.TestimonialBucket, "testimonials", photo)
		if err != nil {
			return nil, err
		}
		t.PhotoURL, path = &url, p
	}

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if t.PhotoURL != nil {
			return nil, s.persistFailed(ctx, s.opts.TestimonialBucket, path, *t.PhotoURL, err)
		}
		return nil, err
	}
	log.Printf("[content] op=testimonial_create id=%s", t.ID)
	s.emit(ctx, "testimonial", "create", t.ID)
	return t, nil
}

// UpdateTestimonial replaces the form fields; a new photo replaces the old blob
func (s *Service) UpdateTestimonial(ctx context.Context, id string, in *TestimonialInput, photo *upload.File) (*models.Testimonial, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	t, err := s.GetTestimonial(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := t.PhotoURL
	applyTestimonial(t, in)

	var path string
	if photo != nil {
		url, p, err := s.storePhoto(ctx, s.opts.TestimonialBucket, "testimonials", photo)
		if err != nil {
			return nil, err
		}
		t.PhotoURL, path = &url, p
	}

	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		if photo != nil {
			return nil, s.persistFailed(ctx, s.opts.TestimonialBucket, path, *t.PhotoURL, err)
		}
		return nil, err
	}
	if photo != nil {
		s.removeBlob(ctx, s.opts.TestimonialBucket, previous)
	}
	log.Printf("[content] op=testimonial_update id=%s", id)
	s.emit(ctx, "testimonial", "update", id)
	return t, nil
}

// DeleteTestimonial removes the testimonial and its photo
func (s *Service) DeleteTestimonial(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	t, err := s.GetTestimonial(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(t).Error; err != nil {
		return err
	}
	s.removeBlob(ctx, s.opts.TestimonialBucket, t.PhotoURL)
	log.Printf("[content] op=testimonial_delete id=%s", id)
	s.emit(ctx, "testimonial", "delete", id)
	return nil
}

// ToggleTestimonialActive flips is_active
func (s *Service) ToggleTestimonialActive(ctx context.Context, id string) (*models.Testimonial, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	t, err := s.GetTestimonial(ctx, id)
	if err != nil {
		return nil, err
	}
	t.IsActive = !t.IsActive
	if err := s.db.WithContext(ctx).Model(t).Update("is_active", t.IsActive).Error; err != nil {
		return nil, err
	}
	s.emit(ctx, "testimonial", "toggle_active", id)
	return t, nil
}

// ReorderTestimonials sets display_order to each id's index
func (s *Service) ReorderTestimonials(ctx context.Context, ids []string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return apperr.Invalid("no ids")
	}
	if err := s.checkIDs(ctx, &models.Testimonial{}, ids); err != nil {
		return err
	}
	if err := s.reorder(ctx, &models.Testimonial{}, ids); err != nil {
		return err
	}
	s.emit(ctx, "testimonial", "reorder", "")
	return nil
}

func applyTestimonial(t *models.Testimonial, in *TestimonialInput) {
	t.ClientName = in.ClientName
	t.ClientPosition = in.ClientPosition
	t.ClientCompany = in.ClientCompany
	t.TestimonialText = in.TestimonialText
	t.Rating = in.Rating
	t.DisplayOrder = in.DisplayOrder
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
}
