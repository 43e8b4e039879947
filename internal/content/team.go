package content

import (
	"context"
	"log"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
	"github.com/RalphPichler23/twi-react-backend/internal/upload"
)

// TeamInput is the team member form
type TeamInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Position     string `json:"position" validate:"required,max=255"`
	Description  string `json:"description"`
	Email        string `json:"email" validate:"omitempty,email"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
	IsActive     *bool  `json:"is_active"`
}

// ListTeamMembers returns members by display order
func (s *Service) ListTeamMembers(ctx context.Context, activeOnly bool) ([]models.TeamMember, error) {
	var members []models.TeamMember
	q := s.db.WithContext(ctx).Order("display_order ASC").Order("created_at ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&members).Error
	return members, err
}

// GetTeamMember returns one member
func (s *Service) GetTeamMember(ctx context.Context, id string) (*models.TeamMember, error) {
	var m models.TeamMember
	if err := s.first(ctx, &m, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateTeamMember inserts a member, storing photo first when given
func (s *Service) CreateTeamMember(ctx context.Context, in *TeamInput, photo *upload.File) (*models.TeamMember, error) {
	session, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	m := &models.TeamMember{UserID: session.UserID, IsActive: true}
	applyTeam(m, in)

	var path string
	if photo != nil {
		url, p, err := s.storePhoto(ctx, s.opts.TeamBucket, "team", photo)
		if err != nil {
			return nil, err
		}
		m.PhotoURL, path = &url, p
	}

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if m.PhotoURL != nil {
			return nil, s.persistFailed(ctx, s.opts.TeamBucket, path, *m.PhotoURL, err)
		}
		return nil, err
	}
	log.Printf("[content] op=team_create id=%s", m.ID)
	s.emit(ctx, "team", "create", m.ID)
	return m, nil
}

// UpdateTeamMember replaces the form fields; a new photo replaces the old blob
func (s *Service) UpdateTeamMember(ctx context.Context, id string, in *TeamInput, photo *upload.File) (*models.TeamMember, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	m, err := s.GetTeamMember(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := m.PhotoURL
	applyTeam(m, in)

	var path string
	if photo != nil {
		url, p, err := s.storePhoto(ctx, s.opts.TeamBucket, "team", photo)
		if err != nil {
			return nil, err
		}
		m.PhotoURL, path = &url, p
	}

	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		if photo != nil {
			return nil, s.persistFailed(ctx, s.opts.TeamBucket, path, *m.PhotoURL, err)
		}
		return nil, err
	}
	if photo != nil {
		s.removeBlob(ctx, s.opts.TeamBucket, previous)
	}
	log.Printf("[content] op=team_update id=%s", id)
	s.emit(ctx, "team", "update", id)
	return m, nil
}

// DeleteTeamMember removes the member and its photo
func (s *Service) DeleteTeamMember(ctx context.Context, id string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	m, err := s.GetTeamMember(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(m).Error; err != nil {
		return err
	}
	s.removeBlob(ctx, s.opts.TeamBucket, m.PhotoURL)
	log.Printf("[content] op=team_delete id=%s", id)
	s.emit(ctx, "team", "delete", id)
	return nil
}

// ToggleTeamMemberActive flips is_active
func (s *Service) ToggleTeamMemberActive(ctx context.Context, id string) (*models.TeamMember, error) {
	if _, err := auth.RequireSession(ctx); err != nil {
		return nil, err
	}
	m, err := s.GetTeamMember(ctx, id)
	if err != nil {
		return nil, err
	}
	m.IsActive = !m.IsActive
	if err := s.db.WithContext(ctx).Model(m).Update("is_active", m.IsActive).Error; err != nil {
		return nil, err
	}
	s.emit(ctx, "team", "toggle_active", id)
	return m, nil
}

// ReorderTeamMembers sets display_order to each id's index
func (s *Service) ReorderTeamMembers(ctx context.Context, ids []string) error {
	if _, err := auth.RequireSession(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return apperr.Invalid("no ids")
	}
	if err := s.checkIDs(ctx, &models.TeamMember{}, ids); err != nil {
		return err
	}
	if err := s.reorder(ctx, &models.TeamMember{}, ids); err != nil {
		return err
	}
	s.emit(ctx, "team", "reorder", "")
	return nil
}

func applyTeam(m *models.TeamMember, in *TeamInput) {
	m.Name = in.Name
	m.Position = in.Position
	m.Description = in.Description
	m.Email = in.Email
	m.DisplayOrder = in.DisplayOrder
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
}
