package investigations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// Service handles investigation business logic. Every read and write is
// scoped to the calling principal, who must own the investigation.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new investigation service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("investigations.svc")),
	}
}

// Create creates a new investigation owned by principal.
func (s *Service) Create(ctx context.Context, principal string, req CreateInvestigationRequest) (*Investigation, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.NewInvalid("investigation title cannot be empty")
	}

	now := time.Now().UTC()
	inv := &Investigation{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		Tags:        cleanTags(req.Tags),
		CreatedBy:   principal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info("investigation created",
		slog.String("id", inv.ID),
		slog.String("title", inv.Title),
		slog.String("owner", principal))
	return inv, nil
}

// Authorize loads the investigation and checks that principal owns it.
// Returns NotFound for an unknown id and Forbidden for someone else's.
func (s *Service) Authorize(ctx context.Context, principal, id string) (*Investigation, error) {
	ctx, span := tracing.Start(ctx, "investigations.Authorize", tracing.AttrInvestigationID.String(id))
	defer span.End()

	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	if inv == nil {
		return nil, apperror.NewNotFound("Investigation", id)
	}
	if !inv.OwnedBy(principal) {
		return nil, apperror.NewForbidden("You don't have access to this investigation")
	}
	return inv, nil
}

// Get returns an investigation with its node and relationship counts.
func (s *Service) Get(ctx context.Context, principal, id string) (*Investigation, error) {
	return s.Authorize(ctx, principal, id)
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, principal, id string, req UpdateInvestigationRequest) (*Investigation, error) {
	if req.Empty() {
		return nil, apperror.NewInvalid("No update data provided")
	}

	inv, err := s.Authorize(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperror.NewInvalid("investigation title cannot be empty")
		}
		inv.Title = title
	}
	if req.Description != nil {
		inv.Description = *req.Description
	}
	if req.Tags != nil {
		inv.Tags = cleanTags(*req.Tags)
	}
	if req.IsArchived != nil {
		inv.IsArchived = *req.IsArchived
	}
	inv.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info("investigation updated", slog.String("id", inv.ID), slog.String("title", inv.Title))
	return inv, nil
}

// Archive hides the investigation from default listings.
func (s *Service) Archive(ctx context.Context, principal, id string) (*Investigation, error) {
	archived := true
	return s.Update(ctx, principal, id, UpdateInvestigationRequest{IsArchived: &archived})
}

// Unarchive restores an archived investigation.
func (s *Service) Unarchive(ctx context.Context, principal, id string) (*Investigation, error) {
	archived := false
	return s.Update(ctx, principal, id, UpdateInvestigationRequest{IsArchived: &archived})
}

// Delete removes the investigation together with all of its nodes and
// relationships.
func (s *Service) Delete(ctx context.Context, principal, id string) error {
	inv, err := s.Authorize(ctx, principal, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NewNotFound("Investigation", id)
	}

	s.log.Info("investigation deleted",
		slog.String("id", id),
		slog.String("title", inv.Title),
		slog.Int("nodes", inv.NodeCount),
		slog.Int("relationships", inv.RelationshipCount))
	return nil
}

// List returns a page of principal's investigations.
func (s *Service) List(ctx context.Context, principal string, params ListParams) ([]Investigation, error) {
	return s.repo.List(ctx, principal, params)
}

// Count counts principal's investigations.
func (s *Service) Count(ctx context.Context, principal string, includeArchived bool) (int, error) {
	return s.repo.Count(ctx, principal, ListParams{IncludeArchived: includeArchived})
}

// Search matches query case-insensitively against title and description.
func (s *Service) Search(ctx context.Context, principal, query string, params ListParams) ([]Investigation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperror.NewInvalid("search query cannot be empty")
	}
	params.Query = query
	return s.repo.List(ctx, principal, params)
}

// SearchByTags returns investigations carrying at least one of tags.
func (s *Service) SearchByTags(ctx context.Context, principal string, tags []string, params ListParams) ([]Investigation, error) {
	params.Tags = cleanTags(tags)
	if len(params.Tags) == 0 {
		return nil, apperror.NewInvalid("at least one tag is required")
	}
	return s.repo.List(ctx, principal, params)
}

// ListAllForOwner returns every investigation principal can see, archived
// ones included.
func (s *Service) ListAllForOwner(ctx context.Context, principal string) ([]Investigation, error) {
	return s.repo.List(ctx, principal, ListParams{IncludeArchived: true})
}

// cleanTags trims tags and drops empties and duplicates, keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
