package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/metrics"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// Service owns the taxonomy rules: values are normalized on every write,
// (value, entity_type) stays unique and system types are read-only.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new taxonomy service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("taxonomy.svc")),
	}
}

// List returns all types, or only those of entityType when it is non-empty.
func (s *Service) List(ctx context.Context, entityType EntityType) ([]Type, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, apperror.NewInvalid(fmt.Sprintf("unknown entity type %q", entityType))
	}
	return s.repo.List(ctx, entityType)
}

// Get returns a type by id.
func (s *Service) Get(ctx context.Context, id string) (*Type, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperror.NewNotFound("Type", id)
	}
	return t, nil
}

// GetByValue returns the type whose normalized value matches value.
func (s *Service) GetByValue(ctx context.Context, value string, entityType EntityType) (*Type, error) {
	v := NormalizeValue(value)
	t, err := s.repo.GetByValue(ctx, v, entityType)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperror.NewNotFound("Type", v)
	}
	return t, nil
}

// Create registers a user-defined type.
func (s *Service) Create(ctx context.Context, value string, entityType EntityType, description *string) (*Type, error) {
	ctx, span := tracing.Start(ctx, "taxonomy.create", tracing.AttrEntityType.String(string(entityType)))
	defer span.End()

	t, err := s.create(ctx, value, entityType, description, false)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	s.log.Info("type created",
		slog.String("id", t.ID),
		slog.String("value", t.Value),
		slog.String("entity_type", string(t.EntityType)))
	return t, nil
}

func (s *Service) create(ctx context.Context, value string, entityType EntityType, description *string, system bool) (*Type, error) {
	if !entityType.Valid() {
		return nil, apperror.NewInvalid(fmt.Sprintf("unknown entity type %q", entityType))
	}
	v := NormalizeValue(value)
	if v == "" {
		return nil, apperror.NewInvalid("type value cannot be empty")
	}

	existing, err := s.repo.GetByValue(ctx, v, entityType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict(v, entityType)
	}

	now := time.Now().UTC()
	t := &Type{
		ID:          uuid.NewString(),
		Value:       v,
		EntityType:  entityType,
		Description: description,
		IsSystem:    system,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		if errors.Is(err, errDuplicate) {
			return nil, conflict(v, entityType)
		}
		return nil, err
	}
	return t, nil
}

// Update changes the description and/or value of a user-defined type.
func (s *Service) Update(ctx context.Context, id string, req UpdateTypeRequest) (*Type, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsSystem {
		return nil, apperror.NewForbidden("Cannot modify system types")
	}

	if req.Value != nil {
		v := NormalizeValue(*req.Value)
		if v == "" {
			return nil, apperror.NewInvalid("type value cannot be empty")
		}
		if v != t.Value {
			existing, err := s.repo.GetByValue(ctx, v, t.EntityType)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, conflict(v, t.EntityType)
			}
			t.Value = v
		}
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, errDuplicate) {
			return nil, conflict(t.Value, t.EntityType)
		}
		return nil, err
	}
	return t, nil
}

// Delete removes a user-defined type. Nodes and relationships still carrying
// the label are left untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.IsSystem {
		return apperror.NewForbidden("Cannot delete system types")
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NewNotFound("Type", id)
	}
	s.log.Info("type deleted", slog.String("id", id), slog.String("value", t.Value))
	return nil
}

// EnsureType returns the normalized form of value and registers it as a
// user type when the taxonomy does not know it yet. Used when nodes and
// relationships introduce labels on the fly.
func (s *Service) EnsureType(ctx context.Context, value string, entityType EntityType) (string, error) {
	v := NormalizeValue(value)
	if v == "" {
		return "", apperror.NewInvalid("type value cannot be empty")
	}

	existing, err := s.repo.GetByValue(ctx, v, entityType)
	if err != nil {
		return v, err
	}
	if existing != nil {
		return v, nil
	}

	desc := fmt.Sprintf("Custom %s type: %s", entityType, v)
	if _, err := s.create(ctx, v, entityType, &desc, false); err != nil {
		// Lost a race with a concurrent registration.
		if apperror.IsConflict(err) {
			return v, nil
		}
		return v, err
	}
	metrics.TypesAutoRegistered.WithLabelValues(string(entityType)).Inc()
	s.log.Info("type auto-registered", slog.String("value", v), slog.String("entity_type", string(entityType)))
	return v, nil
}

func conflict(value string, entityType EntityType) *apperror.Error {
	return apperror.NewConflict(fmt.Sprintf("Type '%s' already exists for %s", value, entityType))
}
