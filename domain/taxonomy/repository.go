package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/pgutils"
)

// errDuplicate is returned by Insert/Update when (value, entity_type) is taken.
var errDuplicate = errors.New("duplicate type")

// Repository handles database operations for the taxonomy
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new taxonomy repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("taxonomy.repo")),
	}
}

// List returns types ordered by entity type then value. An empty entityType
// returns both kinds.
func (r *Repository) List(ctx context.Context, entityType EntityType) ([]Type, error) {
	types := []Type{}
	q := r.db.NewSelect().
		Model(&types).
		Order("entity_type ASC", "value ASC")
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list types", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return types, nil
}

// GetByID returns nil, nil when no row matches.
func (r *Repository) GetByID(ctx context.Context, id string) (*Type, error) {
	var t Type
	err := r.db.NewSelect().Model(&t).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get type", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &t, nil
}

// GetByValue looks a type up by its normalized value. Returns nil, nil when
// absent.
func (r *Repository) GetByValue(ctx context.Context, value string, entityType EntityType) (*Type, error) {
	var t Type
	err := r.db.NewSelect().
		Model(&t).
		Where("value = ?", value).
		Where("entity_type = ?", entityType).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get type by value", logger.Error(err), slog.String("value", value))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &t, nil
}

// Insert stores a new type. Returns errDuplicate on a unique violation.
func (r *Repository) Insert(ctx context.Context, t *Type) error {
	if _, err := r.db.NewInsert().Model(t).Exec(ctx); err != nil {
		if pgutils.IsUniqueViolation(err) {
			return errDuplicate
		}
		r.log.Error("failed to insert type", logger.Error(err), slog.String("value", t.Value))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Update writes value, description and updated_at of t.
func (r *Repository) Update(ctx context.Context, t *Type) error {
	_, err := r.db.NewUpdate().
		Model(t).
		Column("value", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return errDuplicate
		}
		r.log.Error("failed to update type", logger.Error(err), slog.String("id", t.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Delete removes a type row. Returns false when nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Type)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete type", logger.Error(err), slog.String("id", id))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
