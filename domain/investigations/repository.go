package investigations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/osfiler/osfiler/internal/database"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
)

// Repository handles database operations for investigations
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new investigation repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("investigations.repo")),
	}
}

// withCounts selects the row plus its node and relationship counts.
func withCounts(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		ColumnExpr("i.*").
		ColumnExpr("(SELECT COUNT(*) FROM nodes AS n WHERE n.investigation_id = i.id) AS node_count").
		ColumnExpr("(SELECT COUNT(*) FROM relationships AS r WHERE r.investigation_id = i.id) AS relationship_count")
}

// GetByID returns an investigation by ID. Returns nil, nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Investigation, error) {
	var inv Investigation
	err := withCounts(r.db.NewSelect().Model(&inv)).
		Where("i.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get investigation", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &inv, nil
}

func (r *Repository) filtered(q *bun.SelectQuery, owner string, params ListParams) *bun.SelectQuery {
	q = q.Where("i.created_by = ?", owner)
	if !params.IncludeArchived {
		q = q.Where("i.is_archived = ?", false)
	}
	if query := strings.TrimSpace(params.Query); query != "" {
		pattern := "%" + likeEscape(strings.ToLower(query)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(i.title) LIKE ? ESCAPE '\\'", pattern).
				WhereOr("LOWER(COALESCE(i.description, '')) LIKE ? ESCAPE '\\'", pattern)
		})
	}
	if len(params.Tags) > 0 {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, tag := range params.Tags {
				q = q.WhereOr("CAST(i.tags AS TEXT) LIKE ? ESCAPE '\\'", tagPattern(tag))
			}
			return q
		})
	}
	return q
}

// List returns the owner's investigations, most recently updated first.
func (r *Repository) List(ctx context.Context, owner string, params ListParams) ([]Investigation, error) {
	invs := []Investigation{}
	q := r.filtered(withCounts(r.db.NewSelect().Model(&invs)), owner, params).
		Order("i.updated_at DESC").
		Offset(params.Skip)
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list investigations", logger.Error(err), slog.String("owner", owner))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return invs, nil
}

// Count returns how many investigations match params, ignoring pagination.
func (r *Repository) Count(ctx context.Context, owner string, params ListParams) (int, error) {
	n, err := r.filtered(r.db.NewSelect().Model((*Investigation)(nil)), owner, params).Count(ctx)
	if err != nil {
		r.log.Error("failed to count investigations", logger.Error(err), slog.String("owner", owner))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// Insert stores a new investigation.
func (r *Repository) Insert(ctx context.Context, inv *Investigation) error {
	if _, err := r.db.NewInsert().Model(inv).Exec(ctx); err != nil {
		r.log.Error("failed to insert investigation", logger.Error(err), slog.String("title", inv.Title))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Update writes the mutable columns of inv.
func (r *Repository) Update(ctx context.Context, inv *Investigation) error {
	_, err := r.db.NewUpdate().
		Model(inv).
		Column("title", "description", "tags", "is_archived", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update investigation", logger.Error(err), slog.String("id", inv.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Delete removes the investigation with its relationships and nodes in one
// transaction. Returns false when the investigation did not exist.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.NewDelete().TableExpr("relationships").Where("investigation_id = ?", id).Exec(ctx); err != nil {
		r.log.Error("failed to delete investigation relationships", logger.Error(err), slog.String("id", id))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	if _, err := tx.NewDelete().TableExpr("nodes").Where("investigation_id = ?", id).Exec(ctx); err != nil {
		r.log.Error("failed to delete investigation nodes", logger.Error(err), slog.String("id", id))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	res, err := tx.NewDelete().Model((*Investigation)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete investigation", logger.Error(err), slog.String("id", id))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}

// tagPattern matches the JSON encoding of tag inside the serialized tag
// array, so "go" does not match "golang".
func tagPattern(tag string) string {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(tag)
	return "%" + likeEscape(strings.TrimSuffix(buf.String(), "\n")) + "%"
}
