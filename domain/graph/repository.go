package graph

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/osfiler/osfiler/internal/database"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/pgutils"
)

// Repository handles database operations for nodes and relationships.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repo")),
	}
}

// =============================================================================
// Nodes
// =============================================================================

// GetNode returns a node by ID. Returns nil, nil when absent.
func (r *Repository) GetNode(ctx context.Context, id string) (*Node, error) {
	var n Node
	if err := r.db.NewSelect().Model(&n).Where("n.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get node", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &n, nil
}

// FindNode looks a node up by its natural key. Returns nil, nil when absent.
func (r *Repository) FindNode(ctx context.Context, investigationID, nodeType, name string) (*Node, error) {
	var n Node
	err := r.db.NewSelect().
		Model(&n).
		Where("n.investigation_id = ?", investigationID).
		Where("n.type = ?", nodeType).
		Where("n.name = ?", name).
		Order("n.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to find node", logger.Error(err),
			slog.String("investigation_id", investigationID),
			slog.String("type", nodeType))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &n, nil
}

// GetNodes returns the nodes with the given IDs, in no particular order.
func (r *Repository) GetNodes(ctx context.Context, ids []string) ([]Node, error) {
	nodes := []Node{}
	if len(ids) == 0 {
		return nodes, nil
	}
	if err := r.db.NewSelect().Model(&nodes).Where("n.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		r.log.Error("failed to get nodes", logger.Error(err), slog.Int("count", len(ids)))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return nodes, nil
}

func nodeFilter(q *bun.SelectQuery, investigationID string, f NodeFilter) *bun.SelectQuery {
	q = q.Where("n.investigation_id = ?", investigationID)
	if f.Type != "" {
		q = q.Where("n.type = ?", f.Type)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		pattern := "%" + likeEscape(strings.ToLower(query)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(n.name) LIKE ? ESCAPE '\\'", pattern).
				WhereOr("LOWER(CAST(n.data AS TEXT)) LIKE ? ESCAPE '\\'", pattern)
		})
	}
	return q
}

// ListNodes returns a page of an investigation's nodes, oldest first.
func (r *Repository) ListNodes(ctx context.Context, investigationID string, f NodeFilter) ([]Node, error) {
	nodes := []Node{}
	q := nodeFilter(r.db.NewSelect().Model(&nodes), investigationID, f).
		Order("n.created_at ASC", "n.id ASC").
		Offset(f.Skip)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list nodes", logger.Error(err), slog.String("investigation_id", investigationID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return nodes, nil
}

// CountNodes counts the nodes matching f, ignoring pagination.
func (r *Repository) CountNodes(ctx context.Context, investigationID string, f NodeFilter) (int, error) {
	n, err := nodeFilter(r.db.NewSelect().Model((*Node)(nil)), investigationID, f).Count(ctx)
	if err != nil {
		r.log.Error("failed to count nodes", logger.Error(err), slog.String("investigation_id", investigationID))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// NodeTypeCounts returns how many nodes of each type an investigation has.
func (r *Repository) NodeTypeCounts(ctx context.Context, investigationID string) ([]TypeCount, error) {
	counts := []TypeCount{}
	err := r.db.NewSelect().
		Model((*Node)(nil)).
		ColumnExpr("n.type AS type").
		ColumnExpr("COUNT(*) AS count").
		Where("n.investigation_id = ?", investigationID).
		Group("n.type").
		Order("n.type ASC").
		Scan(ctx, &counts)
	if err != nil {
		r.log.Error("failed to count node types", logger.Error(err), slog.String("investigation_id", investigationID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return counts, nil
}

// Neighbors returns the nodes one hop away from nodeID over relationships
// in the given direction, optionally restricted to one relationship type.
// A node reachable over several edges appears once per edge.
func (r *Repository) Neighbors(ctx context.Context, nodeID string, dir Direction, relType string) ([]Node, error) {
	var out []Node
	hop := func(joinCol, matchCol string) error {
		nodes := []Node{}
		q := r.db.NewSelect().
			Model(&nodes).
			Join("JOIN relationships AS rel ON rel."+joinCol+" = n.id").
			Where("rel."+matchCol+" = ?", nodeID).
			Order("rel.created_at ASC")
		if relType != "" {
			q = q.Where("rel.type = ?", relType)
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		out = append(out, nodes...)
		return nil
	}

	if dir == DirectionOutgoing || dir == DirectionBoth {
		if err := hop("target_node_id", "source_node_id"); err != nil {
			r.log.Error("failed to follow outgoing edges", logger.Error(err), slog.String("node_id", nodeID))
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		if err := hop("source_node_id", "target_node_id"); err != nil {
			r.log.Error("failed to follow incoming edges", logger.Error(err), slog.String("node_id", nodeID))
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}
	return out, nil
}

// InsertNode stores a new node.
func (r *Repository) InsertNode(ctx context.Context, n *Node) error {
	if _, err := r.db.NewInsert().Model(n).Exec(ctx); err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.NewNotFound("Investigation", n.InvestigationID)
		}
		r.log.Error("failed to insert node", logger.Error(err), slog.String("name", n.Name))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UpdateNode writes the mutable columns of n.
func (r *Repository) UpdateNode(ctx context.Context, n *Node) error {
	_, err := r.db.NewUpdate().
		Model(n).
		Column("name", "type", "data", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update node", logger.Error(err), slog.String("id", n.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// DeleteNode removes the node and every relationship that starts or ends at
// it in one transaction. Returns the number of relationships removed and
// false when the node did not exist.
func (r *Repository) DeleteNode(ctx context.Context, id string) (int, bool, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return 0, false, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	res, err := tx.NewDelete().
		Model((*Relationship)(nil)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("source_node_id = ?", id).WhereOr("target_node_id = ?", id)
		}).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete node relationships", logger.Error(err), slog.String("id", id))
		return 0, false, apperror.ErrDatabase.WithInternal(err)
	}
	edges, _ := res.RowsAffected()

	res, err = tx.NewDelete().Model((*Node)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete node", logger.Error(err), slog.String("id", id))
		return 0, false, apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, false, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, false, apperror.ErrDatabase.WithInternal(err)
	}
	return int(edges), true, nil
}

// =============================================================================
// Relationships
// =============================================================================

// GetRelationship returns a relationship by ID. Returns nil, nil when absent.
func (r *Repository) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	var rel Relationship
	if err := r.db.NewSelect().Model(&rel).Where("r.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get relationship", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &rel, nil
}

// FindRelationship looks a relationship up by its natural key. Returns
// nil, nil when absent.
func (r *Repository) FindRelationship(ctx context.Context, investigationID, sourceID, targetID, relType string) (*Relationship, error) {
	var rel Relationship
	err := r.db.NewSelect().
		Model(&rel).
		Where("r.investigation_id = ?", investigationID).
		Where("r.source_node_id = ?", sourceID).
		Where("r.target_node_id = ?", targetID).
		Where("r.type = ?", relType).
		Order("r.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to find relationship", logger.Error(err),
			slog.String("source_node_id", sourceID),
			slog.String("target_node_id", targetID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &rel, nil
}

// RelationshipExists reports whether an edge sourceID -> targetID exists.
// relType, when set, must already be normalized.
func (r *Repository) RelationshipExists(ctx context.Context, sourceID, targetID, relType string) (bool, error) {
	q := r.db.NewSelect().
		Model((*Relationship)(nil)).
		Where("r.source_node_id = ?", sourceID).
		Where("r.target_node_id = ?", targetID)
	if relType != "" {
		q = q.Where("r.type = ?", relType)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		r.log.Error("failed to probe relationship", logger.Error(err),
			slog.String("source_node_id", sourceID),
			slog.String("target_node_id", targetID))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// RelationshipsBetween returns the edges joining a and b in either direction.
func (r *Repository) RelationshipsBetween(ctx context.Context, a, b string) ([]Relationship, error) {
	rels := []Relationship{}
	err := r.db.NewSelect().
		Model(&rels).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("r.source_node_id = ?", a).Where("r.target_node_id = ?", b)
				}).
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("r.source_node_id = ?", b).Where("r.target_node_id = ?", a)
				})
		}).
		Order("r.created_at ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to get relationships between nodes", logger.Error(err),
			slog.String("a", a), slog.String("b", b))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rels, nil
}

func relationshipFilter(q *bun.SelectQuery, investigationID string, f RelationshipFilter) *bun.SelectQuery {
	q = q.Where("r.investigation_id = ?", investigationID)
	if f.Type != "" {
		q = q.Where("r.type = ?", f.Type)
	}
	return q
}

// ListRelationships returns a page of an investigation's relationships,
// oldest first.
func (r *Repository) ListRelationships(ctx context.Context, investigationID string, f RelationshipFilter) ([]Relationship, error) {
	rels := []Relationship{}
	q := relationshipFilter(r.db.NewSelect().Model(&rels), investigationID, f).
		Order("r.created_at ASC", "r.id ASC").
		Offset(f.Skip)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list relationships", logger.Error(err), slog.String("investigation_id", investigationID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rels, nil
}

// CountRelationships counts the relationships matching f, ignoring pagination.
func (r *Repository) CountRelationships(ctx context.Context, investigationID string, f RelationshipFilter) (int, error) {
	n, err := relationshipFilter(r.db.NewSelect().Model((*Relationship)(nil)), investigationID, f).Count(ctx)
	if err != nil {
		r.log.Error("failed to count relationships", logger.Error(err), slog.String("investigation_id", investigationID))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// RelationshipTypeCounts returns how many relationships of each type an
// investigation has.
func (r *Repository) RelationshipTypeCounts(ctx context.Context, investigationID string) ([]TypeCount, error) {
	counts := []TypeCount{}
	err := r.db.NewSelect().
		Model((*Relationship)(nil)).
		ColumnExpr("r.type AS type").
		ColumnExpr("COUNT(*) AS count").
		Where("r.investigation_id = ?", investigationID).
		Group("r.type").
		Order("r.type ASC").
		Scan(ctx, &counts)
	if err != nil {
		r.log.Error("failed to count relationship types", logger.Error(err), slog.String("investigation_id", investigationID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return counts, nil
}

// InsertRelationship stores a new relationship.
func (r *Repository) InsertRelationship(ctx context.Context, rel *Relationship) error {
	if _, err := r.db.NewInsert().Model(rel).Exec(ctx); err != nil {
		// An endpoint removed after validation surfaces here.
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.NewNotFound("Node", rel.SourceNodeID+" or "+rel.TargetNodeID)
		}
		r.log.Error("failed to insert relationship", logger.Error(err), slog.String("type", rel.Type))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UpdateRelationship writes the mutable columns of rel.
func (r *Repository) UpdateRelationship(ctx context.Context, rel *Relationship) error {
	_, err := r.db.NewUpdate().
		Model(rel).
		Column("type", "strength", "data", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update relationship", logger.Error(err), slog.String("id", rel.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// DeleteRelationship removes one relationship. Returns false when nothing
// was deleted.
func (r *Repository) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewDelete().Model((*Relationship)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete relationship", logger.Error(err), slog.String("id", id))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}
