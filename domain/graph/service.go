package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/mathutil"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// TypeRegistrar normalizes type labels and registers the ones the taxonomy
// has not seen yet.
type TypeRegistrar interface {
	EnsureType(ctx context.Context, value string, entityType taxonomy.EntityType) (string, error)
}

// Service handles business logic for nodes and relationships.
//
// Type labels are soft references into the taxonomy: they are normalized on
// write and unknown ones are registered as user types, but a failed
// registration never blocks the write.
type Service struct {
	repo  *Repository
	types TypeRegistrar
	log   *slog.Logger
}

// NewService creates a new graph service.
func NewService(repo *Repository, types TypeRegistrar, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		types: types,
		log:   log.With(logger.Scope("graph.svc")),
	}
}

// label normalizes a type label and makes sure the taxonomy knows it.
func (s *Service) label(ctx context.Context, value string, entityType taxonomy.EntityType) (string, error) {
	v := taxonomy.NormalizeValue(value)
	if v == "" {
		return "", apperror.NewInvalid(fmt.Sprintf("%s type cannot be empty", entityType))
	}
	if s.types == nil {
		return v, nil
	}
	if _, err := s.types.EnsureType(ctx, v, entityType); err != nil {
		s.log.Warn("could not register type",
			slog.String("value", v),
			slog.String("entity_type", string(entityType)),
			logger.Error(err))
	}
	return v, nil
}

// clampStrength applies the default and confines strength to [0, 1].
func clampStrength(strength *float64) (float64, error) {
	if strength == nil {
		return DefaultStrength, nil
	}
	v := *strength
	if math.IsNaN(v) {
		return 0, apperror.NewInvalid("strength must be a number")
	}
	return mathutil.Clamp(v, 0, 1), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// =============================================================================
// Nodes
// =============================================================================

// GetNode returns a node by ID.
func (s *Service) GetNode(ctx context.Context, id string) (*Node, error) {
	n, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperror.NewNotFound("Node", id)
	}
	return n, nil
}

// CreateNode creates a node in investigationID on behalf of actor.
func (s *Service) CreateNode(ctx context.Context, investigationID string, in NodeInput, actor string) (*Node, error) {
	ctx, span := tracing.Start(ctx, "graph.CreateNode", tracing.AttrInvestigationID.String(investigationID))
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.NewInvalid("node name cannot be empty")
	}
	nodeType, err := s.label(ctx, in.Type, taxonomy.EntityNode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	n := &Node{
		ID:              uuid.NewString(),
		InvestigationID: investigationID,
		Type:            nodeType,
		Name:            name,
		Data:            in.Data.Clone(),
		CreatedBy:       optional(actor),
		SourceModule:    optional(in.SourceModule),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertNode(ctx, n); err != nil {
		return nil, tracing.RecordError(span, err)
	}

	s.log.Debug("node created",
		slog.String("id", n.ID),
		slog.String("investigation_id", investigationID),
		slog.String("type", n.Type))
	return n, nil
}

// UpdateNode changes the name, type or data of a node. Data is merged into
// the existing data unless the update replaces it.
func (s *Service) UpdateNode(ctx context.Context, id string, upd NodeUpdate) (*Node, error) {
	n, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperror.NewInvalid("node name cannot be empty")
		}
		n.Name = name
	}
	if upd.Type != nil {
		if n.Type, err = s.label(ctx, *upd.Type, taxonomy.EntityNode); err != nil {
			return nil, err
		}
	}
	n.Data = upd.Data.Apply(n.Data)
	n.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNode deletes a node and, atomically, every relationship touching it.
func (s *Service) DeleteNode(ctx context.Context, id string) error {
	ctx, span := tracing.Start(ctx, "graph.DeleteNode", tracing.AttrNodeID.String(id))
	defer span.End()

	edges, deleted, err := s.repo.DeleteNode(ctx, id)
	if err != nil {
		return tracing.RecordError(span, err)
	}
	if !deleted {
		return apperror.NewNotFound("Node", id)
	}

	s.log.Info("node deleted", slog.String("id", id), slog.Int("relationships_removed", edges))
	return nil
}

// CreateOrUpdateNode returns the node keyed by (investigationID, type,
// name), merging in.Data into it, or creates it when there is none.
// The boolean reports whether a node was created.
func (s *Service) CreateOrUpdateNode(ctx context.Context, investigationID string, in NodeInput, actor string) (*Node, bool, error) {
	nodeType := taxonomy.NormalizeValue(in.Type)
	name := strings.TrimSpace(in.Name)

	existing, err := s.repo.FindNode(ctx, investigationID, nodeType, name)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		n, err := s.CreateNode(ctx, investigationID, in, actor)
		return n, err == nil, err
	}

	if len(in.Data) > 0 {
		existing.Data = MergeData(in.Data).Apply(existing.Data)
		existing.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateNode(ctx, existing); err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

// ListNodes returns a page of an investigation's nodes.
func (s *Service) ListNodes(ctx context.Context, investigationID string, f NodeFilter) ([]Node, error) {
	f.Type = taxonomy.NormalizeValue(f.Type)
	return s.repo.ListNodes(ctx, investigationID, f)
}

// CountNodes counts an investigation's nodes matching f.
func (s *Service) CountNodes(ctx context.Context, investigationID string, f NodeFilter) (int, error) {
	f.Type = taxonomy.NormalizeValue(f.Type)
	return s.repo.CountNodes(ctx, investigationID, f)
}

// SearchNodes matches query case-insensitively against node names and data.
func (s *Service) SearchNodes(ctx context.Context, investigationID, query string, f NodeFilter) ([]Node, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperror.NewInvalid("search query cannot be empty")
	}
	f.Query = query
	return s.ListNodes(ctx, investigationID, f)
}

// NodeTypeCounts returns the per-type node counts of an investigation.
func (s *Service) NodeTypeCounts(ctx context.Context, investigationID string) ([]TypeCount, error) {
	return s.repo.NodeTypeCounts(ctx, investigationID)
}

// Neighbors returns the nodes one hop from nodeID. The result may contain
// the same node more than once when several edges lead to it.
func (s *Service) Neighbors(ctx context.Context, nodeID string, dir Direction, relType string) ([]Node, error) {
	return s.repo.Neighbors(ctx, nodeID, dir, taxonomy.NormalizeValue(relType))
}

// =============================================================================
// Relationships
// =============================================================================

// GetRelationship returns a relationship by ID.
func (s *Service) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	rel, err := s.repo.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, apperror.NewNotFound("Relationship", id)
	}
	return rel, nil
}

// validateEndpoints checks that both endpoints exist and live in
// investigationID.
func (s *Service) validateEndpoints(ctx context.Context, investigationID, sourceID, targetID string) error {
	nodes, err := s.repo.GetNodes(ctx, []string{sourceID, targetID})
	if err != nil {
		return err
	}
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	src, ok := byID[sourceID]
	if !ok {
		return apperror.NewNotFound("Source node", sourceID)
	}
	dst, ok := byID[targetID]
	if !ok {
		return apperror.NewNotFound("Target node", targetID)
	}
	if src.InvestigationID != investigationID || dst.InvestigationID != investigationID {
		return apperror.NewInvalid("Nodes must be in the same investigation")
	}
	return nil
}

// CreateRelationship creates a directed edge between two nodes of
// investigationID. Strength defaults to 0.5 and is clamped into [0, 1].
//
// Callers that want at most one edge per (source, target, type) should use
// CreateOrUpdateRelationship; the existence probe and the insert are not
// atomic, so concurrent creators can still produce a duplicate.
func (s *Service) CreateRelationship(ctx context.Context, investigationID string, in RelationshipInput, actor string) (*Relationship, error) {
	ctx, span := tracing.Start(ctx, "graph.CreateRelationship", tracing.AttrInvestigationID.String(investigationID))
	defer span.End()

	strength, err := clampStrength(in.Strength)
	if err != nil {
		return nil, err
	}
	if err := s.validateEndpoints(ctx, investigationID, in.SourceNodeID, in.TargetNodeID); err != nil {
		return nil, err
	}
	relType, err := s.label(ctx, in.Type, taxonomy.EntityRelationship)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rel := &Relationship{
		ID:              uuid.NewString(),
		InvestigationID: investigationID,
		SourceNodeID:    in.SourceNodeID,
		TargetNodeID:    in.TargetNodeID,
		Type:            relType,
		Strength:        strength,
		Data:            in.Data.Clone(),
		CreatedBy:       optional(actor),
		SourceModule:    optional(in.SourceModule),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertRelationship(ctx, rel); err != nil {
		return nil, tracing.RecordError(span, err)
	}

	s.log.Debug("relationship created",
		slog.String("id", rel.ID),
		slog.String("type", rel.Type),
		slog.String("source_node_id", rel.SourceNodeID),
		slog.String("target_node_id", rel.TargetNodeID))
	return rel, nil
}

// UpdateRelationship changes the type, strength or data of a relationship.
func (s *Service) UpdateRelationship(ctx context.Context, id string, upd RelationshipUpdate) (*Relationship, error) {
	rel, err := s.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Strength != nil {
		if rel.Strength, err = clampStrength(upd.Strength); err != nil {
			return nil, err
		}
	}
	if upd.Type != nil {
		if rel.Type, err = s.label(ctx, *upd.Type, taxonomy.EntityRelationship); err != nil {
			return nil, err
		}
	}
	rel.Data = upd.Data.Apply(rel.Data)
	rel.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// CheckRelationshipExists reports whether an edge sourceID -> targetID
// exists. The probe is directed. relType is optional and normalized the same
// way CreateRelationship stores it.
func (s *Service) CheckRelationshipExists(ctx context.Context, sourceID, targetID, relType string) (bool, error) {
	return s.repo.RelationshipExists(ctx, sourceID, targetID, taxonomy.NormalizeValue(relType))
}

// CreateOrUpdateRelationship returns the edge keyed by (investigationID,
// source, target, type), updating its strength when it differs and merging
// in.Data, or creates it when there is none. The boolean reports whether a
// relationship was created.
func (s *Service) CreateOrUpdateRelationship(ctx context.Context, investigationID string, in RelationshipInput, actor string) (*Relationship, bool, error) {
	strength, err := clampStrength(in.Strength)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindRelationship(ctx, investigationID, in.SourceNodeID, in.TargetNodeID, taxonomy.NormalizeValue(in.Type))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		rel, err := s.CreateRelationship(ctx, investigationID, in, actor)
		return rel, err == nil, err
	}

	changed := false
	if existing.Strength != strength {
		existing.Strength = strength
		changed = true
	}
	if len(in.Data) > 0 {
		existing.Data = MergeData(in.Data).Apply(existing.Data)
		changed = true
	}
	if changed {
		existing.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateRelationship(ctx, existing); err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

// DeleteRelationship deletes a relationship by its ID.
func (s *Service) DeleteRelationship(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteRelationship(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NewNotFound("Relationship", id)
	}
	s.log.Debug("relationship deleted", slog.String("id", id))
	return nil
}

// RelationshipsBetween returns the edges joining a and b in either direction.
func (s *Service) RelationshipsBetween(ctx context.Context, a, b string) ([]Relationship, error) {
	return s.repo.RelationshipsBetween(ctx, a, b)
}

// ListRelationships returns a page of an investigation's relationships.
func (s *Service) ListRelationships(ctx context.Context, investigationID string, f RelationshipFilter) ([]Relationship, error) {
	f.Type = taxonomy.NormalizeValue(f.Type)
	return s.repo.ListRelationships(ctx, investigationID, f)
}

// CountRelationships counts an investigation's relationships matching f.
func (s *Service) CountRelationships(ctx context.Context, investigationID string, f RelationshipFilter) (int, error) {
	f.Type = taxonomy.NormalizeValue(f.Type)
	return s.repo.CountRelationships(ctx, investigationID, f)
}

// RelationshipTypeCounts returns the per-type relationship counts of an
// investigation.
func (s *Service) RelationshipTypeCounts(ctx context.Context, investigationID string) ([]TypeCount, error) {
	return s.repo.RelationshipTypeCounts(ctx, investigationID)
}
