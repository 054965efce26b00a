package graphquery

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// TypeCatalog is the part of the taxonomy that export and import need.
type TypeCatalog interface {
	GetByValue(ctx context.Context, value string, entityType taxonomy.EntityType) (*taxonomy.Type, error)
	Create(ctx context.Context, value string, entityType taxonomy.EntityType, description *string) (*taxonomy.Type, error)
}

// Service assembles read models and multi-step operations on top of the
// graph store. It holds no state of its own; every call reads the store.
type Service struct {
	graph   *graph.Service
	invs    *investigations.Service
	types   TypeCatalog
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewService creates a new graph query service.
func NewService(g *graph.Service, invs *investigations.Service, types TypeCatalog, cfg *config.Config, log *slog.Logger) *Service {
	limit := rate.Inf
	if cfg.Graph.FallbackRPS > 0 {
		limit = rate.Limit(cfg.Graph.FallbackRPS)
	}
	burst := max(cfg.Graph.FallbackBurst, 1)

	return &Service{
		graph:   g,
		invs:    invs,
		types:   types,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With(logger.Scope("graphquery.svc")),
	}
}

// GraphData projects every node and relationship of an investigation into
// the renderer's node/edge shape.
func (s *Service) GraphData(ctx context.Context, investigationID string) (*Graph, error) {
	ctx, span := tracing.Start(ctx, "graphquery.GraphData", tracing.AttrInvestigationID.String(investigationID))
	defer span.End()

	nodes, err := s.graph.ListNodes(ctx, investigationID, graph.NodeFilter{})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	rels, err := s.graph.ListRelationships(ctx, investigationID, graph.RelationshipFilter{})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	out := &Graph{
		Nodes: make([]VisNode, 0, len(nodes)),
		Edges: make([]VisEdge, 0, len(rels)),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, toVisNode(n))
	}
	for _, r := range rels {
		out.Edges = append(out.Edges, toVisEdge(r))
	}
	return out, nil
}

// RelatedNodes returns the nodes one hop from nodeID, each at most once.
// direction is outgoing, incoming or both; empty means both.
func (s *Service) RelatedNodes(ctx context.Context, nodeID, relationshipType, direction string) ([]graph.Node, error) {
	dir, ok := graph.ParseDirection(direction)
	if !ok {
		return nil, apperror.NewInvalid("direction must be one of outgoing, incoming, both")
	}
	if _, err := s.graph.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}

	neighbors, err := s.graph.Neighbors(ctx, nodeID, dir, relationshipType)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(neighbors))
	out := make([]graph.Node, 0, len(neighbors))
	for _, n := range neighbors {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// NodesConnected reports whether any relationship joins a and b, in either
// direction and of any type.
func (s *Service) NodesConnected(ctx context.Context, a, b string) (bool, error) {
	forward, err := s.graph.CheckRelationshipExists(ctx, a, b, "")
	if err != nil || forward {
		return forward, err
	}
	return s.graph.CheckRelationshipExists(ctx, b, a, "")
}
