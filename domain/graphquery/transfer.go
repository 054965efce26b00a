package graphquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/metrics"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// FormatVersion is written into every exported document.
const FormatVersion = "1.0"

// Import defaults for records that omit a field.
const (
	defaultNodeType         = "unknown"
	defaultNodeName         = "Unnamed Node"
	defaultRelationshipType = "RELATED_TO"
)

// Document is a self-contained export of one investigation.
type Document struct {
	Investigation *InvestigationRecord `json:"investigation"`
	Nodes         []NodeRecord         `json:"nodes"`
	Relationships []RelationshipRecord `json:"relationships"`
	Types         []TypeRecord         `json:"types"`
	Metadata      Metadata             `json:"metadata"`
}

// InvestigationRecord is the investigation header of a Document.
type InvestigationRecord struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// NodeRecord is an exported node. ID is only meaningful inside the
// document.
type NodeRecord struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Name         string     `json:"name"`
	Data         graph.Data `json:"data"`
	SourceModule string     `json:"source_module,omitempty"`
}

// RelationshipRecord is an exported relationship. Its endpoints refer to
// NodeRecord ids of the same document.
type RelationshipRecord struct {
	ID           string     `json:"id"`
	SourceNodeID string     `json:"source_node_id"`
	TargetNodeID string     `json:"target_node_id"`
	Type         string     `json:"type"`
	Strength     *float64   `json:"strength,omitempty"`
	Data         graph.Data `json:"data"`
	SourceModule string     `json:"source_module,omitempty"`
}

// TypeRecord is a taxonomy entry referenced by the document.
type TypeRecord struct {
	Value       string              `json:"value"`
	EntityType  taxonomy.EntityType `json:"entity_type"`
	Description *string             `json:"description,omitempty"`
}

// Metadata describes when and in which format a Document was written.
type Metadata struct {
	ExportedAt time.Time `json:"exported_at"`
	Version    string    `json:"version"`
}

// ImportResult is the outcome of an import: the new investigation and one
// message per problem plus a closing summary.
type ImportResult struct {
	Investigation *investigations.Investigation `json:"investigation"`
	Messages      []string                      `json:"messages"`
}

// Export serializes an investigation owned by principal with its nodes,
// relationships and the taxonomy entries their types refer to.
func (s *Service) Export(ctx context.Context, principal, investigationID string) (*Document, error) {
	ctx, span := tracing.Start(ctx, "graphquery.Export", tracing.AttrInvestigationID.String(investigationID))
	defer span.End()

	inv, err := s.invs.Authorize(ctx, principal, investigationID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	nodes, err := s.graph.ListNodes(ctx, investigationID, graph.NodeFilter{})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	rels, err := s.graph.ListRelationships(ctx, investigationID, graph.RelationshipFilter{})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	doc := &Document{
		Investigation: &InvestigationRecord{
			ID:          inv.ID,
			Title:       inv.Title,
			Description: inv.Description,
			Tags:        inv.Tags,
			CreatedAt:   inv.CreatedAt,
		},
		Nodes:         make([]NodeRecord, 0, len(nodes)),
		Relationships: make([]RelationshipRecord, 0, len(rels)),
		Types:         []TypeRecord{},
		Metadata:      Metadata{ExportedAt: time.Now().UTC(), Version: FormatVersion},
	}

	refs := newTypeRefs()
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, NodeRecord{
			ID:           n.ID,
			Type:         n.Type,
			Name:         n.Name,
			Data:         n.Data,
			SourceModule: deref(n.SourceModule),
		})
		refs.add(n.Type, taxonomy.EntityNode)
	}
	for _, r := range rels {
		strength := r.Strength
		doc.Relationships = append(doc.Relationships, RelationshipRecord{
			ID:           r.ID,
			SourceNodeID: r.SourceNodeID,
			TargetNodeID: r.TargetNodeID,
			Type:         r.Type,
			Strength:     &strength,
			Data:         r.Data,
			SourceModule: deref(r.SourceModule),
		})
		refs.add(r.Type, taxonomy.EntityRelationship)
	}

	for _, ref := range refs.list {
		rec := ref
		if t, err := s.types.GetByValue(ctx, ref.Value, ref.EntityType); err == nil {
			rec.Description = t.Description
		} else if !apperror.IsNotFound(err) {
			return nil, tracing.RecordError(span, err)
		}
		doc.Types = append(doc.Types, rec)
	}

	return doc, nil
}

// Import re-creates doc as a new investigation owned by principal. Every
// node and relationship gets a fresh id; relationship endpoints are remapped
// through the node ids of the document. A bad record is reported in the
// messages and skipped. Only a missing investigation header fails the call.
func (s *Service) Import(ctx context.Context, principal string, doc *Document) (*ImportResult, error) {
	ctx, span := tracing.Start(ctx, "graphquery.Import")
	defer span.End()

	if doc == nil || doc.Investigation == nil || strings.TrimSpace(doc.Investigation.Title) == "" {
		return nil, apperror.NewInvalid("Invalid investigation data")
	}

	inv, err := s.invs.Create(ctx, principal, investigations.CreateInvestigationRequest{
		Title:       doc.Investigation.Title + " (Imported)",
		Description: doc.Investigation.Description,
		Tags:        doc.Investigation.Tags,
	})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	span.SetAttributes(tracing.AttrInvestigationID.String(inv.ID))

	var messages []string
	s.importTypes(ctx, doc.Types, &messages)

	idMap := make(map[string]string, len(doc.Nodes))
	nodeCount := 0
	for _, rec := range doc.Nodes {
		in := graph.NodeInput{
			Type:         orDefault(rec.Type, defaultNodeType),
			Name:         orDefault(rec.Name, defaultNodeName),
			Data:         rec.Data,
			SourceModule: rec.SourceModule,
		}
		n, err := s.graph.CreateNode(ctx, inv.ID, in, principal)
		if err != nil {
			metrics.ImportedEntities.WithLabelValues("node", "failed").Inc()
			messages = append(messages, fmt.Sprintf("Error importing node %s: %s", in.Name, apperror.Message(err)))
			continue
		}
		metrics.ImportedEntities.WithLabelValues("node", "imported").Inc()
		if rec.ID != "" {
			idMap[rec.ID] = n.ID
		}
		nodeCount++
	}

	relCount := 0
	for _, rec := range doc.Relationships {
		sourceID, okSource := idMap[rec.SourceNodeID]
		targetID, okTarget := idMap[rec.TargetNodeID]
		if !okSource || !okTarget {
			metrics.ImportedEntities.WithLabelValues("relationship", "skipped").Inc()
			messages = append(messages, fmt.Sprintf("Skipped relationship %s: endpoints not present in the import", rec.ID))
			continue
		}

		_, err := s.graph.CreateRelationship(ctx, inv.ID, graph.RelationshipInput{
			SourceNodeID: sourceID,
			TargetNodeID: targetID,
			Type:         orDefault(rec.Type, defaultRelationshipType),
			Strength:     rec.Strength,
			Data:         rec.Data,
			SourceModule: rec.SourceModule,
		}, principal)
		if err != nil {
			metrics.ImportedEntities.WithLabelValues("relationship", "failed").Inc()
			messages = append(messages, fmt.Sprintf("Error importing relationship: %s", apperror.Message(err)))
			continue
		}
		metrics.ImportedEntities.WithLabelValues("relationship", "imported").Inc()
		relCount++
	}

	messages = append(messages, fmt.Sprintf("Successfully imported %d nodes and %d relationships", nodeCount, relCount))
	s.log.Info("investigation imported",
		slog.String("investigation_id", inv.ID),
		slog.Int("nodes", nodeCount),
		slog.Int("relationships", relCount),
		slog.Int("messages", len(messages)))

	// Counts were read before any node existed.
	fresh, err := s.invs.Authorize(ctx, principal, inv.ID)
	if err == nil {
		inv = fresh
	}
	return &ImportResult{Investigation: inv, Messages: messages}, nil
}

// importTypes registers the document's taxonomy entries that are missing.
// Existing entries are left as they are.
func (s *Service) importTypes(ctx context.Context, types []TypeRecord, messages *[]string) {
	for _, rec := range types {
		if !rec.EntityType.Valid() {
			*messages = append(*messages, fmt.Sprintf("Skipped type %s: unknown entity type %q", rec.Value, rec.EntityType))
			continue
		}
		_, err := s.types.GetByValue(ctx, rec.Value, rec.EntityType)
		if err == nil {
			continue
		}
		if apperror.IsNotFound(err) {
			_, err = s.types.Create(ctx, rec.Value, rec.EntityType, rec.Description)
		}
		if err != nil && !apperror.IsConflict(err) {
			*messages = append(*messages, fmt.Sprintf("Error importing type %s: %s", rec.Value, apperror.Message(err)))
		}
	}
}

// typeRefs collects distinct (value, entity type) pairs in first-seen order.
type typeRefs struct {
	seen map[TypeRecord]struct{}
	list []TypeRecord
}

func newTypeRefs() *typeRefs {
	return &typeRefs{seen: make(map[TypeRecord]struct{})}
}

func (r *typeRefs) add(value string, entityType taxonomy.EntityType) {
	key := TypeRecord{Value: value, EntityType: entityType}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.list = append(r.list, key)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
