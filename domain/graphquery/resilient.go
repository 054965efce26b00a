package graphquery

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/metrics"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// Tier identifies how a resilient deletion located its relationship.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierScan
	TierEndpoints
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierScan:
		return "scan"
	case TierEndpoints:
		return "endpoints"
	default:
		return "none"
	}
}

// ErrRelationshipNotFound is returned once every tier has failed.
var ErrRelationshipNotFound = apperror.ErrNotFound.WithMessage("relationship not found in any investigation")

// DeleteRelationshipResilient deletes a relationship for a caller whose id
// may not be the stored one. It tries, in order:
//
//  1. a direct delete by id, skipped when id is not a UUID;
//  2. a scan of every investigation the principal owns for a relationship
//     whose serialized record contains id (ids nested in data included);
//  3. when id has the form "<source>_<target>", the first relationship
//     between those nodes in an investigation the principal owns.
//
// A relationship found by tier 1 in an investigation the principal does not
// own yields Forbidden at once; the later tiers are not tried. Otherwise
// failures fall through, and only ErrRelationshipNotFound surfaces once all
// tiers are exhausted.
//
// Tiers 2 and 3 read live state and are best effort: an edge created
// concurrently may or may not be found. Each fallback used is logged and
// counted, since it points at an id-mapping bug upstream.
func (s *Service) DeleteRelationshipResilient(ctx context.Context, principal, id string) (Tier, error) {
	ctx, span := tracing.Start(ctx, "graphquery.DeleteRelationshipResilient", tracing.AttrRelationshipID.String(id))
	defer span.End()

	var rel *graph.Relationship
	var err error = apperror.ErrNotFound
	if isUUID(id) {
		rel, err = s.graph.GetRelationship(ctx, id)
	}
	switch {
	case err == nil:
		if _, err := s.invs.Authorize(ctx, principal, rel.InvestigationID); err != nil {
			return 0, err
		}
		if err := s.graph.DeleteRelationship(ctx, id); err == nil {
			return TierDirect, nil
		} else if !apperror.IsNotFound(err) {
			s.log.Warn("direct relationship delete failed", slog.String("id", id), logger.Error(err))
		}
	case !apperror.IsNotFound(err):
		s.log.Warn("direct relationship lookup failed", slog.String("id", id), logger.Error(err))
	}

	owned, err := s.invs.ListAllForOwner(ctx, principal)
	if err != nil {
		s.fallbackFailed("none", id, err)
		return 0, tracing.RecordError(span, ErrRelationshipNotFound)
	}
	visible := make(map[string]struct{}, len(owned))
	for _, inv := range owned {
		visible[inv.ID] = struct{}{}
	}

	realID, err := s.scanForRelationship(ctx, owned, id)
	if err != nil {
		s.fallbackFailed(TierScan.String(), id, err)
	}
	if realID != "" && s.deleteFound(ctx, TierScan, id, realID) {
		return TierScan, nil
	}

	if realID = s.relationshipFromEndpoints(ctx, visible, id); realID != "" && s.deleteFound(ctx, TierEndpoints, id, realID) {
		return TierEndpoints, nil
	}

	metrics.RelationshipDeleteFallbacks.WithLabelValues("exhausted").Inc()
	s.log.Warn("relationship not found by any tier", slog.String("id", id))
	return 0, tracing.RecordError(span, ErrRelationshipNotFound)
}

// scanForRelationship looks through the relationships of each owned
// investigation for one whose JSON form mentions id. One investigation is
// read per limiter token.
//
// The match is a plain substring test over the record minus created_by, so
// an id naming an endpoint node or the investigation itself also selects a
// relationship. That keeps stale callers that sent one of those ids working.
// The author is left out because every edge the caller made carries it.
func (s *Service) scanForRelationship(ctx context.Context, owned []investigations.Investigation, id string) (string, error) {
	for _, inv := range owned {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		rels, err := s.graph.ListRelationships(ctx, inv.ID, graph.RelationshipFilter{})
		if err != nil {
			return "", err
		}
		for _, rel := range rels {
			rel.CreatedBy = nil
			b, err := json.Marshal(rel)
			if err != nil {
				continue
			}
			if strings.Contains(string(b), id) {
				return rel.ID, nil
			}
		}
	}
	return "", nil
}

// relationshipFromEndpoints reads id as "<source>_<target>" and returns the
// first relationship between the two nodes that the caller can see.
func (s *Service) relationshipFromEndpoints(ctx context.Context, visible map[string]struct{}, id string) string {
	sourceID, targetID, ok := strings.Cut(id, "_")
	if !ok || !isUUID(sourceID) || !isUUID(targetID) {
		return ""
	}

	rels, err := s.graph.RelationshipsBetween(ctx, sourceID, targetID)
	if err != nil {
		s.fallbackFailed(TierEndpoints.String(), id, err)
		return ""
	}
	for _, rel := range rels {
		if _, ok := visible[rel.InvestigationID]; ok {
			return rel.ID
		}
	}
	return ""
}

func (s *Service) deleteFound(ctx context.Context, tier Tier, requested, realID string) bool {
	if err := s.graph.DeleteRelationship(ctx, realID); err != nil {
		s.fallbackFailed(tier.String(), requested, err)
		return false
	}
	metrics.RelationshipDeleteFallbacks.WithLabelValues(tier.String()).Inc()
	s.log.Warn("relationship deleted through fallback lookup",
		slog.String("tier", tier.String()),
		slog.String("requested_id", requested),
		slog.String("relationship_id", realID))
	return true
}

// isUUID reports whether id can name a stored row. Other ids go straight to
// the fallbacks instead of failing a typed lookup in the database.
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}

func (s *Service) fallbackFailed(tier, id string, err error) {
	s.log.Warn("relationship delete fallback failed",
		slog.String("tier", tier),
		slog.String("id", id),
		logger.Error(err))
}
