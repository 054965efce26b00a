// Package reconciliation converges the persisted taxonomy for one entity
// type onto a caller-declared desired set.
package reconciliation

import (
	"context"
	"log/slog"

	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/metrics"
	"github.com/osfiler/osfiler/pkg/tracing"
)

// TypeStore is the slice of the taxonomy service the reconciler drives.
type TypeStore interface {
	List(ctx context.Context, entityType taxonomy.EntityType) ([]taxonomy.Type, error)
	Create(ctx context.Context, value string, entityType taxonomy.EntityType, description *string) (*taxonomy.Type, error)
	Update(ctx context.Context, id string, req taxonomy.UpdateTypeRequest) (*taxonomy.Type, error)
	Delete(ctx context.Context, id string) error
}

// DesiredType is one entry of the desired taxonomy.
type DesiredType struct {
	Value       string  `json:"value" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// Action names the step an ItemError happened in.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ItemError records a single failed step. The rest of the batch still runs.
type ItemError struct {
	Value   string `json:"value"`
	Action  Action `json:"action"`
	Message string `json:"message"`
}

// Result summarizes a reconciliation run. Description updates are counted
// in Unchanged.
type Result struct {
	EntityType taxonomy.EntityType `json:"entity_type"`
	Created    int                 `json:"created"`
	Deleted    int                 `json:"deleted"`
	Unchanged  int                 `json:"unchanged"`
	Errors     []ItemError         `json:"errors"`
}

// Reconciler applies the create/update/delete diff between the stored
// taxonomy and a desired one.
//
// The steps are independent and not wrapped in a transaction: a failure
// midway leaves the store partially converged, and a concurrent direct
// edit between steps can be overwritten.
type Reconciler struct {
	store TypeStore
	log   *slog.Logger
}

// NewReconciler creates a reconciler over the taxonomy service.
func NewReconciler(svc *taxonomy.Service, log *slog.Logger) *Reconciler {
	return NewReconcilerWithStore(svc, log)
}

// NewReconcilerWithStore creates a reconciler over an arbitrary TypeStore.
func NewReconcilerWithStore(store TypeStore, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		log:   log.With(logger.Scope("reconciliation")),
	}
}

type desiredEntry struct {
	value       string
	description *string
}

// Reconcile converges entityType onto desired. Only a failure to read the
// current taxonomy (or an invalid entity type) is returned as an error;
// per-item failures are collected in Result.Errors.
func (r *Reconciler) Reconcile(ctx context.Context, entityType taxonomy.EntityType, desired []DesiredType) (*Result, error) {
	ctx, span := tracing.Start(ctx, "reconciliation.Reconcile", tracing.AttrEntityType.String(string(entityType)))
	defer span.End()

	current, err := r.store.List(ctx, entityType)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	byValue := make(map[string]taxonomy.Type, len(current))
	for _, t := range current {
		byValue[taxonomy.NormalizeValue(t.Value)] = t
	}

	// Later duplicates win, first-seen order is kept for creates.
	want := make(map[string]desiredEntry, len(desired))
	var order []string
	result := &Result{EntityType: entityType, Errors: []ItemError{}}
	for _, d := range desired {
		v := taxonomy.NormalizeValue(d.Value)
		if v == "" {
			result.Errors = append(result.Errors, ItemError{Value: d.Value, Action: ActionCreate, Message: "type value cannot be empty"})
			continue
		}
		if _, seen := want[v]; !seen {
			order = append(order, v)
		}
		want[v] = desiredEntry{value: v, description: d.Description}
	}

	for _, t := range current {
		if t.IsSystem {
			continue
		}
		if _, keep := want[taxonomy.NormalizeValue(t.Value)]; keep {
			continue
		}
		if err := r.store.Delete(ctx, t.ID); err != nil {
			r.fail(result, t.Value, ActionDelete, err)
			continue
		}
		result.Deleted++
		r.count(entityType, "deleted")
	}

	for _, v := range order {
		d := want[v]
		existing, ok := byValue[v]
		if !ok {
			if _, err := r.store.Create(ctx, v, entityType, d.description); err != nil {
				r.fail(result, v, ActionCreate, err)
				continue
			}
			result.Created++
			r.count(entityType, "created")
			continue
		}

		if existing.IsSystem || existing.DescriptionOrEmpty() == derefOrEmpty(d.description) {
			result.Unchanged++
			r.count(entityType, "unchanged")
			continue
		}

		desc := derefOrEmpty(d.description)
		if _, err := r.store.Update(ctx, existing.ID, taxonomy.UpdateTypeRequest{Description: &desc}); err != nil {
			r.fail(result, v, ActionUpdate, err)
			continue
		}
		result.Unchanged++
		r.count(entityType, "updated")
	}

	r.log.Info("taxonomy reconciled",
		slog.String("entity_type", string(entityType)),
		slog.Int("created", result.Created),
		slog.Int("deleted", result.Deleted),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

func (r *Reconciler) fail(result *Result, value string, action Action, err error) {
	result.Errors = append(result.Errors, ItemError{Value: value, Action: action, Message: apperror.Message(err)})
	r.count(result.EntityType, "failed")
	r.log.Warn("reconcile step failed",
		slog.String("value", value),
		slog.String("action", string(action)),
		logger.Error(err))
}

func (r *Reconciler) count(entityType taxonomy.EntityType, outcome string) {
	metrics.ReconcileOutcomes.WithLabelValues(string(entityType), outcome).Inc()
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
