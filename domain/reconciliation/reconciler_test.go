package reconciliation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/internal/testutil"
	"github.com/osfiler/osfiler/pkg/apperror"
)

func ptr(s string) *string { return &s }

type ReconcilerSuite struct {
	testutil.BaseSuite
	types *taxonomy.Service
	rec   *Reconciler
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.BaseSuite.SetupTest()
	s.types = taxonomy.NewService(taxonomy.NewRepository(s.DB, s.Log), s.Log)
	s.rec = NewReconciler(s.types, s.Log)
}

func (s *ReconcilerSuite) values(entityType taxonomy.EntityType) []string {
	types, err := s.types.List(s.Ctx, entityType)
	s.Require().NoError(err)
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.Value)
	}
	return out
}

func (s *ReconcilerSuite) TestEmptyDesiredKeepsSystemTypes() {
	s.Require().NoError(s.seedPerson())
	_, err := s.types.Create(s.Ctx, "custom x", taxonomy.EntityNode, nil)
	s.Require().NoError(err)

	res, err := s.rec.Reconcile(s.Ctx, taxonomy.EntityNode, nil)
	s.Require().NoError(err)

	s.Equal(1, res.Deleted)
	s.Equal(0, res.Created)
	s.Empty(res.Errors)
	s.Equal([]string{"PERSON"}, s.values(taxonomy.EntityNode))
}

func (s *ReconcilerSuite) seedPerson() error {
	_, err := s.types.SeedSystemTypes(s.Ctx, &taxonomy.Catalog{
		Node: []taxonomy.SeedType{{Value: "PERSON", Description: "A person or individual"}},
	})
	return err
}

func (s *ReconcilerSuite) TestConvergesAndIsIdempotent() {
	_, err := s.types.Create(s.Ctx, "stale", taxonomy.EntityRelationship, nil)
	s.Require().NoError(err)
	_, err = s.types.Create(s.Ctx, "owns", taxonomy.EntityRelationship, ptr("old"))
	s.Require().NoError(err)

	desired := []DesiredType{
		{Value: "owns", Description: ptr("Ownership")},
		{Value: "  works   at ", Description: ptr("Employment")},
		{Value: "funds"},
	}

	first, err := s.rec.Reconcile(s.Ctx, taxonomy.EntityRelationship, desired)
	s.Require().NoError(err)
	s.Equal(2, first.Created)
	s.Equal(1, first.Deleted)
	s.Equal(1, first.Unchanged)
	s.Empty(first.Errors)

	owns, err := s.types.GetByValue(s.Ctx, "OWNS", taxonomy.EntityRelationship)
	s.Require().NoError(err)
	s.Equal("Ownership", owns.DescriptionOrEmpty())
	s.ElementsMatch([]string{"FUNDS", "OWNS", "WORKS_AT"}, s.values(taxonomy.EntityRelationship))

	second, err := s.rec.Reconcile(s.Ctx, taxonomy.EntityRelationship, desired)
	s.Require().NoError(err)
	s.Equal(0, second.Created)
	s.Equal(0, second.Deleted)
	s.Equal(3, second.Unchanged)
	s.Empty(second.Errors)

	after, err := s.types.GetByValue(s.Ctx, "OWNS", taxonomy.EntityRelationship)
	s.Require().NoError(err)
	s.Equal(owns.UpdatedAt, after.UpdatedAt, "second run must not rewrite rows")
}

func (s *ReconcilerSuite) TestSystemTypeNeverUpdated() {
	s.Require().NoError(s.seedPerson())

	res, err := s.rec.Reconcile(s.Ctx, taxonomy.EntityNode, []DesiredType{
		{Value: "person", Description: ptr("rewritten")},
	})
	s.Require().NoError(err)
	s.Empty(res.Errors)
	s.Equal(1, res.Unchanged)

	person, err := s.types.GetByValue(s.Ctx, "PERSON", taxonomy.EntityNode)
	s.Require().NoError(err)
	s.Equal("A person or individual", person.DescriptionOrEmpty())
}

func (s *ReconcilerSuite) TestOtherEntityTypeUntouched() {
	_, err := s.types.Create(s.Ctx, "knows", taxonomy.EntityRelationship, nil)
	s.Require().NoError(err)

	_, err = s.rec.Reconcile(s.Ctx, taxonomy.EntityNode, []DesiredType{{Value: "email"}})
	s.Require().NoError(err)

	s.Equal([]string{"KNOWS"}, s.values(taxonomy.EntityRelationship))
	s.Equal([]string{"EMAIL"}, s.values(taxonomy.EntityNode))
}

func (s *ReconcilerSuite) TestDuplicateDesiredCollapseToLast() {
	res, err := s.rec.Reconcile(s.Ctx, taxonomy.EntityNode, []DesiredType{
		{Value: "alias", Description: ptr("first")},
		{Value: "ALIAS", Description: ptr("second")},
		{Value: "   "},
	})
	s.Require().NoError(err)
	s.Equal(1, res.Created)
	s.Require().Len(res.Errors, 1)
	s.Equal(ActionCreate, res.Errors[0].Action)

	alias, err := s.types.GetByValue(s.Ctx, "ALIAS", taxonomy.EntityNode)
	s.Require().NoError(err)
	s.Equal("second", alias.DescriptionOrEmpty())
}

// fakeStore serves a fixed taxonomy and fails the operations it is told to.
type fakeStore struct {
	types     []taxonomy.Type
	failOn    map[string]error
	listErr   error
	created   []string
	deleted   []string
	updatedTo map[string]string
}

func (f *fakeStore) List(_ context.Context, _ taxonomy.EntityType) ([]taxonomy.Type, error) {
	return f.types, f.listErr
}

func (f *fakeStore) Create(_ context.Context, value string, entityType taxonomy.EntityType, _ *string) (*taxonomy.Type, error) {
	if err := f.failOn["create:"+value]; err != nil {
		return nil, err
	}
	f.created = append(f.created, value)
	return &taxonomy.Type{Value: value, EntityType: entityType}, nil
}

func (f *fakeStore) Update(_ context.Context, id string, req taxonomy.UpdateTypeRequest) (*taxonomy.Type, error) {
	if err := f.failOn["update:"+id]; err != nil {
		return nil, err
	}
	if f.updatedTo == nil {
		f.updatedTo = map[string]string{}
	}
	f.updatedTo[id] = *req.Description
	return &taxonomy.Type{ID: id}, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if err := f.failOn["delete:"+id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestReconcile_PartialFailureIsCollected(t *testing.T) {
	store := &fakeStore{
		types: []taxonomy.Type{
			{ID: "1", Value: "GONE_A"},
			{ID: "2", Value: "GONE_B"},
			{ID: "3", Value: "KEEP", Description: ptr("old")},
			{ID: "4", Value: "PERSON", IsSystem: true},
		},
		failOn: map[string]error{
			"delete:1":   apperror.ErrDatabase.WithInternal(errors.New("connection reset")),
			"create:NEW": apperror.NewConflict("Type 'NEW' already exists for node"),
		},
	}
	rec := NewReconcilerWithStore(store, testutil.Logger())

	res, err := rec.Reconcile(t.Context(), taxonomy.EntityNode, []DesiredType{
		{Value: "keep", Description: ptr("new")},
		{Value: "new"},
		{Value: "other"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, store.deleted)
	assert.Equal(t, []string{"OTHER"}, store.created)
	assert.Equal(t, map[string]string{"3": "new"}, store.updatedTo)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Unchanged)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, ItemError{Value: "GONE_A", Action: ActionDelete, Message: "Database operation failed"}, res.Errors[0])
	assert.Equal(t, ActionCreate, res.Errors[1].Action)
	assert.Equal(t, "NEW", res.Errors[1].Value)
}

func TestReconcile_ListFailureIsFatal(t *testing.T) {
	store := &fakeStore{listErr: apperror.ErrDatabase}
	rec := NewReconcilerWithStore(store, testutil.Logger())

	_, err := rec.Reconcile(t.Context(), taxonomy.EntityNode, nil)
	assert.ErrorIs(t, err, apperror.ErrDatabase)
}
