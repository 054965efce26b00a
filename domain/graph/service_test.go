package graph

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/internal/testutil"
	"github.com/osfiler/osfiler/pkg/apperror"
)

type ServiceSuite struct {
	testutil.BaseSuite
	svc   *Service
	types *taxonomy.Service
	invs  *investigations.Service
	inv   *investigations.Investigation
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.BaseSuite.SetupTest()
	s.types = taxonomy.NewService(taxonomy.NewRepository(s.DB, s.Log), s.Log)
	s.invs = investigations.NewService(investigations.NewRepository(s.DB, s.Log), s.Log)
	s.svc = NewService(NewRepository(s.DB, s.Log), s.types, s.Log)
	s.inv = s.investigation("Case")
}

func (s *ServiceSuite) investigation(title string) *investigations.Investigation {
	inv, err := s.invs.Create(s.Ctx, testutil.Alice, investigations.CreateInvestigationRequest{Title: title})
	s.Require().NoError(err)
	return inv
}

func (s *ServiceSuite) node(investigationID, nodeType, name string) *Node {
	n, err := s.svc.CreateNode(s.Ctx, investigationID, NodeInput{Type: nodeType, Name: name}, testutil.Alice)
	s.Require().NoError(err)
	return n
}

func (s *ServiceSuite) edge(src, dst *Node, relType string) *Relationship {
	rel, err := s.svc.CreateRelationship(s.Ctx, src.InvestigationID, RelationshipInput{
		SourceNodeID: src.ID,
		TargetNodeID: dst.ID,
		Type:         relType,
	}, testutil.Alice)
	s.Require().NoError(err)
	return rel
}

func (s *ServiceSuite) TestCreateNode_NormalizesAndRegistersType() {
	n, err := s.svc.CreateNode(s.Ctx, s.inv.ID, NodeInput{
		Type:         "crypto wallet",
		Name:         "  bc1q  ",
		Data:         Data{"chain": "btc"},
		SourceModule: "wallet_lookup",
	}, testutil.Alice)
	s.Require().NoError(err)

	s.Equal("CRYPTO_WALLET", n.Type)
	s.Equal("bc1q", n.Name)
	s.Equal(Data{"chain": "btc"}, n.Data)
	s.Require().NotNil(n.CreatedBy)
	s.Equal(testutil.Alice, *n.CreatedBy)
	s.Require().NotNil(n.SourceModule)
	s.Equal("wallet_lookup", *n.SourceModule)

	t, err := s.types.GetByValue(s.Ctx, "CRYPTO_WALLET", taxonomy.EntityNode)
	s.Require().NoError(err)
	s.False(t.IsSystem)

	got, err := s.svc.GetNode(s.Ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(Data{"chain": "btc"}, got.Data)
}

func (s *ServiceSuite) TestCreateNode_Invalid() {
	_, err := s.svc.CreateNode(s.Ctx, s.inv.ID, NodeInput{Type: "person", Name: "  "}, testutil.Alice)
	s.True(apperror.IsInvalid(err))

	_, err = s.svc.CreateNode(s.Ctx, s.inv.ID, NodeInput{Type: " ", Name: "x"}, testutil.Alice)
	s.True(apperror.IsInvalid(err))

	_, err = s.svc.GetNode(s.Ctx, "missing")
	s.True(apperror.IsNotFound(err))
}

// A node with an email edge survives as long as the node does, and the edge
// is probed in its own direction only.
func (s *ServiceSuite) TestEdgeLifecycle() {
	n1 := s.node(s.inv.ID, "person", "Ada")
	n2 := s.node(s.inv.ID, "email", "ada@example.com")
	rel := s.edge(n1, n2, "has email")
	s.Equal("HAS_EMAIL", rel.Type)
	s.Equal(DefaultStrength, rel.Strength)

	exists, err := s.svc.CheckRelationshipExists(s.Ctx, n1.ID, n2.ID, "has_email")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.svc.CheckRelationshipExists(s.Ctx, n2.ID, n1.ID, "HAS_EMAIL")
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.svc.CheckRelationshipExists(s.Ctx, n1.ID, n2.ID, "")
	s.Require().NoError(err)
	s.True(exists)

	// Any spelling that create accepts finds the stored edge.
	for _, label := range []string{"has email", "  Has   Email ", "HAS_EMAIL"} {
		exists, err = s.svc.CheckRelationshipExists(s.Ctx, n1.ID, n2.ID, label)
		s.Require().NoError(err)
		s.True(exists, label)
	}

	exists, err = s.svc.CheckRelationshipExists(s.Ctx, n1.ID, n2.ID, "has phone")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.svc.DeleteNode(s.Ctx, n1.ID))

	_, err = s.svc.GetRelationship(s.Ctx, rel.ID)
	s.True(apperror.IsNotFound(err))
	count, err := s.svc.CountRelationships(s.Ctx, s.inv.ID, RelationshipFilter{})
	s.Require().NoError(err)
	s.Zero(count)

	s.True(apperror.IsNotFound(s.svc.DeleteNode(s.Ctx, n1.ID)))
}

func (s *ServiceSuite) TestCreateRelationship_Strength() {
	a := s.node(s.inv.ID, "person", "A")
	b := s.node(s.inv.ID, "person", "B")

	tests := []struct {
		in   float64
		want float64
	}{
		{1.7, 1},
		{-0.3, 0},
		{0.25, 0.25},
	}
	for _, tt := range tests {
		in := tt.in
		rel, err := s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
			SourceNodeID: a.ID, TargetNodeID: b.ID, Type: "knows", Strength: &in,
		}, testutil.Alice)
		s.Require().NoError(err)
		s.Equal(tt.want, rel.Strength)
	}

	nan := math.NaN()
	_, err := s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: b.ID, Type: "knows", Strength: &nan,
	}, testutil.Alice)
	s.True(apperror.IsInvalid(err))
}

func (s *ServiceSuite) TestCreateRelationship_Endpoints() {
	a := s.node(s.inv.ID, "person", "A")
	other := s.investigation("Other")
	b := s.node(other.ID, "person", "B")

	_, err := s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: b.ID, Type: "knows",
	}, testutil.Alice)
	s.True(apperror.IsInvalid(err), "got %v", err)

	_, err = s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: "missing", TargetNodeID: a.ID, Type: "knows",
	}, testutil.Alice)
	s.True(apperror.IsNotFound(err))

	_, err = s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: "missing", Type: "knows",
	}, testutil.Alice)
	s.True(apperror.IsNotFound(err))

	// Self loops are allowed.
	_, err = s.svc.CreateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: a.ID, Type: "alias of",
	}, testutil.Alice)
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdateNode_Data() {
	n, err := s.svc.CreateNode(s.Ctx, s.inv.ID, NodeInput{
		Type: "person", Name: "Ada", Data: Data{"a": "1", "b": "2"},
	}, testutil.Alice)
	s.Require().NoError(err)

	updated, err := s.svc.UpdateNode(s.Ctx, n.ID, NodeUpdate{Data: MergeData(Data{"b": "3", "c": "4"})})
	s.Require().NoError(err)
	s.Equal(Data{"a": "1", "b": "3", "c": "4"}, updated.Data)

	name, nodeType := "Ada Lovelace", "researcher"
	updated, err = s.svc.UpdateNode(s.Ctx, n.ID, NodeUpdate{
		Name: &name, Type: &nodeType, Data: ReplaceData(Data{"only": "x"}),
	})
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", updated.Name)
	s.Equal("RESEARCHER", updated.Type)

	got, err := s.svc.GetNode(s.Ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(Data{"only": "x"}, got.Data)
	s.False(got.UpdatedAt.Before(n.UpdatedAt))

	_, err = s.svc.UpdateNode(s.Ctx, "missing", NodeUpdate{Name: &name})
	s.True(apperror.IsNotFound(err))
}

func (s *ServiceSuite) TestUpdateRelationship() {
	a := s.node(s.inv.ID, "person", "A")
	b := s.node(s.inv.ID, "person", "B")
	rel := s.edge(a, b, "knows")

	strength, relType := 2.0, "works with"
	updated, err := s.svc.UpdateRelationship(s.Ctx, rel.ID, RelationshipUpdate{
		Type: &relType, Strength: &strength, Data: MergeData(Data{"since": "2020"}),
	})
	s.Require().NoError(err)
	s.Equal(1.0, updated.Strength)
	s.Equal("WORKS_WITH", updated.Type)
	s.Equal(Data{"since": "2020"}, updated.Data)

	nan := math.NaN()
	_, err = s.svc.UpdateRelationship(s.Ctx, rel.ID, RelationshipUpdate{Strength: &nan})
	s.True(apperror.IsInvalid(err))
}

func (s *ServiceSuite) TestCreateOrUpdateNode() {
	n, created, err := s.svc.CreateOrUpdateNode(s.Ctx, s.inv.ID, NodeInput{
		Type: "email", Name: "ada@example.com", Data: Data{"verified": false},
	}, testutil.Alice)
	s.Require().NoError(err)
	s.True(created)

	again, created, err := s.svc.CreateOrUpdateNode(s.Ctx, s.inv.ID, NodeInput{
		Type: "Email", Name: "ada@example.com", Data: Data{"verified": true, "source": "hibp"},
	}, testutil.Alice)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(n.ID, again.ID)
	s.Equal(Data{"verified": true, "source": "hibp"}, again.Data)

	count, err := s.svc.CountNodes(s.Ctx, s.inv.ID, NodeFilter{})
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestCreateOrUpdateRelationship() {
	a := s.node(s.inv.ID, "person", "A")
	b := s.node(s.inv.ID, "person", "B")
	strength := 0.9

	rel, created, err := s.svc.CreateOrUpdateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: b.ID, Type: "knows",
	}, testutil.Alice)
	s.Require().NoError(err)
	s.True(created)

	again, created, err := s.svc.CreateOrUpdateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: a.ID, TargetNodeID: b.ID, Type: "KNOWS", Strength: &strength,
	}, testutil.Alice)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(rel.ID, again.ID)
	s.Equal(0.9, again.Strength)

	// The reverse direction is a different edge.
	_, created, err = s.svc.CreateOrUpdateRelationship(s.Ctx, s.inv.ID, RelationshipInput{
		SourceNodeID: b.ID, TargetNodeID: a.ID, Type: "knows",
	}, testutil.Alice)
	s.Require().NoError(err)
	s.True(created)

	between, err := s.svc.RelationshipsBetween(s.Ctx, a.ID, b.ID)
	s.Require().NoError(err)
	s.Len(between, 2)
}

func (s *ServiceSuite) TestNeighbors() {
	a := s.node(s.inv.ID, "person", "A")
	b := s.node(s.inv.ID, "person", "B")
	c := s.node(s.inv.ID, "email", "c@example.com")
	s.edge(a, b, "knows")
	s.edge(c, a, "belongs to")

	out, err := s.svc.Neighbors(s.Ctx, a.ID, DirectionOutgoing, "")
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(b.ID, out[0].ID)

	in, err := s.svc.Neighbors(s.Ctx, a.ID, DirectionIncoming, "")
	s.Require().NoError(err)
	s.Require().Len(in, 1)
	s.Equal(c.ID, in[0].ID)

	both, err := s.svc.Neighbors(s.Ctx, a.ID, DirectionBoth, "knows")
	s.Require().NoError(err)
	s.Require().Len(both, 1)
	s.Equal(b.ID, both[0].ID)
}

func (s *ServiceSuite) TestListSearchAndCounts() {
	s.node(s.inv.ID, "person", "Ada Lovelace")
	s.node(s.inv.ID, "person", "Alan Turing")
	s.node(s.inv.ID, "email", "100%_real@example.com")

	persons, err := s.svc.ListNodes(s.Ctx, s.inv.ID, NodeFilter{Type: "Person"})
	s.Require().NoError(err)
	s.Len(persons, 2)

	page, err := s.svc.ListNodes(s.Ctx, s.inv.ID, NodeFilter{Skip: 1, Limit: 1})
	s.Require().NoError(err)
	s.Len(page, 1)

	found, err := s.svc.SearchNodes(s.Ctx, s.inv.ID, "LOVELACE", NodeFilter{})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("Ada Lovelace", found[0].Name)

	found, err = s.svc.SearchNodes(s.Ctx, s.inv.ID, "%_", NodeFilter{})
	s.Require().NoError(err)
	s.Len(found, 1)

	_, err = s.svc.SearchNodes(s.Ctx, s.inv.ID, " ", NodeFilter{})
	s.True(apperror.IsInvalid(err))

	counts, err := s.svc.NodeTypeCounts(s.Ctx, s.inv.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]TypeCount{{Type: "PERSON", Count: 2}, {Type: "EMAIL", Count: 1}}, counts)
}

func (s *ServiceSuite) TestDeleteRelationship() {
	a := s.node(s.inv.ID, "person", "A")
	b := s.node(s.inv.ID, "person", "B")
	rel := s.edge(a, b, "knows")

	s.Require().NoError(s.svc.DeleteRelationship(s.Ctx, rel.ID))
	s.True(apperror.IsNotFound(s.svc.DeleteRelationship(s.Ctx, rel.ID)))
}

type failingRegistrar struct{}

func (failingRegistrar) EnsureType(context.Context, string, taxonomy.EntityType) (string, error) {
	return "", errors.New("taxonomy unavailable")
}

func TestCreateNode_RegistrationFailureDoesNotBlock(t *testing.T) {
	db := testutil.NewTestDB(t)
	log := testutil.Logger()
	invs := investigations.NewService(investigations.NewRepository(db, log), log)
	inv, err := invs.Create(t.Context(), testutil.Alice, investigations.CreateInvestigationRequest{Title: "Case"})
	require.NoError(t, err)

	svc := NewService(NewRepository(db, log), failingRegistrar{}, log)
	n, err := svc.CreateNode(t.Context(), inv.ID, NodeInput{Type: "alias", Name: "x"}, testutil.Alice)
	require.NoError(t, err)
	assert.Equal(t, "ALIAS", n.Type)
}
