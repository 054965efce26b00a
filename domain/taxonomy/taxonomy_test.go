package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/osfiler/osfiler/internal/testutil"
	"github.com/osfiler/osfiler/pkg/apperror"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"person", "PERSON"},
		{"  works at  ", "WORKS_AT"},
		{"social   profile", "SOCIAL_PROFILE"},
		{"has\temail\naddress", "HAS_EMAIL_ADDRESS"},
		{"ALREADY_NORMAL", "ALREADY_NORMAL"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeValue(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeValue(got), "normalization must be idempotent")
		})
	}
}

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		in     string
		want   EntityType
		wantOK bool
	}{
		{"node", EntityNode, true},
		{"Relationship", EntityRelationship, true},
		{" NODE ", EntityNode, true},
		{"edge", EntityType("edge"), false},
		{"", EntityType(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseEntityType(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)
	assert.Len(t, c.Node, 13)
	assert.Len(t, c.Relationship, 19)
	assert.Equal(t, "PERSON", c.Node[0].Value)
	assert.Equal(t, "CUSTOM", c.Relationship[len(c.Relationship)-1].Value)
}

type ServiceSuite struct {
	testutil.BaseSuite
	svc *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.BaseSuite.SetupTest()
	s.svc = NewService(NewRepository(s.DB, s.Log), s.Log)
}

func (s *ServiceSuite) seed() {
	c, err := LoadCatalog()
	s.Require().NoError(err)
	_, err = s.svc.SeedSystemTypes(s.Ctx, c)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestCreate_NormalizesValue() {
	desc := "an alias"
	t, err := s.svc.Create(s.Ctx, "  screen   name ", EntityNode, &desc)
	s.Require().NoError(err)

	s.Equal("SCREEN_NAME", t.Value)
	s.Equal(EntityNode, t.EntityType)
	s.False(t.IsSystem)
	s.Equal("an alias", t.DescriptionOrEmpty())

	got, err := s.svc.GetByValue(s.Ctx, "screen name", EntityNode)
	s.Require().NoError(err)
	s.Equal(t.ID, got.ID)
}

func (s *ServiceSuite) TestCreate_ConflictOnNormalizedDuplicate() {
	_, err := s.svc.Create(s.Ctx, "Crypto Wallet", EntityNode, nil)
	s.Require().NoError(err)

	_, err = s.svc.Create(s.Ctx, "crypto  wallet", EntityNode, nil)
	s.True(apperror.IsConflict(err), "got %v", err)

	// Same value under the other entity type is a different type.
	_, err = s.svc.Create(s.Ctx, "crypto wallet", EntityRelationship, nil)
	s.NoError(err)
}

func (s *ServiceSuite) TestCreate_Invalid() {
	_, err := s.svc.Create(s.Ctx, "   ", EntityNode, nil)
	s.True(apperror.IsInvalid(err))

	_, err = s.svc.Create(s.Ctx, "X", EntityType("edge"), nil)
	s.True(apperror.IsInvalid(err))
}

func (s *ServiceSuite) TestSystemTypesAreProtected() {
	s.seed()
	person, err := s.svc.GetByValue(s.Ctx, "person", EntityNode)
	s.Require().NoError(err)
	s.True(person.IsSystem)

	desc := "changed"
	_, err = s.svc.Update(s.Ctx, person.ID, UpdateTypeRequest{Description: &desc})
	s.True(apperror.IsForbidden(err))

	err = s.svc.Delete(s.Ctx, person.ID)
	s.True(apperror.IsForbidden(err))

	after, err := s.svc.Get(s.Ctx, person.ID)
	s.Require().NoError(err)
	s.Equal("A person or individual", after.DescriptionOrEmpty())
}

func (s *ServiceSuite) TestUpdate() {
	t, err := s.svc.Create(s.Ctx, "alias", EntityNode, nil)
	s.Require().NoError(err)
	_, err = s.svc.Create(s.Ctx, "handle", EntityNode, nil)
	s.Require().NoError(err)

	newValue, desc := "known as", "alternate name"
	updated, err := s.svc.Update(s.Ctx, t.ID, UpdateTypeRequest{Value: &newValue, Description: &desc})
	s.Require().NoError(err)
	s.Equal("KNOWN_AS", updated.Value)
	s.Equal("alternate name", updated.DescriptionOrEmpty())

	taken := " Handle "
	_, err = s.svc.Update(s.Ctx, t.ID, UpdateTypeRequest{Value: &taken})
	s.True(apperror.IsConflict(err))

	blank := "  "
	_, err = s.svc.Update(s.Ctx, t.ID, UpdateTypeRequest{Value: &blank})
	s.True(apperror.IsInvalid(err))

	_, err = s.svc.Update(s.Ctx, "missing", UpdateTypeRequest{Description: &desc})
	s.True(apperror.IsNotFound(err))
}

func (s *ServiceSuite) TestDelete() {
	t, err := s.svc.Create(s.Ctx, "temp", EntityRelationship, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.Ctx, t.ID))
	s.True(apperror.IsNotFound(s.svc.Delete(s.Ctx, t.ID)))
}

func (s *ServiceSuite) TestList_FilterAndOrder() {
	for _, v := range []string{"zeta", "alpha"} {
		_, err := s.svc.Create(s.Ctx, v, EntityNode, nil)
		s.Require().NoError(err)
	}
	_, err := s.svc.Create(s.Ctx, "links", EntityRelationship, nil)
	s.Require().NoError(err)

	nodes, err := s.svc.List(s.Ctx, EntityNode)
	s.Require().NoError(err)
	s.Require().Len(nodes, 2)
	s.Equal("ALPHA", nodes[0].Value)
	s.Equal("ZETA", nodes[1].Value)

	all, err := s.svc.List(s.Ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.svc.List(s.Ctx, EntityType("bogus"))
	s.True(apperror.IsInvalid(err))
}

func (s *ServiceSuite) TestEnsureType() {
	v, err := s.svc.EnsureType(s.Ctx, "crypto wallet", EntityNode)
	s.Require().NoError(err)
	s.Equal("CRYPTO_WALLET", v)

	t, err := s.svc.GetByValue(s.Ctx, v, EntityNode)
	s.Require().NoError(err)
	s.False(t.IsSystem)
	s.Equal("Custom node type: CRYPTO_WALLET", t.DescriptionOrEmpty())

	again, err := s.svc.EnsureType(s.Ctx, "Crypto Wallet", EntityNode)
	s.Require().NoError(err)
	s.Equal(v, again)

	all, err := s.svc.List(s.Ctx, EntityNode)
	s.Require().NoError(err)
	s.Len(all, 1)

	_, err = s.svc.EnsureType(s.Ctx, " ", EntityNode)
	s.True(apperror.IsInvalid(err))
}

func (s *ServiceSuite) TestSeedSystemTypes_Idempotent() {
	c, err := LoadCatalog()
	s.Require().NoError(err)

	created, err := s.svc.SeedSystemTypes(s.Ctx, c)
	s.Require().NoError(err)
	s.Equal(32, created)

	created, err = s.svc.SeedSystemTypes(s.Ctx, c)
	s.Require().NoError(err)
	s.Equal(0, created)

	rels, err := s.svc.List(s.Ctx, EntityRelationship)
	s.Require().NoError(err)
	s.Len(rels, 19)
	for _, r := range rels {
		s.True(r.IsSystem, r.Value)
	}
}
