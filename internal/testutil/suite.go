package testutil

import (
	"context"
	"log/slog"

	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"
)

// BaseSuite gives each test a fresh in-memory database.
//
// Usage:
//
//	type NodeSuite struct {
//	    testutil.BaseSuite
//	    svc *Service
//	}
//
//	func (s *NodeSuite) SetupTest() {
//	    s.BaseSuite.SetupTest()
//	    s.svc = NewService(NewRepository(s.DB, s.Log), s.Log)
//	}
type BaseSuite struct {
	suite.Suite
	DB  *bun.DB
	Ctx context.Context
	Log *slog.Logger
}

// SetupTest opens a new database so tests never observe each other's rows.
// If you override this, call s.BaseSuite.SetupTest() first.
func (s *BaseSuite) SetupTest() {
	s.Ctx = context.Background()
	s.Log = Logger()
	s.DB = NewTestDB(s.T())
}
