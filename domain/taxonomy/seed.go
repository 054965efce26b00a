package taxonomy

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/logger"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// SeedType is one catalog entry.
type SeedType struct {
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

// Catalog lists the system types per entity type.
type Catalog struct {
	Node         []SeedType `yaml:"node"`
	Relationship []SeedType `yaml:"relationship"`
}

// LoadCatalog parses the embedded system type catalog.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		return nil, fmt.Errorf("parse taxonomy defaults: %w", err)
	}
	return &c, nil
}

// SeedSystemTypes installs every catalog entry that is not present yet and
// returns how many were created. Existing rows, system or not, are kept as
// they are, so repeated runs are no-ops. A failing entry is logged and the
// rest still proceed.
func (s *Service) SeedSystemTypes(ctx context.Context, c *Catalog) (int, error) {
	created := 0
	var firstErr error

	seed := func(entityType EntityType, entries []SeedType) {
		for _, e := range entries {
			v := NormalizeValue(e.Value)
			existing, err := s.repo.GetByValue(ctx, v, entityType)
			if err == nil && existing != nil {
				continue
			}
			if err == nil {
				desc := e.Description
				now := time.Now().UTC()
				err = s.repo.Insert(ctx, &Type{
					ID:          uuid.NewString(),
					Value:       v,
					EntityType:  entityType,
					Description: &desc,
					IsSystem:    true,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			}
			if err != nil {
				s.log.Error("failed to seed system type",
					slog.String("value", v),
					slog.String("entity_type", string(entityType)),
					logger.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			created++
		}
	}

	seed(EntityNode, c.Node)
	seed(EntityRelationship, c.Relationship)

	if created > 0 {
		s.log.Info("system types seeded", slog.Int("created", created))
	}
	return created, firstErr
}

// RegisterSeeder seeds the system taxonomy when the application starts.
func RegisterSeeder(lc fx.Lifecycle, svc *Service, cfg *config.Config) {
	if !cfg.Graph.SeedSystemTypes {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			catalog, err := LoadCatalog()
			if err != nil {
				return err
			}
			if _, err := svc.SeedSystemTypes(ctx, catalog); err != nil {
				svc.log.Warn("system taxonomy partially seeded", logger.Error(err))
			}
			return nil
		},
	})
}
