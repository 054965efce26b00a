package graphquery

import (
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/domain/taxonomy"
)

// Module provides graph query dependencies.
var Module = fx.Module("graphquery",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(provideTypeCatalog),
	fx.Invoke(RegisterRoutes),
)

func provideTypeCatalog(svc *taxonomy.Service) TypeCatalog {
	return svc
}
