package graph

import (
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/domain/taxonomy"
)

// Module provides graph domain dependencies.
var Module = fx.Module("graph",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(provideTypeRegistrar),
	fx.Invoke(RegisterRoutes),
)

func provideTypeRegistrar(svc *taxonomy.Service) TypeRegistrar {
	return svc
}
