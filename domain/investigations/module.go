package investigations

import (
	"go.uber.org/fx"
)

// Module provides the investigations domain
var Module = fx.Module("investigations",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
