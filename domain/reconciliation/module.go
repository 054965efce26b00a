package reconciliation

import (
	"go.uber.org/fx"
)

// Module provides taxonomy reconciliation
var Module = fx.Module("reconciliation",
	fx.Provide(NewReconciler),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
