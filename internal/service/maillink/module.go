package maillink

import "go.uber.org/fx"

// Module provides the email association service to Fx.
var Module = fx.Provide(NewService)
