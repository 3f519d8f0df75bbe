package mailbox

import "go.uber.org/fx"

// Module provides the mailbox repository to Fx.
var Module = fx.Provide(NewRepository)
