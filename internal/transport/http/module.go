package http

import (
	"go.uber.org/fx"

	mailboxtransport "github.com/seaboundhq/seabound/internal/transport/http/mailbox"
	ordertransport "github.com/seaboundhq/seabound/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	mailboxtransport.Module,
)
