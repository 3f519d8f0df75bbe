package app

import (
	"go.uber.org/fx"

	"github.com/seaboundhq/seabound/internal/cache"
	"github.com/seaboundhq/seabound/internal/config"
	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/logger"
	"github.com/seaboundhq/seabound/internal/messaging"
	"github.com/seaboundhq/seabound/internal/observability"
	repositorymailbox "github.com/seaboundhq/seabound/internal/repository/mailbox"
	repositoryorder "github.com/seaboundhq/seabound/internal/repository/order"
	grpcserver "github.com/seaboundhq/seabound/internal/server/grpc"
	httpserver "github.com/seaboundhq/seabound/internal/server/http"
	servicemaillink "github.com/seaboundhq/seabound/internal/service/maillink"
	serviceorder "github.com/seaboundhq/seabound/internal/service/order"
	transporthttp "github.com/seaboundhq/seabound/internal/transport/http"
	"github.com/seaboundhq/seabound/internal/worker"
	workerorder "github.com/seaboundhq/seabound/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositorymailbox.Module,
	serviceorder.Module,
	servicemaillink.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
