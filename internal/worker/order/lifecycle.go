package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/seaboundhq/seabound/internal/config"
	"github.com/seaboundhq/seabound/internal/messaging"
	ordersvc "github.com/seaboundhq/seabound/internal/service/order"
	"github.com/seaboundhq/seabound/internal/worker"
)

var workerTracer = otel.Tracer("github.com/seaboundhq/seabound/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler sets up a worker handler that processes order
// lifecycle events from the orders topic. Today it records them; downstream
// consumers (notifications, re-sync) hang off the same topic.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		fields := []zap.Field{
			zap.String("type", event.Type),
			zap.Int64("org", event.OrgID),
			zap.String("number", event.Number),
		}
		switch event.Type {
		case ordersvc.EventStageChanged:
			fields = append(fields, zap.Int("stage", event.Stage), zap.Int("previous", event.PreviousStage))
		case ordersvc.EventCreated, ordersvc.EventAmended:
			fields = append(fields, zap.Int("stage", event.Stage))
		}
		logger.Info("order lifecycle event processed", fields...)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
