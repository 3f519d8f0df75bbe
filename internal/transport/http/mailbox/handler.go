package mailbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seaboundhq/seabound/internal/dto"
	"github.com/seaboundhq/seabound/internal/presentation/http/response"
	service "github.com/seaboundhq/seabound/internal/service/maillink"
	"github.com/seaboundhq/seabound/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/seaboundhq/seabound/transport/http/mailbox")

const orgHeader = "X-Org-ID"

// Handler exposes message-to-order association endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a mailbox Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	m := e.Group("/mailbox/messages")
	m.GET("/unmatched", h.listUnmatched)
	m.POST("/:id/link", h.link)
	m.POST("/:id/unlink", h.unlink)

	hist := e.Group("/history")
	hist.POST("/:id/reassign", h.reassign)
	hist.POST("/:id/remove", h.remove)
}

func orgID(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get(orgHeader)
	if raw == "" {
		return 0, errorbank.BadRequest("missing " + orgHeader + " header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+orgHeader+" header", errorbank.WithCause(err))
	}
	return id, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func (h *Handler) listUnmatched(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "mailbox.listUnmatched")
	defer span.End()

	msgs, err := h.svc.ListUnmatched(ctx, org)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.InboundMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.FromInboundMessage(m))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) link(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		OrderNumber string `json:"order_number"`
		Note        string `json:"note"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderNumber == "" {
		return b.WithError(errorbank.BadRequest("order_number is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "mailbox.link", trace.WithAttributes(
		attribute.Int64("message.id", id),
		attribute.String("order.number", payload.OrderNumber),
	))
	defer span.End()

	order, err := h.svc.LinkMessage(ctx, org, id, payload.OrderNumber, payload.Note)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) unlink(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "mailbox.unlink", trace.WithAttributes(attribute.Int64("message.id", id)))
	defer span.End()

	if err := h.svc.UnlinkMessage(ctx, org, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) reassign(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		FromOrder string `json:"from_order"`
		ToOrder   string `json:"to_order"`
		Note      string `json:"note"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.FromOrder == "" || payload.ToOrder == "" {
		return b.WithError(errorbank.BadRequest("from_order and to_order are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "mailbox.reassign", trace.WithAttributes(attribute.Int64("entry.id", id)))
	defer span.End()

	if err := h.svc.ReassignEntry(ctx, org, id, payload.FromOrder, payload.ToOrder, payload.Note); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) remove(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		FromOrder string `json:"from_order"`
		Note      string `json:"note"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.FromOrder == "" {
		return b.WithError(errorbank.BadRequest("from_order is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "mailbox.remove", trace.WithAttributes(attribute.Int64("entry.id", id)))
	defer span.End()

	if err := h.svc.RemoveEntry(ctx, org, id, payload.FromOrder, payload.Note); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}
