package order

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seaboundhq/seabound/internal/dto"
	"github.com/seaboundhq/seabound/internal/entity"
	"github.com/seaboundhq/seabound/internal/ledger"
	"github.com/seaboundhq/seabound/internal/presentation/http/response"
	repo "github.com/seaboundhq/seabound/internal/repository/order"
	service "github.com/seaboundhq/seabound/internal/service/order"
	"github.com/seaboundhq/seabound/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/seaboundhq/seabound/transport/http/order")

// orgHeader scopes every request to one organization. Membership checks are
// the auth layer's problem, not this engine's.
const orgHeader = "X-Org-ID"

// Handler exposes order lifecycle endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance. PO numbers contain slashes,
// so the :number segment arrives URL-encoded.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/next-number", h.nextNumber)
	g.GET("/:number", h.get)
	g.GET("/:number/attachment", h.attachment)
	g.PATCH("/:number", h.edit)
	g.POST("/:number/stage", h.advanceStage)
	g.POST("/:number/amend", h.amend)
	g.DELETE("/:number", h.softDelete)
	g.POST("/:number/restore", h.restore)
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

func orderNumber(c echo.Context) string {
	raw := c.Param("number")
	if number, err := url.PathUnescape(raw); err == nil {
		return number
	}
	return raw
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Number      string                `json:"number"`
		Buyer       string                `json:"buyer"`
		Supplier    string                `json:"supplier"`
		Product     string                `json:"product"`
		Specs       string                `json:"specs"`
		Origin      string                `json:"origin"`
		Destination string                `json:"destination"`
		Brand       string                `json:"brand"`
		Metadata    map[string]string     `json:"metadata"`
		Items       []dto.LineItemPayload `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.String("order.buyer", payload.Buyer)))
	defer span.End()

	order, err := h.svc.Create(ctx, org, service.CreateInput{
		Number:      payload.Number,
		Buyer:       payload.Buyer,
		Supplier:    payload.Supplier,
		Product:     payload.Product,
		Specs:       payload.Specs,
		Origin:      payload.Origin,
		Destination: payload.Destination,
		Brand:       payload.Brand,
		Metadata:    entity.Metadata(payload.Metadata),
		Items:       dto.ToLineItems(payload.Items),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	includeDeleted, _ := strconv.ParseBool(c.QueryParam("include_deleted"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, org, includeDeleted)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, dto.FromOrder(o))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)
	includeDeleted, _ := strconv.ParseBool(c.QueryParam("include_deleted"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.get", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Get(ctx, org, number, includeDeleted)
	if err != nil {
		return b.WithError(err).Build()
	}
	if strings.EqualFold(c.QueryParam("view"), "recent") {
		ledger.SortRecentFirst(order.History)
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) attachment(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)
	name := c.QueryParam("name")
	if name == "" {
		return b.WithError(errorbank.BadRequest("name is required")).Build()
	}
	stageN, err := strconv.Atoi(c.QueryParam("stage"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid stage", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.attachment", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.Int("order.stage", stageN),
	))
	defer span.End()

	attachment, err := h.svc.Attachment(ctx, org, number, stageN, name)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(attachment).Build()
}

func (h *Handler) edit(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)

	var payload struct {
		Buyer           *string            `json:"buyer"`
		Supplier        *string            `json:"supplier"`
		Product         *string            `json:"product"`
		Specs           *string            `json:"specs"`
		Origin          *string            `json:"origin"`
		Destination     *string            `json:"destination"`
		Brand           *string            `json:"brand"`
		PINumber        *string            `json:"pi_number"`
		AWBNumber       *string            `json:"awb_number"`
		TotalValue      *float64           `json:"total_value"`
		TotalKilos      *float64           `json:"total_kilos"`
		ArtworkApproved *bool              `json:"artwork_approved"`
		Metadata        *map[string]string `json:"metadata"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	patch := repo.Patch{
		Buyer:           payload.Buyer,
		Supplier:        payload.Supplier,
		Product:         payload.Product,
		Specs:           payload.Specs,
		Origin:          payload.Origin,
		Destination:     payload.Destination,
		Brand:           payload.Brand,
		PINumber:        payload.PINumber,
		AWBNumber:       payload.AWBNumber,
		TotalValue:      payload.TotalValue,
		TotalKilos:      payload.TotalKilos,
		ArtworkApproved: payload.ArtworkApproved,
	}
	if payload.Metadata != nil {
		meta := entity.Metadata(*payload.Metadata)
		patch.Metadata = &meta
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.edit", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Edit(ctx, org, number, patch)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) advanceStage(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)

	var payload struct {
		Stage         int  `json:"stage"`
		PreviousStage *int `json:"previous_stage"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.advanceStage", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.Int("order.stage", payload.Stage),
	))
	defer span.End()

	order, err := h.svc.AdvanceStage(ctx, org, number, payload.Stage, payload.PreviousStage)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) amend(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)

	var payload struct {
		Items          []dto.LineItemPayload `json:"items"`
		Metadata       map[string]string     `json:"metadata"`
		IdempotencyKey string                `json:"idempotency_key"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.amend", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Amend(ctx, org, number, dto.ToLineItems(payload.Items), payload.Metadata, payload.IdempotencyKey)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) softDelete(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.softDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if err := h.svc.SoftDelete(ctx, org, number); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) restore(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	number := orderNumber(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.restore", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Restore(ctx, org, number)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) nextNumber(c echo.Context) error {
	b := response.New(c)

	org, err := orgID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	buyer := c.QueryParam("buyer")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.nextNumber", trace.WithAttributes(attribute.String("order.buyer", buyer)))
	defer span.End()

	number, err := h.svc.NextNumber(ctx, org, buyer)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"number": number}).Build()
}
