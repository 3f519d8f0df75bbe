package dto

import (
	"time"

	"github.com/seaboundhq/seabound/internal/entity"
	"github.com/seaboundhq/seabound/internal/ledger"
)

// LineItemPayload is a line item as accepted and exposed over transport.
type LineItemPayload struct {
	Product       string  `json:"product"`
	Brand         string  `json:"brand,omitempty"`
	Freezing      string  `json:"freezing,omitempty"`
	Size          string  `json:"size,omitempty"`
	Glaze         string  `json:"glaze,omitempty"`
	DeclaredGlaze string  `json:"declared_glaze,omitempty"`
	Packing       string  `json:"packing,omitempty"`
	Cases         int     `json:"cases"`
	WeightKg      float64 `json:"weight_kg"`
	PricePerKg    float64 `json:"price_per_kg"`
	Currency      string  `json:"currency,omitempty"`
	Total         float64 `json:"total"`
}

// HistoryEntryResponse is one ledger entry as exposed over transport.
type HistoryEntryResponse struct {
	ID            int64               `json:"id"`
	Stage         int                 `json:"stage"`
	OccurredAt    time.Time           `json:"occurred_at"`
	Sender        string              `json:"sender"`
	Recipient     string              `json:"recipient,omitempty"`
	Subject       string              `json:"subject"`
	Body          string              `json:"body,omitempty"`
	HasAttachment bool                `json:"has_attachment"`
	Attachments   []entity.Attachment `json:"attachments,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
// StagesWithContent lists the stages that already carry documentation, so
// callers can render progress without walking the ledger themselves.
type OrderResponse struct {
	ID                int64                  `json:"id"`
	Number            string                 `json:"number"`
	Buyer             string                 `json:"buyer"`
	Supplier          string                 `json:"supplier"`
	Product           string                 `json:"product,omitempty"`
	Specs             string                 `json:"specs,omitempty"`
	Origin            string                 `json:"origin,omitempty"`
	Destination       string                 `json:"destination,omitempty"`
	Stage             int                    `json:"stage"`
	Brand             string                 `json:"brand,omitempty"`
	PINumber          string                 `json:"pi_number,omitempty"`
	AWBNumber         string                 `json:"awb_number,omitempty"`
	TotalValue        float64                `json:"total_value"`
	TotalKilos        float64                `json:"total_kilos"`
	ArtworkApproved   bool                   `json:"artwork_approved"`
	Metadata          map[string]string      `json:"metadata,omitempty"`
	Items             []LineItemPayload      `json:"items"`
	History           []HistoryEntryResponse `json:"history,omitempty"`
	StagesWithContent []int                  `json:"stages_with_content,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	DeletedAt         *time.Time             `json:"deleted_at,omitempty"`
}

// FromOrder maps an order aggregate onto its transport form.
func FromOrder(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:              order.ID,
		Number:          order.Number,
		Buyer:           order.Buyer,
		Supplier:        order.Supplier,
		Product:         order.Product,
		Specs:           order.Specs,
		Origin:          order.Origin,
		Destination:     order.Destination,
		Stage:           order.Stage,
		Brand:           order.Brand,
		PINumber:        order.PINumber,
		AWBNumber:       order.AWBNumber,
		TotalValue:      order.TotalValue,
		TotalKilos:      order.TotalKilos,
		ArtworkApproved: order.ArtworkApproved,
		Metadata:        order.Metadata,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		DeletedAt:       order.DeletedAt,
		Items:           make([]LineItemPayload, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, LineItemPayload{
			Product:       item.Product,
			Brand:         item.Brand,
			Freezing:      item.Freezing,
			Size:          item.Size,
			Glaze:         item.Glaze,
			DeclaredGlaze: item.DeclaredGlaze,
			Packing:       item.Packing,
			Cases:         item.Cases,
			WeightKg:      item.WeightKg,
			PricePerKg:    item.PricePerKg,
			Currency:      item.Currency,
			Total:         item.Total,
		})
	}
	for _, e := range order.History {
		resp.History = append(resp.History, HistoryEntryResponse{
			ID:            e.ID,
			Stage:         e.Stage,
			OccurredAt:    e.OccurredAt,
			Sender:        e.Sender,
			Recipient:     e.Recipient,
			Subject:       e.Subject,
			Body:          e.Body,
			HasAttachment: e.HasAttachment,
			Attachments:   e.Attachments,
		})
	}
	for n := entity.StageMin; n <= entity.StageMax; n++ {
		if ledger.HasStageContent(order, n) {
			resp.StagesWithContent = append(resp.StagesWithContent, n)
		}
	}
	return resp
}

// ToLineItems maps transport line items onto entities. Totals are derived by
// the engine, never trusted from the payload.
func ToLineItems(payloads []LineItemPayload) []*entity.LineItem {
	items := make([]*entity.LineItem, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, &entity.LineItem{
			Product:       p.Product,
			Brand:         p.Brand,
			Freezing:      p.Freezing,
			Size:          p.Size,
			Glaze:         p.Glaze,
			DeclaredGlaze: p.DeclaredGlaze,
			Packing:       p.Packing,
			Cases:         p.Cases,
			WeightKg:      p.WeightKg,
			PricePerKg:    p.PricePerKg,
			Currency:      p.Currency,
		})
	}
	return items
}
