package entity

import (
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
)

// OrderBatch represents one ingested document's order.
type OrderBatch struct {
	ID           int64                 `json:"id"`
	StationID    *int64                `json:"station_id,omitempty"`
	StationName  string                `json:"station_name,omitempty"`
	OperatorID   *int64                `json:"operator_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	WeekLabel    string                `json:"week_label"`
	Status       constants.BatchStatus `json:"status"`
	RejectReason *string               `json:"reject_reason,omitempty"`
	Plate        string                `json:"plate,omitempty"`
	VIN          string                `json:"vin,omitempty"`
	Mileage      string                `json:"mileage,omitempty"`
	City         string                `json:"city,omitempty"`
	DocDate      string                `json:"doc_date,omitempty"`
	SourceName   string                `json:"source_name,omitempty"`
	ReviewReason *string               `json:"review_reason,omitempty"`
	Items        []OrderItem           `json:"items,omitempty"`
}

// OrderItem belongs to exactly one batch and is immutable after creation.
type OrderItem struct {
	ID              int64   `json:"id"`
	BatchID         int64   `json:"batch_id"`
	WorkName        string  `json:"work_name"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	Total           float64 `json:"total"`
	VIN             *string `json:"vin,omitempty"`
	Mileage         *string `json:"mileage,omitempty"`
	ValidationError *string `json:"validation_error,omitempty"`
}

// Sum returns the sum of item totals.
func (b OrderBatch) Sum() float64 {
	var s float64
	for _, it := range b.Items {
		s += it.Total
	}
	return s
}
