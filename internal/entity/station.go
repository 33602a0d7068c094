package entity

import "time"

// Station represents a service station that submits repair orders.
type Station struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
