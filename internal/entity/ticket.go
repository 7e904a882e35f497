package entity

import (
	"time"
)

type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusConfirmed TicketStatus = "confirmed"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

// TicketType is a purchasable category of admission for an event. Price is
// in integer minor currency units. A nil Quantity means unlimited
// general-admission capacity. A non-empty AllowedSectionIDs set means the
// type sells specific seats from those sections only.
type TicketType struct {
	ID                string    `json:"id" db:"id"`
	EventID           string    `json:"event_id" db:"event_id"`
	Name              string    `json:"name" db:"name"`
	Price             int64     `json:"price" db:"price"`
	Quantity          *int      `json:"quantity,omitempty" db:"quantity"`
	AllowedSectionIDs []string  `json:"allowed_section_ids"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Ticket is one sellable unit. Price is the resolved amount at time of
// sale and is kept independent of the ticket type's current price.
type Ticket struct {
	ID           string       `json:"id" db:"id"`
	PurchaseID   string       `json:"purchase_id" db:"purchase_id"`
	TicketTypeID string       `json:"ticket_type_id" db:"ticket_type_id"`
	SeatID       *string      `json:"seat_id,omitempty" db:"seat_id"`
	Price        int64        `json:"price" db:"price"`
	Status       TicketStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
