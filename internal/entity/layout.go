package entity

import (
	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusReserved  SeatStatus = "reserved"
	SeatStatusOccupied  SeatStatus = "occupied"
	SeatStatusDisabled  SeatStatus = "disabled"
)

type Section struct {
	ID              string          `json:"id" db:"id"`
	EventID         string          `json:"event_id" db:"event_id"`
	Name            string          `json:"name" db:"name"`
	PriceMultiplier decimal.Decimal `json:"price_multiplier" db:"price_multiplier"`

	Rows []*Row `json:"rows,omitempty"`
}

type Row struct {
	ID        string `json:"id" db:"id"`
	SectionID string `json:"section_id" db:"section_id"`
	Name      string `json:"name" db:"name"`

	Seats []*Seat `json:"seats,omitempty"`
}

type Seat struct {
	ID       string     `json:"id" db:"id"`
	RowID    string     `json:"row_id" db:"row_id"`
	Name     string     `json:"name" db:"name"`
	Status   SeatStatus `json:"status" db:"status"`
	TicketID *string    `json:"ticket_id,omitempty" db:"ticket_id"`
}

// SeatPricing is the read model the purchase flow uses to validate a
// requested seat and derive its price: current status plus the section
// the seat belongs to and that section's multiplier.
type SeatPricing struct {
	SeatID          string          `json:"seat_id"`
	SeatName        string          `json:"seat_name"`
	Status          SeatStatus      `json:"status"`
	RowID           string          `json:"row_id"`
	SectionID       string          `json:"section_id"`
	PriceMultiplier decimal.Decimal `json:"price_multiplier"`
}
