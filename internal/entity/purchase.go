package entity

import (
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

// TicketPurchase groups the tickets of one customer transaction.
// TotalAmount always equals the sum of the ticket prices; both are written
// in the same datastore transaction.
type TicketPurchase struct {
	ID            string         `json:"id" db:"id"`
	CustomerName  string         `json:"customer_name" db:"customer_name"`
	CustomerEmail string         `json:"customer_email" db:"customer_email"`
	TotalAmount   int64          `json:"total_amount" db:"total_amount"`
	Status        PurchaseStatus `json:"status" db:"status"`
	ExpiresAt     time.Time      `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`

	Tickets []*Ticket `json:"tickets,omitempty"`
}
