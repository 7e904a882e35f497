package entity

// TicketTypeSales aggregates sold counts for one ticket type. Cancelled
// tickets do not count against capacity and are reported separately.
type TicketTypeSales struct {
	SoldTickets      int   `json:"sold_tickets"`
	CancelledTickets int   `json:"cancelled_tickets"`
	Revenue          int64 `json:"revenue"`
}
