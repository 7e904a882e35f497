package repository

import (
	"context"
	"time"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)

	// CreateSection persists a section together with its rows and seats
	// as one unit.
	CreateSection(ctx context.Context, section *entity.Section) error
}

type TicketTypeRepository interface {
	Create(ctx context.Context, ticketType *entity.TicketType) error
	GetByID(ctx context.Context, id string) (*entity.TicketType, error)

	// CountActiveTickets counts non-cancelled tickets of a type; this is
	// the read-only capacity pre-check, the authoritative count happens
	// inside the purchase transaction.
	CountActiveTickets(ctx context.Context, ticketTypeID string) (int, error)
	GetSales(ctx context.Context, ticketTypeID string) (*entity.TicketTypeSales, error)
}

type SeatRepository interface {
	// GetSeatPricing loads requested seats with their section and its
	// price multiplier. Missing ids are simply absent from the result.
	GetSeatPricing(ctx context.Context, seatIDs []string) ([]*entity.SeatPricing, error)

	// ReleaseOrphanedSeats frees seats still marked occupied whose ticket
	// has been cancelled. Used by the cleanup worker when seat release is
	// enabled.
	ReleaseOrphanedSeats(ctx context.Context) (int64, error)
}

type PurchaseRepository interface {
	// CreatePurchase commits a validated purchase atomically: the
	// purchase row, its tickets, and the seat claims. Each seat claim is
	// a conditional update on the current seat status; a lost race rolls
	// the whole transaction back with entity.ErrSeatUnavailable. The
	// capacity check for quantity-limited ticket types is repeated under
	// a row lock on the ticket type.
	CreatePurchase(ctx context.Context, purchase *entity.TicketPurchase) error

	GetByID(ctx context.Context, id string) (*entity.TicketPurchase, error)
	GetTicketByID(ctx context.Context, id string) (*entity.Ticket, error)

	CancelPurchase(ctx context.Context, id string, releaseSeats bool) error
	ExpirePurchase(ctx context.Context, id string, releaseSeats bool) error
	ExpireAllPending(ctx context.Context, before time.Time, releaseSeats bool) (int64, error)

	// ConfirmTicket flips one pending ticket to confirmed and completes
	// the purchase once every ticket in it is confirmed.
	ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error)
}
