package service

import (
	"context"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

// PurchaseService определяет интерфейс для операций покупки билетов
type PurchaseService interface {
	// Основные операции
	Purchase(ctx context.Context, req *PurchaseRequest) (*entity.TicketPurchase, error)
	GetPurchase(ctx context.Context, id string) (*entity.TicketPurchase, error)
	CancelPurchase(ctx context.Context, id string, reason string) error

	// Подтверждение билетов
	ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error)
	TicketQR(ctx context.Context, ticketID string) ([]byte, error)

	// Операции истечения срока
	ExpirePurchase(ctx context.Context, id string) error
	ExpirePendingPurchases(ctx context.Context) (int64, error)
}

// EventService defines the interface for event and layout management
type EventService interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id string) (*entity.Event, error)
	CreateSection(ctx context.Context, eventID string, req *CreateSectionRequest) (*entity.Section, error)
	CreateTicketType(ctx context.Context, eventID string, req *CreateTicketTypeRequest) (*entity.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*TicketTypeDetails, error)
}
