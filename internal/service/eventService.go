package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repository "github.com/avdeev-m/ticketflow/internal/database/postgres"
	"github.com/avdeev-m/ticketflow/internal/entity"
)

// CreateEventRequest - запрос на создание мероприятия
type CreateEventRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	StartsAt    entity.CustomTime `json:"starts_at" binding:"required"`
}

// CreateSectionRequest describes a seating section with its rows
type CreateSectionRequest struct {
	Name            string          `json:"name" binding:"required"`
	PriceMultiplier decimal.Decimal `json:"price_multiplier" binding:"required"`
	Rows            []RowRequest    `json:"rows"`
}

type RowRequest struct {
	Name  string   `json:"name" binding:"required"`
	Seats []string `json:"seats" binding:"required"`
}

// CreateTicketTypeRequest describes a sellable ticket type. Quantity is
// nil for unlimited capacity; SectionIDs is empty for general admission.
type CreateTicketTypeRequest struct {
	Name       string   `json:"name" binding:"required"`
	Price      int64    `json:"price"`
	Quantity   *int     `json:"quantity"`
	SectionIDs []string `json:"section_ids"`
}

// TicketTypeDetails is the read model for a ticket type with its sales
// counters and remaining capacity (nil when unlimited).
type TicketTypeDetails struct {
	TicketType *entity.TicketType      `json:"ticket_type"`
	Sales      *entity.TicketTypeSales `json:"sales"`
	Remaining  *int                    `json:"remaining,omitempty"`
}

type eventService struct {
	eventRepo      repository.EventRepository
	ticketTypeRepo repository.TicketTypeRepository
}

func NewEventService(eventRepo repository.EventRepository, ticketTypeRepo repository.TicketTypeRepository) EventService {
	return &eventService{
		eventRepo:      eventRepo,
		ticketTypeRepo: ticketTypeRepo,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	now := time.Now()
	event := &entity.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt.Time,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*entity.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *eventService) CreateSection(ctx context.Context, eventID string, req *CreateSectionRequest) (*entity.Section, error) {
	if req.PriceMultiplier.Sign() <= 0 {
		return nil, fmt.Errorf("price multiplier must be positive: %w", entity.ErrInvalidRequest)
	}

	section := &entity.Section{
		ID:              uuid.New().String(),
		EventID:         eventID,
		Name:            req.Name,
		PriceMultiplier: req.PriceMultiplier,
		Rows:            make([]*entity.Row, 0, len(req.Rows)),
	}

	for _, rowReq := range req.Rows {
		if len(rowReq.Seats) == 0 {
			return nil, fmt.Errorf("row %s has no seats: %w", rowReq.Name, entity.ErrInvalidRequest)
		}

		row := &entity.Row{
			ID:        uuid.New().String(),
			SectionID: section.ID,
			Name:      rowReq.Name,
			Seats:     make([]*entity.Seat, 0, len(rowReq.Seats)),
		}
		for _, seatName := range rowReq.Seats {
			row.Seats = append(row.Seats, &entity.Seat{
				ID:     uuid.New().String(),
				RowID:  row.ID,
				Name:   seatName,
				Status: entity.SeatStatusAvailable,
			})
		}
		section.Rows = append(section.Rows, row)
	}

	if err := s.eventRepo.CreateSection(ctx, section); err != nil {
		return nil, err
	}

	return section, nil
}

func (s *eventService) CreateTicketType(ctx context.Context, eventID string, req *CreateTicketTypeRequest) (*entity.TicketType, error) {
	if req.Price < 0 {
		return nil, fmt.Errorf("price must not be negative: %w", entity.ErrInvalidRequest)
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", entity.ErrInvalidRequest)
	}

	// привязанные секции должны существовать и принадлежать мероприятию
	if len(req.SectionIDs) > 0 {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		known := make(map[string]struct{}, len(event.Sections))
		for _, sec := range event.Sections {
			known[sec.ID] = struct{}{}
		}
		for _, id := range req.SectionIDs {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("section %s: %w", id, entity.ErrSectionNotFound)
			}
		}
	}

	ticketType := &entity.TicketType{
		ID:                uuid.New().String(),
		EventID:           eventID,
		Name:              req.Name,
		Price:             req.Price,
		Quantity:          req.Quantity,
		AllowedSectionIDs: req.SectionIDs,
		CreatedAt:         time.Now(),
	}

	if err := s.ticketTypeRepo.Create(ctx, ticketType); err != nil {
		return nil, err
	}

	return ticketType, nil
}

func (s *eventService) GetTicketType(ctx context.Context, id string) (*TicketTypeDetails, error) {
	ticketType, err := s.ticketTypeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sales, err := s.ticketTypeRepo.GetSales(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &TicketTypeDetails{
		TicketType: ticketType,
		Sales:      sales,
	}

	if ticketType.Quantity != nil {
		active, err := s.ticketTypeRepo.CountActiveTickets(ctx, id)
		if err != nil {
			return nil, err
		}
		remaining := *ticketType.Quantity - active
		if remaining < 0 {
			remaining = 0
		}
		details.Remaining = &remaining
	}

	return details, nil
}
