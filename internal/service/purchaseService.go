package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avdeev-m/ticketflow/config"
	repository "github.com/avdeev-m/ticketflow/internal/database/postgres"
	"github.com/avdeev-m/ticketflow/internal/entity"
	"github.com/avdeev-m/ticketflow/pkg/qrcode"
	"github.com/avdeev-m/ticketflow/pkg/telegram"
)

// PurchaseRequest - запрос на покупку билетов одного типа
type PurchaseRequest struct {
	TicketTypeID string   `json:"-"`
	Name         string   `json:"name" binding:"required"`
	Email        string   `json:"email" binding:"required,email"`
	Quantity     int      `json:"quantity"`
	SeatIDs      []string `json:"seat_ids"`
}

type purchaseService struct {
	ticketTypeRepo repository.TicketTypeRepository
	seatRepo       repository.SeatRepository
	purchaseRepo   repository.PurchaseRepository
	tasks          TaskPublisher
	telegramBot    *telegram.Bot
	telegramChatID string
	cfg            config.ReservationConfig
}

func NewPurchaseService(
	ticketTypeRepo repository.TicketTypeRepository,
	seatRepo repository.SeatRepository,
	purchaseRepo repository.PurchaseRepository,
	tasks TaskPublisher,
	telegramBot *telegram.Bot,
	telegramChatID string,
	cfg config.ReservationConfig,
) PurchaseService {
	return &purchaseService{
		ticketTypeRepo: ticketTypeRepo,
		seatRepo:       seatRepo,
		purchaseRepo:   purchaseRepo,
		tasks:          tasks,
		telegramBot:    telegramBot,
		telegramChatID: telegramChatID,
		cfg:            cfg,
	}
}

// Purchase validates availability, prices the order and commits it as a
// single pending purchase. The availability read here is advisory only;
// the datastore re-checks capacity and seat state inside the committing
// transaction, so two buyers racing for the last seat cannot both win.
func (s *purchaseService) Purchase(ctx context.Context, req *PurchaseRequest) (*entity.TicketPurchase, error) {
	ticketType, err := s.ticketTypeRepo.GetByID(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}

	var tickets []*entity.Ticket
	if len(req.SeatIDs) > 0 {
		tickets, err = s.buildSeatTickets(ctx, ticketType, req.SeatIDs)
	} else {
		tickets, err = s.buildQuantityTickets(ctx, ticketType, req.Quantity)
	}
	if err != nil {
		return nil, err
	}

	prices := make([]int64, len(tickets))
	for i, t := range tickets {
		prices[i] = t.Price
	}

	now := time.Now()
	purchase := &entity.TicketPurchase{
		ID:            uuid.New().String(),
		CustomerName:  req.Name,
		CustomerEmail: req.Email,
		TotalAmount:   OrderTotal(prices),
		Status:        entity.PurchaseStatusPending,
		ExpiresAt:     now.Add(time.Duration(s.cfg.PendingTimeout) * time.Minute),
		CreatedAt:     now,
		Tickets:       tickets,
	}
	for _, t := range tickets {
		t.PurchaseID = purchase.ID
	}

	if err := s.purchaseRepo.CreatePurchase(ctx, purchase); err != nil {
		return nil, err
	}

	s.scheduleFollowupTasks(ctx, purchase)

	return purchase, nil
}

// buildSeatTickets resolves one ticket per requested seat, pricing each
// seat by its section multiplier
func (s *purchaseService) buildSeatTickets(ctx context.Context, ticketType *entity.TicketType, seatIDs []string) ([]*entity.Ticket, error) {
	if s.cfg.MaxSeats > 0 && len(seatIDs) > s.cfg.MaxSeats {
		return nil, fmt.Errorf("at most %d seats per purchase: %w", s.cfg.MaxSeats, entity.ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("seat %s: %w", id, entity.ErrDuplicateSeat)
		}
		seen[id] = struct{}{}
	}

	// тип билета без привязки к секциям продаётся только по количеству
	if len(ticketType.AllowedSectionIDs) == 0 {
		return nil, fmt.Errorf("ticket type %s does not sell reserved seating: %w", ticketType.ID, entity.ErrInvalidRequest)
	}
	allowed := make(map[string]struct{}, len(ticketType.AllowedSectionIDs))
	for _, id := range ticketType.AllowedSectionIDs {
		allowed[id] = struct{}{}
	}

	pricing, err := s.seatRepo.GetSeatPricing(ctx, seatIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.SeatPricing, len(pricing))
	for _, p := range pricing {
		byID[p.SeatID] = p
	}

	tickets := make([]*entity.Ticket, 0, len(seatIDs))
	for _, id := range seatIDs {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("seat %s: %w", id, entity.ErrSeatNotFound)
		}
		if p.Status != entity.SeatStatusAvailable {
			return nil, fmt.Errorf("seat %s is %s: %w", id, p.Status, entity.ErrSeatUnavailable)
		}
		if _, ok := allowed[p.SectionID]; !ok {
			return nil, fmt.Errorf("seat %s belongs to section %s: %w", id, p.SectionID, entity.ErrSectionNotAllowed)
		}

		seatID := id
		tickets = append(tickets, &entity.Ticket{
			ID:           uuid.New().String(),
			TicketTypeID: ticketType.ID,
			SeatID:       &seatID,
			Price:        UnitPrice(ticketType.Price, p.PriceMultiplier),
			Status:       entity.TicketStatusPending,
		})
	}

	return tickets, nil
}

// buildQuantityTickets resolves general admission tickets at the base
// price. The capacity check here only rejects obviously doomed requests;
// the authoritative check runs under the ticket type row lock.
func (s *purchaseService) buildQuantityTickets(ctx context.Context, ticketType *entity.TicketType, quantity int) ([]*entity.Ticket, error) {
	// тип с привязкой к секциям продаётся только по конкретным местам
	if len(ticketType.AllowedSectionIDs) > 0 {
		return nil, fmt.Errorf("ticket type %s sells reserved seating only: %w", ticketType.ID, entity.ErrInvalidRequest)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", entity.ErrInvalidRequest)
	}
	if s.cfg.MaxQuantity > 0 && quantity > s.cfg.MaxQuantity {
		return nil, fmt.Errorf("at most %d tickets per purchase: %w", s.cfg.MaxQuantity, entity.ErrInvalidRequest)
	}

	if ticketType.Quantity != nil {
		sold, err := s.ticketTypeRepo.CountActiveTickets(ctx, ticketType.ID)
		if err != nil {
			return nil, err
		}
		if sold+quantity > *ticketType.Quantity {
			return nil, fmt.Errorf("%d of %d tickets remaining: %w", *ticketType.Quantity-sold, *ticketType.Quantity, entity.ErrNotEnoughTickets)
		}
	}

	tickets := make([]*entity.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		tickets = append(tickets, &entity.Ticket{
			ID:           uuid.New().String(),
			TicketTypeID: ticketType.ID,
			Price:        ticketType.Price,
			Status:       entity.TicketStatusPending,
		})
	}

	return tickets, nil
}

func (s *purchaseService) GetPurchase(ctx context.Context, id string) (*entity.TicketPurchase, error) {
	return s.purchaseRepo.GetByID(ctx, id)
}

func (s *purchaseService) CancelPurchase(ctx context.Context, id string, reason string) error {
	if err := s.purchaseRepo.CancelPurchase(ctx, id, s.cfg.ReleaseSeats); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id": id,
		"reason":      reason,
	}).Info("Purchase cancelled")

	s.notify(fmt.Sprintf("Покупка %s отменена (%s)", id, reason))

	return nil
}

func (s *purchaseService) ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	return s.purchaseRepo.ConfirmTicket(ctx, ticketID)
}

// TicketQR renders the scannable payload for a ticket as a PNG
func (s *purchaseService) TicketQR(ctx context.Context, ticketID string) ([]byte, error) {
	ticket, err := s.purchaseRepo.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == entity.TicketStatusCancelled || ticket.Status == entity.TicketStatusRefunded {
		return nil, fmt.Errorf("ticket %s is %s: %w", ticketID, ticket.Status, entity.ErrTicketNotPending)
	}

	return qrcode.Render(qrcode.TicketPayload(ticket.ID), 0)
}

// ExpirePurchase cancels a single pending purchase whose payment window
// has closed. Driven by the delayed task queue.
func (s *purchaseService) ExpirePurchase(ctx context.Context, id string) error {
	return s.purchaseRepo.ExpirePurchase(ctx, id, s.cfg.ReleaseSeats)
}

// ExpirePendingPurchases cancels every pending purchase past its
// deadline. Driven by the scheduler as a safety net for lost tasks.
func (s *purchaseService) ExpirePendingPurchases(ctx context.Context) (int64, error) {
	return s.purchaseRepo.ExpireAllPending(ctx, time.Now(), s.cfg.ReleaseSeats)
}

// scheduleFollowupTasks enqueues the expiration task and the customer
// notification. Failures here are logged and ignored: the purchase is
// already committed and the scheduler sweep will pick up expirations.
func (s *purchaseService) scheduleFollowupTasks(ctx context.Context, purchase *entity.TicketPurchase) {
	if s.tasks != nil {
		expireTask := NewTask(TaskTypeExpirePurchase, map[string]interface{}{
			"purchase_id": purchase.ID,
		})
		expireTask.ExecuteAt = purchase.ExpiresAt
		if err := s.tasks.Publish(ctx, expireTask); err != nil {
			logrus.WithError(err).WithField("purchase_id", purchase.ID).Warn("Failed to schedule expiration task")
		}

		notifyTask := NewTask(TaskTypeSendNotification, map[string]interface{}{
			"text": fmt.Sprintf("Новая покупка %s: %d билетов на сумму %d", purchase.ID, len(purchase.Tickets), purchase.TotalAmount),
		})
		if err := s.tasks.Publish(ctx, notifyTask); err != nil {
			logrus.WithError(err).WithField("purchase_id", purchase.ID).Warn("Failed to schedule notification task")
		}
	}

	s.notify(fmt.Sprintf("Покупка %s ожидает оплаты до %s", purchase.ID, purchase.ExpiresAt.Format(time.RFC3339)))
}

func (s *purchaseService) notify(text string) {
	if s.telegramBot == nil || s.telegramChatID == "" {
		return
	}
	go func() {
		if err := s.telegramBot.SendMessage(s.telegramChatID, text); err != nil {
			logrus.WithError(err).Warn("Failed to send telegram notification")
		}
	}()
}
