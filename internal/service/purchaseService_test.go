package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev-m/ticketflow/config"
	"github.com/avdeev-m/ticketflow/internal/entity"
)

// memStore is a shared in-memory datastore backing the fake repositories.
// CreatePurchase reproduces the transactional semantics of the real
// implementation: per-seat compare-and-set under one lock, with full
// rollback when any claim fails.
type memStore struct {
	mu sync.Mutex

	ticketTypes map[string]*entity.TicketType
	seats       map[string]*entity.SeatPricing
	purchases   map[string]*entity.TicketPurchase
	tickets     map[string]*entity.Ticket

	failCreate error
}

func newMemStore() *memStore {
	return &memStore{
		ticketTypes: make(map[string]*entity.TicketType),
		seats:       make(map[string]*entity.SeatPricing),
		purchases:   make(map[string]*entity.TicketPurchase),
		tickets:     make(map[string]*entity.Ticket),
	}
}

type fakeTicketTypeRepo struct{ store *memStore }

func (r *fakeTicketTypeRepo) Create(ctx context.Context, ticketType *entity.TicketType) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ticketTypes[ticketType.ID] = ticketType
	return nil
}

func (r *fakeTicketTypeRepo) GetByID(ctx context.Context, id string) (*entity.TicketType, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tt, ok := r.store.ticketTypes[id]
	if !ok {
		return nil, fmt.Errorf("ticket type %s: %w", id, entity.ErrTicketTypeNotFound)
	}
	return tt, nil
}

func (r *fakeTicketTypeRepo) CountActiveTickets(ctx context.Context, ticketTypeID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.countActiveLocked(ticketTypeID), nil
}

func (r *fakeTicketTypeRepo) GetSales(ctx context.Context, ticketTypeID string) (*entity.TicketTypeSales, error) {
	return &entity.TicketTypeSales{}, nil
}

func (s *memStore) countActiveLocked(ticketTypeID string) int {
	count := 0
	for _, t := range s.tickets {
		if t.TicketTypeID == ticketTypeID && t.Status != entity.TicketStatusCancelled {
			count++
		}
	}
	return count
}

type fakeSeatRepo struct{ store *memStore }

func (r *fakeSeatRepo) GetSeatPricing(ctx context.Context, seatIDs []string) ([]*entity.SeatPricing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]*entity.SeatPricing, 0, len(seatIDs))
	for _, id := range seatIDs {
		if seat, ok := r.store.seats[id]; ok {
			copied := *seat
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeSeatRepo) ReleaseOrphanedSeats(ctx context.Context) (int64, error) {
	return 0, nil
}

type fakePurchaseRepo struct{ store *memStore }

func (r *fakePurchaseRepo) CreatePurchase(ctx context.Context, purchase *entity.TicketPurchase) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.failCreate != nil {
		return r.store.failCreate
	}

	// re-check capacity under the lock, as the real transaction does
	if len(purchase.Tickets) > 0 {
		first := purchase.Tickets[0]
		tt := r.store.ticketTypes[first.TicketTypeID]
		if tt != nil && tt.Quantity != nil && first.SeatID == nil {
			if r.store.countActiveLocked(tt.ID)+len(purchase.Tickets) > *tt.Quantity {
				return fmt.Errorf("ticket type %s: %w", tt.ID, entity.ErrNotEnoughTickets)
			}
		}
	}

	claimed := make([]string, 0, len(purchase.Tickets))
	rollback := func() {
		for _, id := range claimed {
			r.store.seats[id].Status = entity.SeatStatusAvailable
		}
	}

	for _, ticket := range purchase.Tickets {
		if ticket.SeatID == nil {
			continue
		}
		seat, ok := r.store.seats[*ticket.SeatID]
		if !ok || seat.Status != entity.SeatStatusAvailable {
			rollback()
			return fmt.Errorf("seat %s: %w", *ticket.SeatID, entity.ErrSeatUnavailable)
		}
		seat.Status = entity.SeatStatusOccupied
		claimed = append(claimed, *ticket.SeatID)
	}

	r.store.purchases[purchase.ID] = purchase
	for _, ticket := range purchase.Tickets {
		r.store.tickets[ticket.ID] = ticket
	}
	return nil
}

func (r *fakePurchaseRepo) GetByID(ctx context.Context, id string) (*entity.TicketPurchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.purchases[id]
	if !ok {
		return nil, fmt.Errorf("purchase %s: %w", id, entity.ErrPurchaseNotFound)
	}
	return p, nil
}

func (r *fakePurchaseRepo) GetTicketByID(ctx context.Context, id string) (*entity.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, entity.ErrTicketNotFound)
	}
	return t, nil
}

func (r *fakePurchaseRepo) CancelPurchase(ctx context.Context, id string, releaseSeats bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.purchases[id]
	if !ok {
		return fmt.Errorf("purchase %s: %w", id, entity.ErrPurchaseNotFound)
	}
	if p.Status != entity.PurchaseStatusPending {
		return fmt.Errorf("purchase %s: %w", id, entity.ErrPurchaseNotPending)
	}
	p.Status = entity.PurchaseStatusCancelled
	for _, t := range p.Tickets {
		if t.Status != entity.TicketStatusPending {
			continue
		}
		t.Status = entity.TicketStatusCancelled
		if releaseSeats && t.SeatID != nil {
			r.store.seats[*t.SeatID].Status = entity.SeatStatusAvailable
		}
	}
	return nil
}

func (r *fakePurchaseRepo) ExpirePurchase(ctx context.Context, id string, releaseSeats bool) error {
	return r.CancelPurchase(ctx, id, releaseSeats)
}

func (r *fakePurchaseRepo) ExpireAllPending(ctx context.Context, before time.Time, releaseSeats bool) (int64, error) {
	r.store.mu.Lock()
	ids := make([]string, 0)
	for id, p := range r.store.purchases {
		if p.Status == entity.PurchaseStatusPending && p.ExpiresAt.Before(before) {
			ids = append(ids, id)
		}
	}
	r.store.mu.Unlock()

	for _, id := range ids {
		if err := r.CancelPurchase(ctx, id, releaseSeats); err != nil {
			return int64(len(ids)), err
		}
	}
	return int64(len(ids)), nil
}

func (r *fakePurchaseRepo) ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrTicketNotFound)
	}
	if t.Status != entity.TicketStatusPending {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrTicketNotPending)
	}
	t.Status = entity.TicketStatusConfirmed
	return t, nil
}

func testReservationConfig() config.ReservationConfig {
	return config.ReservationConfig{
		PendingTimeout: 30,
		ReleaseSeats:   true,
		MaxSeats:       10,
		MaxQuantity:    50,
	}
}

func newTestService(store *memStore) PurchaseService {
	return NewPurchaseService(
		&fakeTicketTypeRepo{store: store},
		&fakeSeatRepo{store: store},
		&fakePurchaseRepo{store: store},
		nil, nil, "",
		testReservationConfig(),
	)
}

func seedSeatedTicketType(store *memStore) *entity.TicketType {
	tt := &entity.TicketType{
		ID:                "tt-1",
		EventID:           "ev-1",
		Name:              "Parterre",
		Price:             1000,
		AllowedSectionIDs: []string{"sec-a", "sec-b"},
	}
	store.ticketTypes[tt.ID] = tt

	store.seats["seat-1"] = &entity.SeatPricing{
		SeatID: "seat-1", SeatName: "1", Status: entity.SeatStatusAvailable,
		RowID: "row-1", SectionID: "sec-a", PriceMultiplier: decimal.RequireFromString("1.5"),
	}
	store.seats["seat-2"] = &entity.SeatPricing{
		SeatID: "seat-2", SeatName: "2", Status: entity.SeatStatusAvailable,
		RowID: "row-1", SectionID: "sec-b", PriceMultiplier: decimal.RequireFromString("0.75"),
	}
	store.seats["seat-occupied"] = &entity.SeatPricing{
		SeatID: "seat-occupied", SeatName: "3", Status: entity.SeatStatusOccupied,
		RowID: "row-1", SectionID: "sec-a", PriceMultiplier: decimal.RequireFromString("1.5"),
	}
	store.seats["seat-vip"] = &entity.SeatPricing{
		SeatID: "seat-vip", SeatName: "1", Status: entity.SeatStatusAvailable,
		RowID: "row-2", SectionID: "sec-vip", PriceMultiplier: decimal.RequireFromString("3"),
	}

	return tt
}

// TestPurchaseSeats тестирует успешную покупку с выбором мест и расчётом
// цены по множителям секций
func TestPurchaseSeats(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)

	before := time.Now()
	purchase, err := svc.Purchase(context.Background(), &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Anna",
		Email:        "anna@example.com",
		SeatIDs:      []string{"seat-1", "seat-2"},
	})
	require.NoError(t, err)
	require.NotNil(t, purchase)

	assert.Equal(t, entity.PurchaseStatusPending, purchase.Status)
	require.Len(t, purchase.Tickets, 2)
	assert.Equal(t, int64(1500), purchase.Tickets[0].Price)
	assert.Equal(t, int64(750), purchase.Tickets[1].Price)
	assert.Equal(t, int64(2250), purchase.TotalAmount)

	// окно оплаты 30 минут
	assert.WithinDuration(t, before.Add(30*time.Minute), purchase.ExpiresAt, 5*time.Second)

	// места заняты
	assert.Equal(t, entity.SeatStatusOccupied, store.seats["seat-1"].Status)
	assert.Equal(t, entity.SeatStatusOccupied, store.seats["seat-2"].Status)
}

// TestPurchaseQuantity тестирует покупку по количеству без выбора мест
func TestPurchaseQuantity(t *testing.T) {
	store := newMemStore()
	quantity := 5
	store.ticketTypes["tt-ga"] = &entity.TicketType{
		ID: "tt-ga", EventID: "ev-1", Name: "Dance floor", Price: 800, Quantity: &quantity,
	}
	svc := newTestService(store)

	purchase, err := svc.Purchase(context.Background(), &PurchaseRequest{
		TicketTypeID: "tt-ga",
		Name:         "Boris",
		Email:        "boris@example.com",
		Quantity:     3,
	})
	require.NoError(t, err)
	require.Len(t, purchase.Tickets, 3)
	assert.Equal(t, int64(2400), purchase.TotalAmount)
	for _, ticket := range purchase.Tickets {
		assert.Nil(t, ticket.SeatID)
		assert.Equal(t, int64(800), ticket.Price)
	}

	// ещё 3 билета уже не влезают в оставшиеся 2
	_, err = svc.Purchase(context.Background(), &PurchaseRequest{
		TicketTypeID: "tt-ga",
		Name:         "Boris",
		Email:        "boris@example.com",
		Quantity:     3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrNotEnoughTickets)
	assert.Equal(t, entity.CodeConflict, entity.Code(err))
}

// TestPurchaseValidation тестирует классификацию ошибок запроса покупки
func TestPurchaseValidation(t *testing.T) {
	tests := []struct {
		name         string
		req          *PurchaseRequest
		expectedErr  error
		expectedCode string
	}{
		{
			name:         "unknown ticket type",
			req:          &PurchaseRequest{TicketTypeID: "missing", Quantity: 1},
			expectedErr:  entity.ErrTicketTypeNotFound,
			expectedCode: entity.CodeNotFound,
		},
		{
			name:         "zero quantity",
			req:          &PurchaseRequest{TicketTypeID: "tt-ga", Quantity: 0},
			expectedErr:  entity.ErrInvalidRequest,
			expectedCode: entity.CodeInvalidRequest,
		},
		{
			name:         "quantity above per-purchase limit",
			req:          &PurchaseRequest{TicketTypeID: "tt-ga", Quantity: 51},
			expectedErr:  entity.ErrInvalidRequest,
			expectedCode: entity.CodeInvalidRequest,
		},
		{
			name:         "quantity against seat-restricted type",
			req:          &PurchaseRequest{TicketTypeID: "tt-1", Quantity: 2},
			expectedErr:  entity.ErrInvalidRequest,
			expectedCode: entity.CodeInvalidRequest,
		},
		{
			name:         "duplicate seat",
			req:          &PurchaseRequest{TicketTypeID: "tt-1", SeatIDs: []string{"seat-1", "seat-1"}},
			expectedErr:  entity.ErrDuplicateSeat,
			expectedCode: entity.CodeInvalidRequest,
		},
		{
			name:         "unknown seat",
			req:          &PurchaseRequest{TicketTypeID: "tt-1", SeatIDs: []string{"seat-404"}},
			expectedErr:  entity.ErrSeatNotFound,
			expectedCode: entity.CodeNotFound,
		},
		{
			name:         "occupied seat",
			req:          &PurchaseRequest{TicketTypeID: "tt-1", SeatIDs: []string{"seat-occupied"}},
			expectedErr:  entity.ErrSeatUnavailable,
			expectedCode: entity.CodeConflict,
		},
		{
			name:         "seat outside allowed sections",
			req:          &PurchaseRequest{TicketTypeID: "tt-1", SeatIDs: []string{"seat-vip"}},
			expectedErr:  entity.ErrSectionNotAllowed,
			expectedCode: entity.CodeInvalidRequest,
		},
		{
			name:         "seats against general admission type",
			req:          &PurchaseRequest{TicketTypeID: "tt-ga", SeatIDs: []string{"seat-1"}},
			expectedErr:  entity.ErrInvalidRequest,
			expectedCode: entity.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			seedSeatedTicketType(store)
			store.ticketTypes["tt-ga"] = &entity.TicketType{
				ID: "tt-ga", EventID: "ev-1", Name: "Dance floor", Price: 800,
			}
			svc := newTestService(store)

			tt.req.Name = "Test"
			tt.req.Email = "test@example.com"

			_, err := svc.Purchase(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expectedCode, entity.Code(err))
		})
	}
}

// TestPurchaseSeatRace проверяет, что при одновременных покупках одного
// места побеждает ровно один покупатель
func TestPurchaseSeatRace(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)

	const buyers = 16
	var wg sync.WaitGroup
	results := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), &PurchaseRequest{
				TicketTypeID: "tt-1",
				Name:         "Racer",
				Email:        "racer@example.com",
				SeatIDs:      []string{"seat-1"},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrSeatUnavailable)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, entity.SeatStatusOccupied, store.seats["seat-1"].Status)
}

// TestPurchaseQuantityRace проверяет, что при одновременных покупках
// ограниченного типа суммарно продаётся не больше вместимости
func TestPurchaseQuantityRace(t *testing.T) {
	store := newMemStore()
	capacity := 5
	store.ticketTypes["tt-ga"] = &entity.TicketType{
		ID: "tt-ga", EventID: "ev-1", Name: "Dance floor", Price: 800, Quantity: &capacity,
	}
	svc := newTestService(store)

	const buyers = 16
	var wg sync.WaitGroup
	results := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), &PurchaseRequest{
				TicketTypeID: "tt-ga",
				Name:         "Racer",
				Email:        "racer@example.com",
				Quantity:     1,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrNotEnoughTickets)
	}
	assert.Equal(t, capacity, winners)

	store.mu.Lock()
	active := store.countActiveLocked("tt-ga")
	store.mu.Unlock()
	assert.Equal(t, capacity, active)
}

// TestPurchaseAtomicity проверяет, что частично неудавшаяся покупка не
// оставляет никаких следов
func TestPurchaseAtomicity(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)

	// второе место занято, вся покупка должна откатиться
	store.seats["seat-2"].Status = entity.SeatStatusOccupied

	_, err := svc.Purchase(context.Background(), &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Vera",
		Email:        "vera@example.com",
		SeatIDs:      []string{"seat-1", "seat-2"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	assert.Equal(t, entity.SeatStatusAvailable, store.seats["seat-1"].Status)
	assert.Empty(t, store.purchases)
	assert.Empty(t, store.tickets)
}

// TestPurchaseStorageFailure проверяет, что инфраструктурная ошибка
// классифицируется как storage_failure
func TestPurchaseStorageFailure(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	store.failCreate = errors.New("failed to create purchase: connection reset")
	svc := newTestService(store)

	_, err := svc.Purchase(context.Background(), &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Oleg",
		Email:        "oleg@example.com",
		SeatIDs:      []string{"seat-1"},
	})
	require.Error(t, err)
	assert.Equal(t, entity.CodeStorageFailure, entity.Code(err))
}

// TestCancelAndExpire тестирует отмену и истечение покупок с возвратом мест
func TestCancelAndExpire(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)
	ctx := context.Background()

	purchase, err := svc.Purchase(ctx, &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Dina",
		Email:        "dina@example.com",
		SeatIDs:      []string{"seat-1"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelPurchase(ctx, purchase.ID, "changed my mind"))
	assert.Equal(t, entity.PurchaseStatusCancelled, store.purchases[purchase.ID].Status)
	assert.Equal(t, entity.SeatStatusAvailable, store.seats["seat-1"].Status)

	// повторная отмена невозможна
	err = svc.CancelPurchase(ctx, purchase.ID, "again")
	assert.ErrorIs(t, err, entity.ErrPurchaseNotPending)

	// истёкшая покупка убирается фоновым проходом
	second, err := svc.Purchase(ctx, &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Dina",
		Email:        "dina@example.com",
		SeatIDs:      []string{"seat-2"},
	})
	require.NoError(t, err)
	store.purchases[second.ID].ExpiresAt = time.Now().Add(-time.Minute)

	expired, err := svc.ExpirePendingPurchases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)
	assert.Equal(t, entity.SeatStatusAvailable, store.seats["seat-2"].Status)
}

// TestExpirePartiallyConfirmedPurchase проверяет, что при истечении
// частично подтверждённой покупки место подтверждённого билета не
// возвращается в продажу
func TestExpirePartiallyConfirmedPurchase(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)
	ctx := context.Background()

	purchase, err := svc.Purchase(ctx, &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Fedor",
		Email:        "fedor@example.com",
		SeatIDs:      []string{"seat-1", "seat-2"},
	})
	require.NoError(t, err)

	// гость прошёл по первому билету, второй остался неоплаченным
	_, err = svc.ConfirmTicket(ctx, purchase.Tickets[0].ID)
	require.NoError(t, err)

	store.purchases[purchase.ID].ExpiresAt = time.Now().Add(-time.Minute)
	expired, err := svc.ExpirePendingPurchases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	// подтверждённый билет и его место не тронуты
	assert.Equal(t, entity.TicketStatusConfirmed, store.tickets[purchase.Tickets[0].ID].Status)
	assert.Equal(t, entity.SeatStatusOccupied, store.seats["seat-1"].Status)

	// неподтверждённый билет отменён, его место свободно
	assert.Equal(t, entity.TicketStatusCancelled, store.tickets[purchase.Tickets[1].ID].Status)
	assert.Equal(t, entity.SeatStatusAvailable, store.seats["seat-2"].Status)
}

// TestConfirmTicket тестирует подтверждение билета
func TestConfirmTicket(t *testing.T) {
	store := newMemStore()
	seedSeatedTicketType(store)
	svc := newTestService(store)
	ctx := context.Background()

	purchase, err := svc.Purchase(ctx, &PurchaseRequest{
		TicketTypeID: "tt-1",
		Name:         "Egor",
		Email:        "egor@example.com",
		SeatIDs:      []string{"seat-1"},
	})
	require.NoError(t, err)

	ticket, err := svc.ConfirmTicket(ctx, purchase.Tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusConfirmed, ticket.Status)

	// подтверждённый билет второй раз не подтверждается
	_, err = svc.ConfirmTicket(ctx, ticket.ID)
	assert.ErrorIs(t, err, entity.ErrTicketNotPending)

	// QR-код рендерится для подтверждённого билета
	png, err := svc.TicketQR(ctx, ticket.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
