package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

type fakeEventRepo struct {
	events   map[string]*entity.Event
	sections map[string]*entity.Section
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:   make(map[string]*entity.Event),
		sections: make(map[string]*entity.Section),
	}
}

func (r *fakeEventRepo) Create(ctx context.Context, event *entity.Event) error {
	r.events[event.ID] = event
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, entity.ErrEventNotFound)
	}
	return event, nil
}

func (r *fakeEventRepo) CreateSection(ctx context.Context, section *entity.Section) error {
	if _, ok := r.events[section.EventID]; !ok {
		return fmt.Errorf("event %s: %w", section.EventID, entity.ErrEventNotFound)
	}
	r.sections[section.ID] = section
	r.events[section.EventID].Sections = append(r.events[section.EventID].Sections, section)
	return nil
}

func newTestEventService(eventRepo *fakeEventRepo, store *memStore) EventService {
	return NewEventService(eventRepo, &fakeTicketTypeRepo{store: store})
}

// TestCreateEventWithLayout тестирует создание мероприятия с секциями
func TestCreateEventWithLayout(t *testing.T) {
	eventRepo := newFakeEventRepo()
	svc := newTestEventService(eventRepo, newMemStore())
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, &CreateEventRequest{
		Title:       "Jazz Night",
		Description: "Evening concert",
		StartsAt:    entity.CustomTime{Time: time.Now().Add(48 * time.Hour)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)

	section, err := svc.CreateSection(ctx, event.ID, &CreateSectionRequest{
		Name:            "Parterre",
		PriceMultiplier: decimal.RequireFromString("1.5"),
		Rows: []RowRequest{
			{Name: "A", Seats: []string{"1", "2", "3"}},
			{Name: "B", Seats: []string{"1", "2"}},
		},
	})
	require.NoError(t, err)

	require.Len(t, section.Rows, 2)
	assert.Len(t, section.Rows[0].Seats, 3)
	assert.Len(t, section.Rows[1].Seats, 2)
	for _, row := range section.Rows {
		assert.Equal(t, section.ID, row.SectionID)
		for _, seat := range row.Seats {
			assert.Equal(t, entity.SeatStatusAvailable, seat.Status)
			assert.NotEmpty(t, seat.ID)
		}
	}
}

// TestCreateSectionValidation тестирует валидацию секции
func TestCreateSectionValidation(t *testing.T) {
	eventRepo := newFakeEventRepo()
	svc := newTestEventService(eventRepo, newMemStore())
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, &CreateEventRequest{Title: "Jazz Night"})
	require.NoError(t, err)

	// нулевой множитель запрещён
	_, err = svc.CreateSection(ctx, event.ID, &CreateSectionRequest{
		Name:            "Free zone",
		PriceMultiplier: decimal.Zero,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	// ряд без мест запрещён
	_, err = svc.CreateSection(ctx, event.ID, &CreateSectionRequest{
		Name:            "Empty row",
		PriceMultiplier: decimal.RequireFromString("1"),
		Rows:            []RowRequest{{Name: "A"}},
	})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	// несуществующее мероприятие
	_, err = svc.CreateSection(ctx, "missing", &CreateSectionRequest{
		Name:            "Parterre",
		PriceMultiplier: decimal.RequireFromString("1"),
	})
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

// TestCreateTicketType тестирует создание типов билетов
func TestCreateTicketType(t *testing.T) {
	eventRepo := newFakeEventRepo()
	store := newMemStore()
	svc := newTestEventService(eventRepo, store)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, &CreateEventRequest{Title: "Jazz Night"})
	require.NoError(t, err)

	section, err := svc.CreateSection(ctx, event.ID, &CreateSectionRequest{
		Name:            "Parterre",
		PriceMultiplier: decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)

	ticketType, err := svc.CreateTicketType(ctx, event.ID, &CreateTicketTypeRequest{
		Name:       "Seated",
		Price:      1000,
		SectionIDs: []string{section.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{section.ID}, ticketType.AllowedSectionIDs)
	assert.Nil(t, ticketType.Quantity)

	// отрицательная цена запрещена
	_, err = svc.CreateTicketType(ctx, event.ID, &CreateTicketTypeRequest{
		Name:  "Bad",
		Price: -1,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	// секция чужого мероприятия запрещена
	_, err = svc.CreateTicketType(ctx, event.ID, &CreateTicketTypeRequest{
		Name:       "Bad sections",
		Price:      100,
		SectionIDs: []string{"unknown-section"},
	})
	assert.ErrorIs(t, err, entity.ErrSectionNotFound)
}
