package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev-m/ticketflow/internal/entity"
	"github.com/avdeev-m/ticketflow/internal/service"
)

type stubPurchaseService struct {
	purchase *entity.TicketPurchase
	ticket   *entity.Ticket
	err      error
}

func (s *stubPurchaseService) Purchase(ctx context.Context, req *service.PurchaseRequest) (*entity.TicketPurchase, error) {
	return s.purchase, s.err
}

func (s *stubPurchaseService) GetPurchase(ctx context.Context, id string) (*entity.TicketPurchase, error) {
	return s.purchase, s.err
}

func (s *stubPurchaseService) CancelPurchase(ctx context.Context, id string, reason string) error {
	return s.err
}

func (s *stubPurchaseService) ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	return s.ticket, s.err
}

func (s *stubPurchaseService) TicketQR(ctx context.Context, ticketID string) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, s.err
}

func (s *stubPurchaseService) ExpirePurchase(ctx context.Context, id string) error {
	return s.err
}

func (s *stubPurchaseService) ExpirePendingPurchases(ctx context.Context) (int64, error) {
	return 0, s.err
}

type stubEventService struct{}

func (s *stubEventService) CreateEvent(ctx context.Context, req *service.CreateEventRequest) (*entity.Event, error) {
	return &entity.Event{}, nil
}

func (s *stubEventService) GetEvent(ctx context.Context, id string) (*entity.Event, error) {
	return &entity.Event{ID: id}, nil
}

func (s *stubEventService) CreateSection(ctx context.Context, eventID string, req *service.CreateSectionRequest) (*entity.Section, error) {
	return &entity.Section{}, nil
}

func (s *stubEventService) CreateTicketType(ctx context.Context, eventID string, req *service.CreateTicketTypeRequest) (*entity.TicketType, error) {
	return &entity.TicketType{}, nil
}

func (s *stubEventService) GetTicketType(ctx context.Context, id string) (*service.TicketTypeDetails, error) {
	return &service.TicketTypeDetails{}, nil
}

func newTestRouter(purchaseService service.PurchaseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return InitRoutes(
		NewEventHandler(&stubEventService{}),
		NewPurchaseHandler(purchaseService),
		NewTicketHandler(purchaseService),
	)
}

// TestPurchaseErrorStatuses проверяет соответствие классов ошибок
// HTTP-статусам и стабильным кодам в теле ответа
func TestPurchaseErrorStatuses(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "ticket type not found",
			err:            fmt.Errorf("ticket type x: %w", entity.ErrTicketTypeNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   entity.CodeNotFound,
		},
		{
			name:           "seat taken",
			err:            fmt.Errorf("seat s: %w", entity.ErrSeatUnavailable),
			expectedStatus: http.StatusConflict,
			expectedCode:   entity.CodeConflict,
		},
		{
			name:           "not enough tickets",
			err:            fmt.Errorf("2 of 5 tickets remaining: %w", entity.ErrNotEnoughTickets),
			expectedStatus: http.StatusConflict,
			expectedCode:   entity.CodeConflict,
		},
		{
			name:           "section not allowed",
			err:            fmt.Errorf("seat s belongs to section v: %w", entity.ErrSectionNotAllowed),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   entity.CodeInvalidRequest,
		},
		{
			name:           "storage failure",
			err:            fmt.Errorf("failed to create purchase: connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   entity.CodeStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubPurchaseService{err: tt.err})

			body := bytes.NewBufferString(`{"name":"Test","email":"test@example.com","quantity":1}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ticket-types/tt-1/purchase", body)
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

// TestPurchaseSuccess проверяет ответ успешной покупки
func TestPurchaseSuccess(t *testing.T) {
	purchase := &entity.TicketPurchase{
		ID:          "p-1",
		Status:      entity.PurchaseStatusPending,
		TotalAmount: 1500,
	}
	router := newTestRouter(&stubPurchaseService{purchase: purchase})

	body := bytes.NewBufferString(`{"name":"Test","email":"test@example.com","seat_ids":["seat-1"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticket-types/tt-1/purchase", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp entity.TicketPurchase
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "p-1", resp.ID)
	assert.Equal(t, int64(1500), resp.TotalAmount)
}

// TestPurchaseBadBody проверяет, что невалидное тело запроса даёт 400
func TestPurchaseBadBody(t *testing.T) {
	router := newTestRouter(&stubPurchaseService{})

	body := bytes.NewBufferString(`{"email":"not-an-email"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticket-types/tt-1/purchase", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestTicketQRContentType проверяет, что QR-код отдаётся как PNG
func TestTicketQRContentType(t *testing.T) {
	router := newTestRouter(&stubPurchaseService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/t-1/qr", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

// TestHealthcheck проверяет эндпоинт здоровья сервиса
func TestHealthcheck(t *testing.T) {
	router := newTestRouter(&stubPurchaseService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
