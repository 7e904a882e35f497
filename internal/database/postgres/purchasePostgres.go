package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avdeev-m/ticketflow/internal/entity"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised when two transactions
// insert tickets for the same seat; the unique index on tickets.seat_id is
// the last line of defense behind the conditional seat update.
const uniqueViolation = "23505"

type purchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// CreatePurchase commits the purchase, its tickets and the seat claims in
// one transaction
func (r *purchaseRepository) CreatePurchase(ctx context.Context, purchase *entity.TicketPurchase) error {
	if len(purchase.Tickets) == 0 {
		return fmt.Errorf("purchase has no tickets: %w", entity.ErrInvalidRequest)
	}
	ticketTypeID := purchase.Tickets[0].TicketTypeID

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	// Lock the ticket type row so concurrent purchases of a
	// quantity-limited type serialize their capacity checks
	var quantity sql.NullInt64
	query := `SELECT quantity FROM ticket_types WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, ticketTypeID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return entity.ErrTicketTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock ticket type: %v", err)
	}

	if quantity.Valid {
		var sold int
		query = `SELECT COUNT(*) FROM tickets WHERE ticket_type_id = $1 AND status <> 'cancelled'`
		err = tx.QueryRowContext(ctx, query, ticketTypeID).Scan(&sold)
		if err != nil {
			return fmt.Errorf("failed to count sold tickets: %v", err)
		}

		if sold+len(purchase.Tickets) > int(quantity.Int64) {
			return fmt.Errorf("requested %d, remaining %d: %w",
				len(purchase.Tickets), int(quantity.Int64)-sold, entity.ErrNotEnoughTickets)
		}
	}

	now := time.Now()
	query = `
		INSERT INTO ticket_purchases (
			id, customer_name, customer_email, total_amount, status,
			expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		purchase.ID,
		purchase.CustomerName,
		purchase.CustomerEmail,
		purchase.TotalAmount,
		purchase.Status,
		purchase.ExpiresAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %v", err)
	}

	for _, ticket := range purchase.Tickets {
		query = `
			INSERT INTO tickets (
				id, purchase_id, ticket_type_id, seat_id, price, status,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.ExecContext(ctx, query,
			ticket.ID,
			purchase.ID,
			ticket.TicketTypeID,
			ticket.SeatID,
			ticket.Price,
			ticket.Status,
			now,
			now,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return fmt.Errorf("seat %s: %w", deref(ticket.SeatID), entity.ErrSeatUnavailable)
			}
			return fmt.Errorf("failed to create ticket: %v", err)
		}

		if ticket.SeatID == nil {
			continue
		}

		// Claim the seat only if it is still available; a concurrent
		// transaction that got there first makes this a no-op and the
		// purchase loses the race
		query = `
			UPDATE seats
			SET status = $1, ticket_id = $2
			WHERE id = $3 AND status = $4
		`
		result, err := tx.ExecContext(ctx, query,
			entity.SeatStatusOccupied, ticket.ID, *ticket.SeatID, entity.SeatStatusAvailable)
		if err != nil {
			return fmt.Errorf("failed to claim seat: %v", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %v", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("seat %s: %w", *ticket.SeatID, entity.ErrSeatUnavailable)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	purchase.CreatedAt = now
	purchase.UpdatedAt = now
	for _, ticket := range purchase.Tickets {
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
	}

	return nil
}

// GetByID retrieves a purchase with its tickets
func (r *purchaseRepository) GetByID(ctx context.Context, id string) (*entity.TicketPurchase, error) {
	query := `
		SELECT
			id, customer_name, customer_email, total_amount, status,
			expires_at, created_at, updated_at
		FROM ticket_purchases
		WHERE id = $1
	`

	var purchase entity.TicketPurchase
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&purchase.ID,
		&purchase.CustomerName,
		&purchase.CustomerEmail,
		&purchase.TotalAmount,
		&purchase.Status,
		&purchase.ExpiresAt,
		&purchase.CreatedAt,
		&purchase.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %v", err)
	}

	query = `
		SELECT
			id, purchase_id, ticket_type_id, seat_id, price, status,
			created_at, updated_at
		FROM tickets
		WHERE purchase_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase tickets: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticket entity.Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.PurchaseID,
			&ticket.TicketTypeID,
			&ticket.SeatID,
			&ticket.Price,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %v", err)
		}
		purchase.Tickets = append(purchase.Tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %v", err)
	}

	return &purchase, nil
}

// GetTicketByID retrieves a single ticket
func (r *purchaseRepository) GetTicketByID(ctx context.Context, id string) (*entity.Ticket, error) {
	query := `
		SELECT
			id, purchase_id, ticket_type_id, seat_id, price, status,
			created_at, updated_at
		FROM tickets
		WHERE id = $1
	`

	var ticket entity.Ticket
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.PurchaseID,
		&ticket.TicketTypeID,
		&ticket.SeatID,
		&ticket.Price,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %v", err)
	}

	return &ticket, nil
}

// CancelPurchase cancels a pending purchase and its tickets; seat release
// is governed by the releaseSeats policy flag
func (r *purchaseRepository) CancelPurchase(ctx context.Context, id string, releaseSeats bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var status entity.PurchaseStatus
	query := `SELECT status FROM ticket_purchases WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, id).Scan(&status)
	if err == sql.ErrNoRows {
		return entity.ErrPurchaseNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get purchase status: %v", err)
	}

	if status != entity.PurchaseStatusPending {
		return fmt.Errorf("purchase %s is %s: %w", id, status, entity.ErrPurchaseNotPending)
	}

	if err := r.cancelInTx(ctx, tx, id, releaseSeats); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// ExpirePurchase cancels one pending purchase whose hold has run out
func (r *purchaseRepository) ExpirePurchase(ctx context.Context, id string, releaseSeats bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var status entity.PurchaseStatus
	var expiresAt time.Time
	query := `SELECT status, expires_at FROM ticket_purchases WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, id).Scan(&status, &expiresAt)
	if err == sql.ErrNoRows {
		return entity.ErrPurchaseNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get purchase status: %v", err)
	}

	if status != entity.PurchaseStatusPending {
		// Already confirmed or cancelled, nothing to expire
		return nil
	}
	if expiresAt.After(time.Now()) {
		return fmt.Errorf("purchase %s expires at %s: %w",
			id, expiresAt.Format(time.RFC3339), entity.ErrPurchaseNotExpired)
	}

	if err := r.cancelInTx(ctx, tx, id, releaseSeats); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// ExpireAllPending cancels every pending purchase past its hold deadline
// and returns how many were expired
func (r *purchaseRepository) ExpireAllPending(ctx context.Context, before time.Time, releaseSeats bool) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id FROM ticket_purchases
		WHERE status = 'pending' AND expires_at < $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired purchases: %v", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan purchase id: %v", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating expired purchases: %v", err)
	}

	for _, id := range ids {
		if err := r.cancelInTx(ctx, tx, id, releaseSeats); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %v", err)
	}

	return int64(len(ids)), nil
}

// cancelInTx marks a purchase and its tickets cancelled and optionally
// frees the claimed seats, all within the caller's transaction
func (r *purchaseRepository) cancelInTx(ctx context.Context, tx *sql.Tx, id string, releaseSeats bool) error {
	now := time.Now()

	if releaseSeats {
		// Only seats of tickets being cancelled here; a confirmed ticket
		// of a partially scanned purchase keeps its seat
		query := `
			UPDATE seats
			SET status = $1, ticket_id = NULL
			WHERE ticket_id IN (
				SELECT id FROM tickets WHERE purchase_id = $2 AND status = $3
			)
		`
		if _, err := tx.ExecContext(ctx, query,
			entity.SeatStatusAvailable, id, entity.TicketStatusPending); err != nil {
			return fmt.Errorf("failed to release seats: %v", err)
		}
	}

	query := `UPDATE tickets SET status = $1, updated_at = $2 WHERE purchase_id = $3 AND status = $4`
	if _, err := tx.ExecContext(ctx, query,
		entity.TicketStatusCancelled, now, id, entity.TicketStatusPending); err != nil {
		return fmt.Errorf("failed to cancel tickets: %v", err)
	}

	query = `UPDATE ticket_purchases SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.PurchaseStatusCancelled, now, id); err != nil {
		return fmt.Errorf("failed to cancel purchase: %v", err)
	}

	return nil
}

// ConfirmTicket marks one pending ticket confirmed; once all tickets of
// the purchase are confirmed the purchase itself completes
func (r *purchaseRepository) ConfirmTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var ticket entity.Ticket
	query := `
		SELECT id, purchase_id, ticket_type_id, seat_id, price, status,
			created_at, updated_at
		FROM tickets
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, ticketID).Scan(
		&ticket.ID,
		&ticket.PurchaseID,
		&ticket.TicketTypeID,
		&ticket.SeatID,
		&ticket.Price,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %v", err)
	}

	if ticket.Status != entity.TicketStatusPending {
		return nil, fmt.Errorf("ticket %s is %s: %w", ticketID, ticket.Status, entity.ErrTicketNotPending)
	}

	now := time.Now()
	query = `UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.TicketStatusConfirmed, now, ticketID); err != nil {
		return nil, fmt.Errorf("failed to confirm ticket: %v", err)
	}

	var remaining int
	query = `SELECT COUNT(*) FROM tickets WHERE purchase_id = $1 AND status = $2`
	err = tx.QueryRowContext(ctx, query, ticket.PurchaseID, entity.TicketStatusPending).Scan(&remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending tickets: %v", err)
	}

	if remaining == 0 {
		query = `UPDATE ticket_purchases SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
		if _, err := tx.ExecContext(ctx, query,
			entity.PurchaseStatusCompleted, now, ticket.PurchaseID, entity.PurchaseStatusPending); err != nil {
			return nil, fmt.Errorf("failed to complete purchase: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %v", err)
	}

	ticket.Status = entity.TicketStatusConfirmed
	ticket.UpdatedAt = now
	return &ticket, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
