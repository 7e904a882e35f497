package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

type ticketTypeRepository struct {
	db *sql.DB
}

func NewTicketTypeRepository(db *sql.DB) TicketTypeRepository {
	return &ticketTypeRepository{db: db}
}

// Create persists a ticket type together with its allowed sections
func (r *ticketTypeRepository) Create(ctx context.Context, ticketType *entity.TicketType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now()
	query := `
		INSERT INTO ticket_types (id, event_id, name, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		ticketType.ID,
		ticketType.EventID,
		ticketType.Name,
		ticketType.Price,
		ticketType.Quantity,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket type: %v", err)
	}

	for _, sectionID := range ticketType.AllowedSectionIDs {
		query = `INSERT INTO ticket_type_sections (ticket_type_id, section_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, query, ticketType.ID, sectionID); err != nil {
			return fmt.Errorf("failed to link allowed section: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	ticketType.CreatedAt = now
	ticketType.UpdatedAt = now
	return nil
}

// GetByID retrieves a ticket type with its allowed section ids
func (r *ticketTypeRepository) GetByID(ctx context.Context, id string) (*entity.TicketType, error) {
	query := `
		SELECT id, event_id, name, price, quantity, created_at, updated_at
		FROM ticket_types
		WHERE id = $1
	`

	var ticketType entity.TicketType
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ticketType.ID,
		&ticketType.EventID,
		&ticketType.Name,
		&ticketType.Price,
		&ticketType.Quantity,
		&ticketType.CreatedAt,
		&ticketType.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %v", err)
	}

	query = `SELECT section_id FROM ticket_type_sections WHERE ticket_type_id = $1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed sections: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sectionID string
		if err := rows.Scan(&sectionID); err != nil {
			return nil, fmt.Errorf("failed to scan section id: %v", err)
		}
		ticketType.AllowedSectionIDs = append(ticketType.AllowedSectionIDs, sectionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allowed sections: %v", err)
	}

	return &ticketType, nil
}

// CountActiveTickets counts non-cancelled tickets referencing a type
func (r *ticketTypeRepository) CountActiveTickets(ctx context.Context, ticketTypeID string) (int, error) {
	query := `SELECT COUNT(*) FROM tickets WHERE ticket_type_id = $1 AND status <> 'cancelled'`
	var count int
	err := r.db.QueryRowContext(ctx, query, ticketTypeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %v", err)
	}
	return count, nil
}

// GetSales returns sold/cancelled counts and revenue for a ticket type
func (r *ticketTypeRepository) GetSales(ctx context.Context, ticketTypeID string) (*entity.TicketTypeSales, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status <> 'cancelled' THEN 1 ELSE 0 END), 0) as sold,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled,
			COALESCE(SUM(CASE WHEN status <> 'cancelled' THEN price ELSE 0 END), 0) as revenue
		FROM tickets
		WHERE ticket_type_id = $1
	`

	var sales entity.TicketTypeSales
	err := r.db.QueryRowContext(ctx, query, ticketTypeID).Scan(
		&sales.SoldTickets,
		&sales.CancelledTickets,
		&sales.Revenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type sales: %v", err)
	}

	return &sales, nil
}
