package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avdeev-m/ticketflow/internal/entity"
	"github.com/lib/pq"
)

type seatRepository struct {
	db *sql.DB
}

func NewSeatRepository(db *sql.DB) SeatRepository {
	return &seatRepository{db: db}
}

// GetSeatPricing loads the requested seats joined with their row, section
// and the section price multiplier
func (r *seatRepository) GetSeatPricing(ctx context.Context, seatIDs []string) ([]*entity.SeatPricing, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			s.id, s.name, s.status, s.row_id,
			r.section_id, sec.price_multiplier
		FROM seats s
		JOIN seat_rows r ON s.row_id = r.id
		JOIN sections sec ON r.section_id = sec.id
		WHERE s.id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(seatIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %v", err)
	}
	defer rows.Close()

	var seats []*entity.SeatPricing
	for rows.Next() {
		var seat entity.SeatPricing
		err := rows.Scan(
			&seat.SeatID,
			&seat.SeatName,
			&seat.Status,
			&seat.RowID,
			&seat.SectionID,
			&seat.PriceMultiplier,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %v", err)
		}
		seats = append(seats, &seat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seats: %v", err)
	}

	return seats, nil
}

// ReleaseOrphanedSeats frees occupied seats whose ticket was cancelled.
// Cancellation releases seats in the same transaction when the release
// policy is on; this sweep repairs seats left behind while it was off.
func (r *seatRepository) ReleaseOrphanedSeats(ctx context.Context) (int64, error) {
	query := `
		UPDATE seats
		SET status = $1, ticket_id = NULL
		WHERE status = $2
		  AND ticket_id IN (SELECT id FROM tickets WHERE status = $3)
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.SeatStatusAvailable, entity.SeatStatusOccupied, entity.TicketStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("failed to release orphaned seats: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %v", err)
	}

	return rowsAffected, nil
}
