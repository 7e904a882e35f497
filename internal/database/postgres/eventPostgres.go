package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (id, title, description, starts_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.StartsAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %v", err)
	}

	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

// GetByID retrieves an event with its full seating layout
func (r *eventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	query := `
		SELECT id, title, description, starts_at, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	var event entity.Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartsAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %v", err)
	}

	sections, err := r.loadLayout(ctx, id)
	if err != nil {
		return nil, err
	}
	event.Sections = sections

	return &event, nil
}

// loadLayout reads sections, rows and seats of an event in one joined
// query and rebuilds the nesting in order
func (r *eventRepository) loadLayout(ctx context.Context, eventID string) ([]*entity.Section, error) {
	query := `
		SELECT
			sec.id, sec.event_id, sec.name, sec.price_multiplier,
			sr.id, sr.name,
			s.id, s.name, s.status, s.ticket_id
		FROM sections sec
		LEFT JOIN seat_rows sr ON sr.section_id = sec.id
		LEFT JOIN seats s ON s.row_id = sr.id
		WHERE sec.event_id = $1
		ORDER BY sec.name, sr.name, s.name
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query layout: %v", err)
	}
	defer rows.Close()

	var sections []*entity.Section
	sectionIndex := make(map[string]*entity.Section)
	rowIndex := make(map[string]*entity.Row)

	for rows.Next() {
		var section entity.Section
		var rowID, rowName sql.NullString
		var seatID, seatName, seatStatus, seatTicketID sql.NullString

		err := rows.Scan(
			&section.ID,
			&section.EventID,
			&section.Name,
			&section.PriceMultiplier,
			&rowID,
			&rowName,
			&seatID,
			&seatName,
			&seatStatus,
			&seatTicketID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layout row: %v", err)
		}

		sec, ok := sectionIndex[section.ID]
		if !ok {
			sec = &section
			sectionIndex[sec.ID] = sec
			sections = append(sections, sec)
		}

		if !rowID.Valid {
			continue
		}
		row, ok := rowIndex[rowID.String]
		if !ok {
			row = &entity.Row{
				ID:        rowID.String,
				SectionID: sec.ID,
				Name:      rowName.String,
			}
			rowIndex[row.ID] = row
			sec.Rows = append(sec.Rows, row)
		}

		if !seatID.Valid {
			continue
		}
		seat := &entity.Seat{
			ID:     seatID.String,
			RowID:  row.ID,
			Name:   seatName.String,
			Status: entity.SeatStatus(seatStatus.String),
		}
		if seatTicketID.Valid {
			ticketID := seatTicketID.String
			seat.TicketID = &ticketID
		}
		row.Seats = append(row.Seats, seat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layout: %v", err)
	}

	return sections, nil
}

// CreateSection persists a section with its rows and seats in one
// transaction
func (r *eventRepository) CreateSection(ctx context.Context, section *entity.Section) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`
	if err := tx.QueryRowContext(ctx, query, section.EventID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check event: %v", err)
	}
	if !exists {
		return entity.ErrEventNotFound
	}

	query = `
		INSERT INTO sections (id, event_id, name, price_multiplier)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.ExecContext(ctx, query,
		section.ID,
		section.EventID,
		section.Name,
		section.PriceMultiplier,
	)
	if err != nil {
		return fmt.Errorf("failed to create section: %v", err)
	}

	for _, row := range section.Rows {
		query = `INSERT INTO seat_rows (id, section_id, name) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, query, row.ID, section.ID, row.Name); err != nil {
			return fmt.Errorf("failed to create row: %v", err)
		}

		for _, seat := range row.Seats {
			query = `INSERT INTO seats (id, row_id, name, status) VALUES ($1, $2, $3, $4)`
			if _, err := tx.ExecContext(ctx, query, seat.ID, row.ID, seat.Name, seat.Status); err != nil {
				return fmt.Errorf("failed to create seat: %v", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}
