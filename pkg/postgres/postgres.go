package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/avdeev-m/ticketflow/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			starts_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sections (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events(id),
			name VARCHAR(255) NOT NULL,
			price_multiplier NUMERIC(6,3) NOT NULL DEFAULT 1.0 CHECK (price_multiplier > 0)
		)`,

		`CREATE TABLE IF NOT EXISTS seat_rows (
			id UUID PRIMARY KEY,
			section_id UUID NOT NULL REFERENCES sections(id),
			name VARCHAR(64) NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS seats (
			id UUID PRIMARY KEY,
			row_id UUID NOT NULL REFERENCES seat_rows(id),
			name VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'available',
			ticket_id UUID
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_types (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events(id),
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL CHECK (price >= 0),
			quantity INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_type_sections (
			ticket_type_id UUID NOT NULL REFERENCES ticket_types(id),
			section_id UUID NOT NULL REFERENCES sections(id),
			PRIMARY KEY (ticket_type_id, section_id)
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_purchases (
			id UUID PRIMARY KEY,
			customer_name VARCHAR(255) NOT NULL,
			customer_email VARCHAR(255) NOT NULL,
			total_amount BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS tickets (
			id UUID PRIMARY KEY,
			purchase_id UUID NOT NULL REFERENCES ticket_purchases(id),
			ticket_type_id UUID NOT NULL REFERENCES ticket_types(id),
			seat_id UUID REFERENCES seats(id),
			price BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// One live ticket per seat, enforced by the store in addition to
		// the conditional status update at claim time.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_seat_id ON tickets(seat_id)
			WHERE seat_id IS NOT NULL AND status <> 'cancelled'`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_sections_event_id ON sections(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_seat_rows_section_id ON seat_rows(section_id)`,
		`CREATE INDEX IF NOT EXISTS idx_seats_row_id ON seats(row_id)`,
		`CREATE INDEX IF NOT EXISTS idx_seats_status ON seats(status)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_types_event_id ON ticket_types(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_purchase_id ON tickets(purchase_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_type_status ON tickets(ticket_type_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_status ON ticket_purchases(status)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_expires_at ON ticket_purchases(expires_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
