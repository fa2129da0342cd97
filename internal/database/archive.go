package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL wire protocol driver (QuestDB compatible)

	"coinsangjang/internal/config"
	"coinsangjang/internal/models"
)

// EventArchive persists listing events and trade attempts to a PostgreSQL
// wire-compatible database. It is an optional durability layer behind the
// in-memory event store; all reads for the pipeline itself stay in memory.
type EventArchive struct {
	db *sql.DB

	insertEventStmt   *sql.Stmt
	insertAttemptStmt *sql.Stmt
}

// NewEventArchive opens the database and prepares the insert statements.
func NewEventArchive(cfg config.DatabaseConfig) (*EventArchive, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &EventArchive{db: db}
	if err := a.ensureTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := a.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *EventArchive) ensureTables() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS listing_events (
			id TEXT,
			source TEXT,
			symbol TEXT,
			base_symbol TEXT,
			title TEXT,
			announced_at TIMESTAMP,
			received_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trade_attempts (
			listing_id TEXT,
			account_id TEXT,
			venue TEXT,
			symbol TEXT,
			quantity DOUBLE PRECISION,
			outcome TEXT,
			order_id TEXT,
			error TEXT,
			attempted_at TIMESTAMP
		)`,
	}
	for _, stmt := range ddl {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (a *EventArchive) prepareStatements() error {
	var err error

	a.insertEventStmt, err = a.db.Prepare(`
		INSERT INTO listing_events (id, source, symbol, base_symbol, title, announced_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert statement: %w", err)
	}

	a.insertAttemptStmt, err = a.db.Prepare(`
		INSERT INTO trade_attempts (listing_id, account_id, venue, symbol, quantity, outcome, order_id, error, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare attempt insert statement: %w", err)
	}
	return nil
}

// InsertListingEvent archives one listing event.
func (a *EventArchive) InsertListingEvent(event *models.ListingEvent) error {
	_, err := a.insertEventStmt.Exec(
		event.ID,
		string(event.Source),
		event.Symbol,
		event.BaseSymbol,
		event.Title,
		event.AnnouncedAt,
		event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing event %s: %w", event.ID, err)
	}
	return nil
}

// InsertTradeAttempt archives one per-account order attempt.
func (a *EventArchive) InsertTradeAttempt(listingID string, attempt *models.TradeAttempt) error {
	_, err := a.insertAttemptStmt.Exec(
		listingID,
		attempt.AccountID,
		string(attempt.Venue),
		attempt.Symbol,
		attempt.Quantity,
		string(attempt.Outcome),
		attempt.OrderID,
		attempt.Error,
		attempt.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade attempt for %s: %w", attempt.AccountID, err)
	}
	return nil
}

// Close releases statements and the connection pool.
func (a *EventArchive) Close() error {
	if a.insertEventStmt != nil {
		a.insertEventStmt.Close()
	}
	if a.insertAttemptStmt != nil {
		a.insertAttemptStmt.Close()
	}
	return a.db.Close()
}
