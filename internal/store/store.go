// Package store is the authoritative ledger: an append-only log of financial
// events plus one current-balance row per user, backed by sqlite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Event kinds persisted in financial_events.input_type.
const (
	EventCommitment    = "FINANCIAL_COMMITMENT"
	EventBalanceUpdate = "BALANCE_UPDATE"
	EventQuestion      = "QUESTION"
)

// Event is one immutable financial event. Only the vector back-reference may
// be attached after creation; everything else is written once.
type Event struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	InputType      string     `json:"input_type"`
	Description    string     `json:"description,omitempty"`
	Amount         float64    `json:"amount,omitempty"`
	CommitmentDate *time.Time `json:"commitment_date,omitempty"`
	Balance        float64    `json:"balance,omitempty"`
	QuestionText   string     `json:"question_text,omitempty"`
	RawInput       string     `json:"raw_input"`
	VectorID       string     `json:"vector_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Balance is the single authoritative balance row for a user.
type Balance struct {
	UserID         string    `json:"user_id"`
	CurrentBalance float64   `json:"current_balance"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Store wraps the sqlite handle. Safe for concurrent use; sql.DB pools
// connections internally.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral store in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent appends a financial event to the ledger.
func (s *Store) InsertEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_events (
			id, user_id, input_type, description, amount, commitment_date,
			balance, question_text, raw_input, vector_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.InputType,
		nullString(ev.Description), nullFloat(ev.Amount), nullTime(ev.CommitmentDate),
		nullFloat(ev.Balance), nullString(ev.QuestionText),
		ev.RawInput, nullString(ev.VectorID), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// AttachVectorID records the semantic-index key on an already-persisted
// commitment event.
func (s *Store) AttachVectorID(ctx context.Context, eventID, vectorID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE financial_events SET vector_id = ? WHERE id = ?",
		vectorID, eventID,
	)
	if err != nil {
		return fmt.Errorf("attach vector id: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attach vector id: event not found: %s", eventID)
	}
	return nil
}

// UpdateBalance appends a BALANCE_UPDATE event and upserts the user's balance
// row in a single transaction. Either both writes commit or neither does.
func (s *Store) UpdateBalance(ctx context.Context, ev *Event, balance float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update balance: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO financial_events (
			id, user_id, input_type, description, amount, commitment_date,
			balance, question_text, raw_input, vector_id, created_at
		) VALUES (?, ?, ?, NULL, NULL, NULL, ?, NULL, ?, NULL, ?)`,
		ev.ID, ev.UserID, ev.InputType, balance, ev.RawInput, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("update balance: insert event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, current_balance, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			last_updated = excluded.last_updated`,
		ev.UserID, balance, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("update balance: upsert balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update balance: commit: %w", err)
	}
	return nil
}

// GetBalance returns the user's current balance, or 0 if the user has no
// balance row yet.
func (s *Store) GetBalance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		"SELECT current_balance FROM user_balances WHERE user_id = ?",
		userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetEvent retrieves a single event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectEventCols+" WHERE id = ?", eventID)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return ev, nil
}

// ListUpcomingCommitments returns up to limit commitments for the user with a
// future-or-present date, ordered by date ascending. Commitments without a
// date are excluded; they cannot participate in forward-looking arithmetic.
func (s *Store) ListUpcomingCommitments(ctx context.Context, userID string, now time.Time, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEventCols+`
		WHERE user_id = ? AND input_type = ? AND commitment_date IS NOT NULL AND commitment_date >= ?
		ORDER BY commitment_date ASC LIMIT ?`,
		userID, EventCommitment, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming commitments: %w", err)
	}
	return collectEvents(rows)
}

// ListRecentCommitments returns up to limit commitments for the user, most
// recently created first.
func (s *Store) ListRecentCommitments(ctx context.Context, userID string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEventCols+`
		WHERE user_id = ? AND input_type = ?
		ORDER BY created_at DESC LIMIT ?`,
		userID, EventCommitment, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent commitments: %w", err)
	}
	return collectEvents(rows)
}

// ListHistory returns up to limit events of any kind for the user, most
// recent first.
func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEventCols+`
		WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return collectEvents(rows)
}

const selectEventCols = `
	SELECT id, user_id, input_type, description, amount, commitment_date,
	       balance, question_text, raw_input, vector_id, created_at
	FROM financial_events`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		ev             Event
		description    sql.NullString
		amount         sql.NullFloat64
		commitmentDate sql.NullTime
		balance        sql.NullFloat64
		questionText   sql.NullString
		vectorID       sql.NullString
	)

	err := row.Scan(
		&ev.ID, &ev.UserID, &ev.InputType, &description, &amount,
		&commitmentDate, &balance, &questionText, &ev.RawInput,
		&vectorID, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Description = description.String
	ev.Amount = amount.Float64
	if commitmentDate.Valid {
		t := commitmentDate.Time
		ev.CommitmentDate = &t
	}
	ev.Balance = balance.Float64
	ev.QuestionText = questionText.String
	ev.VectorID = vectorID.String

	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
