package assistant

import (
	"context"
	"time"

	"github.com/dvloznov/finance-assistant/internal/store"
)

// TextGenerator produces free-form text from a prompt. The Gemini client in
// gemini.go is the production implementation; tests substitute function-field
// mocks.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Ledger is the authoritative persistence surface the pipeline needs.
// *store.Store implements it; tests use in-memory doubles.
type Ledger interface {
	InsertEvent(ctx context.Context, ev *store.Event) error
	AttachVectorID(ctx context.Context, eventID, vectorID string) error
	UpdateBalance(ctx context.Context, ev *store.Event, balance float64) error
	GetBalance(ctx context.Context, userID string) (float64, error)
	ListUpcomingCommitments(ctx context.Context, userID string, now time.Time, limit int) ([]store.Event, error)
	ListRecentCommitments(ctx context.Context, userID string, limit int) ([]store.Event, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]store.Event, error)
}

var _ Ledger = (*store.Store)(nil)
