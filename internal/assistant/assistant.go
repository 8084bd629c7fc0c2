package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/vector"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Assistant wires the classifier, the three handlers, and the advice
// generator over the ledger and the semantic index. All handles are shared
// and safe for concurrent requests; the Assistant itself holds no per-request
// state.
type Assistant struct {
	classifier *Classifier
	advisor    *AdviceGenerator
	ledger     Ledger
	index      vector.Index
	embedder   vector.Embedder
	log        zerolog.Logger
}

// New constructs an Assistant from explicitly supplied components.
func New(classifier *Classifier, advisor *AdviceGenerator, ledger Ledger, index vector.Index, embedder vector.Embedder, log zerolog.Logger) *Assistant {
	return &Assistant{
		classifier: classifier,
		advisor:    advisor,
		ledger:     ledger,
		index:      index,
		embedder:   embedder,
		log:        log,
	}
}

// ProcessInput is the pipeline entry point: classify, then route to exactly
// one handler. Handler errors mean the request failed (ledger write or
// validation failure); advisory-subsystem failures never surface here.
func (a *Assistant) ProcessInput(ctx context.Context, userID, text string) (*Result, error) {
	// 1. Classify and extract. Never fails; falls back deterministically.
	classified := a.classifier.Classify(ctx, text)

	a.log.Debug().
		Str("user_id", userID).
		Str("kind", string(classified.Kind)).
		Float64("confidence", classified.Confidence).
		Msg("Input classified")

	// 2. Route to exactly one handler.
	return a.route(ctx, userID, text, classified)
}

func (a *Assistant) route(ctx context.Context, userID, text string, classified *ClassifiedInput) (*Result, error) {
	switch classified.Kind {
	case KindCommitment:
		return a.handleCommitment(ctx, userID, text, classified.Commitment)
	case KindBalanceUpdate:
		return a.handleBalanceUpdate(ctx, userID, text, classified.Balance)
	case KindQuestion:
		return a.handleQuestion(ctx, userID, text, classified.Question)
	}

	// Defensive: the fallback classifier cannot produce an unknown kind.
	return &Result{
		Success: false,
		Message: "Unable to classify input",
	}, nil
}

// handleCommitment persists the commitment to the ledger, then best-effort
// mirrors it into the semantic index. An index failure never rolls back the
// ledger write; when mirroring succeeds the vector id is surfaced in the
// envelope data.
func (a *Assistant) handleCommitment(ctx context.Context, userID, rawInput string, data *CommitmentData) (*Result, error) {
	if data == nil {
		return nil, fmt.Errorf("commitment: missing payload")
	}
	if data.Description == "" {
		return nil, fmt.Errorf("commitment: description is required")
	}
	if data.Amount <= 0 {
		return nil, fmt.Errorf("commitment: amount must be positive, got %.2f", data.Amount)
	}

	ev := &store.Event{
		ID:             uuid.NewString(),
		UserID:         userID,
		InputType:      store.EventCommitment,
		Description:    data.Description,
		Amount:         data.Amount,
		CommitmentDate: data.Date,
		RawInput:       rawInput,
		CreatedAt:      time.Now().UTC(),
	}

	if err := a.ledger.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("commitment: persist event: %w", err)
	}

	result := &Result{
		Success: true,
		Message: fmt.Sprintf("Added commitment: %s ($%.2f)", data.Description, data.Amount),
		Data: map[string]interface{}{
			"id":          ev.ID,
			"description": data.Description,
			"amount":      data.Amount,
			"date":        isoDateOrNil(data.Date),
		},
	}

	if vectorID, err := a.mirrorCommitment(ctx, userID, ev, data); err != nil {
		a.log.Warn().Err(err).Str("event_id", ev.ID).Msg("Semantic index mirroring failed")
	} else {
		result.Data["vector_id"] = vectorID
	}

	return result, nil
}

// mirrorCommitment upserts the commitment into the semantic index under the
// deterministic user+event key and attaches the key to the ledger event.
func (a *Assistant) mirrorCommitment(ctx context.Context, userID string, ev *store.Event, data *CommitmentData) (string, error) {
	dateText := "upcoming"
	if data.Date != nil {
		dateText = data.Date.Format(time.RFC3339)
	}

	text := fmt.Sprintf("Financial commitment: %s. Amount: %.2f. Date: %s", data.Description, data.Amount, dateText)
	vec, err := a.embedder.Embed(text)
	if err != nil {
		return "", fmt.Errorf("embed commitment: %w", err)
	}

	vectorID := vector.EntryID(userID, ev.ID)
	entry := vector.Entry{
		ID:     vectorID,
		Values: vec,
		Metadata: vector.Metadata{
			UserID:       userID,
			CommitmentID: ev.ID,
			Description:  data.Description,
			Amount:       data.Amount,
			Date:         isoDateOrEmpty(data.Date),
			Type:         "commitment",
		},
	}

	if err := a.index.Upsert(ctx, entry); err != nil {
		return "", fmt.Errorf("upsert commitment vector: %w", err)
	}

	// The mirror exists even if the back-reference fails to stick.
	if err := a.ledger.AttachVectorID(ctx, ev.ID, vectorID); err != nil {
		a.log.Warn().Err(err).Str("event_id", ev.ID).Msg("Failed to attach vector id")
	}

	return vectorID, nil
}

// handleBalanceUpdate appends a BALANCE_UPDATE event and overwrites the
// user's current balance, atomically at the storage layer.
func (a *Assistant) handleBalanceUpdate(ctx context.Context, userID, rawInput string, data *BalanceData) (*Result, error) {
	if data == nil {
		return nil, fmt.Errorf("balance update: missing payload")
	}
	if data.Balance < 0 {
		return nil, fmt.Errorf("balance update: balance must be non-negative, got %.2f", data.Balance)
	}

	ev := &store.Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		InputType: store.EventBalanceUpdate,
		Balance:   data.Balance,
		RawInput:  rawInput,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.ledger.UpdateBalance(ctx, ev, data.Balance); err != nil {
		return nil, fmt.Errorf("balance update: %w", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Balance updated to $%.2f", data.Balance),
		Data: map[string]interface{}{
			"id":      ev.ID,
			"balance": data.Balance,
		},
	}, nil
}

// handleQuestion reconciles the authoritative ledger view with advisory
// semantic context and produces a recommendation. Vector results are a
// context signal only; the arithmetic uses ledger data exclusively.
func (a *Assistant) handleQuestion(ctx context.Context, userID, rawInput string, data *QuestionData) (*Result, error) {
	if data == nil {
		return nil, fmt.Errorf("question: missing payload")
	}
	if data.Question == "" {
		return nil, fmt.Errorf("question: question text is required")
	}

	// 1. Authoritative balance; 0 when the user has no balance row.
	balance, err := a.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("question: read balance: %w", err)
	}

	// 2. Authoritative upcoming commitments, date ascending.
	upcoming, err := a.ledger.ListUpcomingCommitments(ctx, userID, time.Now().UTC(), 10)
	if err != nil {
		return nil, fmt.Errorf("question: list upcoming commitments: %w", err)
	}

	// 3. Advisory semantic context; degrades to empty on any failure.
	relevant := a.queryRelevant(ctx, userID, data.Question)

	// 4. Advice, with a deterministic arithmetic fallback inside.
	advice := a.advisor.Generate(ctx, data.Question, balance, upcoming, data.TargetAmount)

	// 5. Record the question regardless of how advice was produced.
	ev := &store.Event{
		ID:           uuid.NewString(),
		UserID:       userID,
		InputType:    store.EventQuestion,
		QuestionText: data.Question,
		RawInput:     rawInput,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.ledger.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("question: persist event: %w", err)
	}

	return &Result{
		Success: true,
		Message: "Question answered",
		Data: map[string]interface{}{
			"id":                                  ev.ID,
			"question":                            data.Question,
			"current_balance":                     balance,
			"upcoming_commitments_count":          len(upcoming),
			"relevant_commitments_from_vector_db": len(relevant),
		},
		Advice: advice,
	}, nil
}

func (a *Assistant) queryRelevant(ctx context.Context, userID, question string) []vector.Match {
	vec, err := a.embedder.Embed(question)
	if err != nil {
		a.log.Warn().Err(err).Msg("Question embedding failed")
		return nil
	}

	matches, err := a.index.Query(ctx, vec, userID, 3)
	if err != nil {
		a.log.Warn().Err(err).Msg("Semantic index query failed")
		return nil
	}
	return matches
}

// GetUserSummary returns the aggregate financial view for a user.
func (a *Assistant) GetUserSummary(ctx context.Context, userID string) (*Summary, error) {
	balance, err := a.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summary: read balance: %w", err)
	}

	commitments, err := a.ledger.ListRecentCommitments(ctx, userID, 10)
	if err != nil {
		return nil, fmt.Errorf("summary: list commitments: %w", err)
	}

	history, err := a.ledger.ListHistory(ctx, userID, 20)
	if err != nil {
		return nil, fmt.Errorf("summary: list history: %w", err)
	}

	summary := &Summary{
		CurrentBalance: balance,
		Commitments:    make([]map[string]interface{}, 0, len(commitments)),
		RecentHistory:  make([]map[string]interface{}, 0, len(history)),
	}

	for _, c := range commitments {
		summary.TotalCommitments += c.Amount
		summary.Commitments = append(summary.Commitments, map[string]interface{}{
			"description": c.Description,
			"amount":      c.Amount,
			"date":        isoDateOrNil(c.CommitmentDate),
		})
	}

	for _, h := range history {
		summary.RecentHistory = append(summary.RecentHistory, map[string]interface{}{
			"type":       h.InputType,
			"raw_input":  h.RawInput,
			"created_at": h.CreatedAt.Format(time.RFC3339),
		})
	}

	return summary, nil
}

// GetUserHistory returns the user's persisted events, most recent first.
// The limit is clamped to 1..200.
func (a *Assistant) GetUserHistory(ctx context.Context, userID string, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	events, err := a.ledger.ListHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return events, nil
}

func isoDateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func isoDateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
