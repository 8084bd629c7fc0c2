package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/vector"
)

// mockLedger is a function-field mock for the Ledger interface.
type mockLedger struct {
	InsertEventFunc             func(ctx context.Context, ev *store.Event) error
	AttachVectorIDFunc          func(ctx context.Context, eventID, vectorID string) error
	UpdateBalanceFunc           func(ctx context.Context, ev *store.Event, balance float64) error
	GetBalanceFunc              func(ctx context.Context, userID string) (float64, error)
	ListUpcomingCommitmentsFunc func(ctx context.Context, userID string, now time.Time, limit int) ([]store.Event, error)
	ListRecentCommitmentsFunc   func(ctx context.Context, userID string, limit int) ([]store.Event, error)
	ListHistoryFunc             func(ctx context.Context, userID string, limit int) ([]store.Event, error)
}

func (m *mockLedger) InsertEvent(ctx context.Context, ev *store.Event) error {
	if m.InsertEventFunc != nil {
		return m.InsertEventFunc(ctx, ev)
	}
	return nil
}

func (m *mockLedger) AttachVectorID(ctx context.Context, eventID, vectorID string) error {
	if m.AttachVectorIDFunc != nil {
		return m.AttachVectorIDFunc(ctx, eventID, vectorID)
	}
	return nil
}

func (m *mockLedger) UpdateBalance(ctx context.Context, ev *store.Event, balance float64) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, ev, balance)
	}
	return nil
}

func (m *mockLedger) GetBalance(ctx context.Context, userID string) (float64, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockLedger) ListUpcomingCommitments(ctx context.Context, userID string, now time.Time, limit int) ([]store.Event, error) {
	if m.ListUpcomingCommitmentsFunc != nil {
		return m.ListUpcomingCommitmentsFunc(ctx, userID, now, limit)
	}
	return nil, nil
}

func (m *mockLedger) ListRecentCommitments(ctx context.Context, userID string, limit int) ([]store.Event, error) {
	if m.ListRecentCommitmentsFunc != nil {
		return m.ListRecentCommitmentsFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockLedger) ListHistory(ctx context.Context, userID string, limit int) ([]store.Event, error) {
	if m.ListHistoryFunc != nil {
		return m.ListHistoryFunc(ctx, userID, limit)
	}
	return nil, nil
}

// failingIndex implements vector.Index and fails every call.
type failingIndex struct{}

func (failingIndex) Upsert(ctx context.Context, entry vector.Entry) error {
	return fmt.Errorf("index unavailable")
}

func (failingIndex) Query(ctx context.Context, vec []float64, userID string, topK int) ([]vector.Match, error) {
	return nil, fmt.Errorf("index unavailable")
}

func (failingIndex) Delete(ctx context.Context, id string) error {
	return fmt.Errorf("index unavailable")
}

func newTestAssistant(ledger Ledger, index vector.Index) *Assistant {
	nop := zerolog.Nop()
	return New(
		NewClassifier(nil, nop),
		NewAdviceGenerator(nil, nop),
		ledger,
		index,
		vector.NewHashEmbedder(),
		nop,
	)
}

func TestRouteUnknownKind(t *testing.T) {
	a := newTestAssistant(&mockLedger{}, vector.NewInMemoryIndex())

	result, err := a.route(context.Background(), "u1", "whatever", &ClassifiedInput{Kind: "SOMETHING_ELSE"})
	if err != nil {
		t.Fatalf("route returned error: %v", err)
	}
	if result.Success {
		t.Error("expected failure envelope for unknown kind")
	}
	if result.Message != "Unable to classify input" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestCommitmentMirroredIntoIndex(t *testing.T) {
	index := vector.NewInMemoryIndex()
	var attachedVectorID string
	ledger := &mockLedger{
		AttachVectorIDFunc: func(ctx context.Context, eventID, vectorID string) error {
			attachedVectorID = vectorID
			return nil
		},
	}
	a := newTestAssistant(ledger, index)

	result, err := a.route(context.Background(), "u1", "dinner Saturday 2500", &ClassifiedInput{
		Kind:       KindCommitment,
		Confidence: 0.9,
		Commitment: &CommitmentData{Description: "dinner Saturday", Amount: 2500},
	})
	if err != nil {
		t.Fatalf("route returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}

	if index.Len() != 1 {
		t.Errorf("index entries = %d, want 1", index.Len())
	}
	vectorID, ok := result.Data["vector_id"].(string)
	if !ok || vectorID == "" {
		t.Error("expected vector_id in envelope data")
	}
	if attachedVectorID != vectorID {
		t.Errorf("attached vector id %q != envelope vector id %q", attachedVectorID, vectorID)
	}
	if !strings.HasPrefix(vectorID, "u1_") {
		t.Errorf("vector id %q should be derived from user id", vectorID)
	}
}

func TestCommitmentSurvivesIndexFailure(t *testing.T) {
	inserted := false
	ledger := &mockLedger{
		InsertEventFunc: func(ctx context.Context, ev *store.Event) error {
			inserted = true
			return nil
		},
	}
	a := newTestAssistant(ledger, failingIndex{})

	result, err := a.route(context.Background(), "u1", "dinner 2500", &ClassifiedInput{
		Kind:       KindCommitment,
		Commitment: &CommitmentData{Description: "dinner", Amount: 2500},
	})
	if err != nil {
		t.Fatalf("index failure must not fail the request: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if !inserted {
		t.Error("ledger event must be persisted despite index failure")
	}
	if _, ok := result.Data["vector_id"]; ok {
		t.Error("vector_id must be absent when mirroring failed")
	}
}

func TestCommitmentValidation(t *testing.T) {
	a := newTestAssistant(&mockLedger{}, vector.NewInMemoryIndex())
	ctx := context.Background()

	tests := []struct {
		name string
		data *CommitmentData
	}{
		{"missing payload", nil},
		{"empty description", &CommitmentData{Description: "", Amount: 100}},
		{"zero amount", &CommitmentData{Description: "dinner", Amount: 0}},
		{"negative amount", &CommitmentData{Description: "dinner", Amount: -50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.handleCommitment(ctx, "u1", "raw", tt.data)
			if err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBalanceValidation(t *testing.T) {
	a := newTestAssistant(&mockLedger{}, vector.NewInMemoryIndex())

	if _, err := a.handleBalanceUpdate(context.Background(), "u1", "raw", nil); err == nil {
		t.Error("expected error for missing payload")
	}
	if _, err := a.handleBalanceUpdate(context.Background(), "u1", "raw", &BalanceData{Balance: -1}); err == nil {
		t.Error("expected error for negative balance")
	}
}

func TestLedgerFailurePropagates(t *testing.T) {
	ledger := &mockLedger{
		InsertEventFunc: func(ctx context.Context, ev *store.Event) error {
			return fmt.Errorf("disk full")
		},
	}
	a := newTestAssistant(ledger, vector.NewInMemoryIndex())

	_, err := a.handleCommitment(context.Background(), "u1", "raw", &CommitmentData{
		Description: "dinner",
		Amount:      100,
	})
	if err == nil {
		t.Fatal("ledger write failure must fail the request")
	}
}

func TestQuestionDegradesOnIndexFailure(t *testing.T) {
	ledger := &mockLedger{
		GetBalanceFunc: func(ctx context.Context, userID string) (float64, error) {
			return 5000, nil
		},
	}
	a := newTestAssistant(ledger, failingIndex{})

	result, err := a.handleQuestion(context.Background(), "u1", "raw", &QuestionData{
		Question: "can I afford it?",
	})
	if err != nil {
		t.Fatalf("index failure must not fail the question: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if count := result.Data["relevant_commitments_from_vector_db"].(int); count != 0 {
		t.Errorf("relevant count = %d, want 0 on index failure", count)
	}
	if result.Advice == "" {
		t.Error("expected fallback advice")
	}
}

// TestProcessInputEndToEnd runs the full pipeline over a real sqlite ledger
// and an in-memory index, with no generative backend at all.
func TestProcessInputEndToEnd(t *testing.T) {
	ledger, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer ledger.Close()

	a := newTestAssistant(ledger, vector.NewInMemoryIndex())
	ctx := context.Background()

	// 1. Report a balance.
	res, err := a.ProcessInput(ctx, "u1", "balance is 2000")
	if err != nil {
		t.Fatalf("balance update: %v", err)
	}
	if !res.Success {
		t.Fatalf("balance update failed: %s", res.Message)
	}

	// 2. Ask about an unaffordable purchase.
	res, err = a.ProcessInput(ctx, "u1", "can I afford a 3000 gadget?")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if !res.Success {
		t.Fatalf("question failed: %s", res.Message)
	}
	if balance := res.Data["current_balance"].(float64); balance != 2000 {
		t.Errorf("current_balance = %v, want 2000", balance)
	}
	if !strings.Contains(res.Advice, "exceeds") {
		t.Errorf("advice should indicate the purchase is unaffordable, got: %s", res.Advice)
	}

	// 3. Record a commitment.
	res, err = a.ProcessInput(ctx, "u1", "dinner Saturday 2500")
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if !res.Success {
		t.Fatalf("commitment failed: %s", res.Message)
	}

	// 4. Check the aggregate view.
	summary, err := a.GetUserSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.CurrentBalance != 2000 {
		t.Errorf("summary balance = %v, want 2000", summary.CurrentBalance)
	}
	if summary.TotalCommitments != 2500 {
		t.Errorf("total commitments = %v, want 2500", summary.TotalCommitments)
	}
	if len(summary.RecentHistory) != 3 {
		t.Errorf("history entries = %d, want 3", len(summary.RecentHistory))
	}

	// 5. History is capped and most recent first.
	events, err := a.GetUserHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("history events = %d, want 3", len(events))
	}
}

func TestGetUserSummaryEmptyUser(t *testing.T) {
	ledger, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer ledger.Close()

	a := newTestAssistant(ledger, vector.NewInMemoryIndex())

	summary, err := a.GetUserSummary(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.CurrentBalance != 0 {
		t.Errorf("balance = %v, want 0", summary.CurrentBalance)
	}
	if len(summary.Commitments) != 0 {
		t.Errorf("commitments = %d, want 0", len(summary.Commitments))
	}
	if len(summary.RecentHistory) != 0 {
		t.Errorf("history = %d, want 0", len(summary.RecentHistory))
	}
}
