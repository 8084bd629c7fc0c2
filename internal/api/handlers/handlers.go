package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/store"
)

const maxInputLength = 1000

// Service is the pipeline surface the HTTP layer needs.
// *assistant.Assistant implements it.
type Service interface {
	ProcessInput(ctx context.Context, userID, text string) (*assistant.Result, error)
	GetUserSummary(ctx context.Context, userID string) (*assistant.Summary, error)
	GetUserHistory(ctx context.Context, userID string, limit int) ([]store.Event, error)
}

// FinanceHandler handles the finance endpoints.
type FinanceHandler struct {
	svc       Service
	publisher jobs.Publisher // nil when the analytics archive is disabled
	log       zerolog.Logger
}

// NewFinanceHandler creates a new finance handler.
func NewFinanceHandler(svc Service, publisher jobs.Publisher, log zerolog.Logger) *FinanceHandler {
	return &FinanceHandler{
		svc:       svc,
		publisher: publisher,
		log:       log,
	}
}

type processRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Process handles POST /api/v1/finance/process
func (h *FinanceHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Text) == 0 || len(req.Text) > maxInputLength {
		middleware.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("text must be between 1 and %d characters", maxInputLength))
		return
	}

	result, err := h.svc.ProcessInput(r.Context(), req.UserID, req.Text)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to process input")
		middleware.WriteError(w, http.StatusInternalServerError, "Processing failed: "+err.Error())
		return
	}

	h.publishExport(r.Context(), req.UserID, result)

	middleware.WriteJSON(w, http.StatusOK, result)
}

// publishExport enqueues the archived copy of a successfully persisted event.
// Best-effort: a full queue or closed publisher only logs.
func (h *FinanceHandler) publishExport(ctx context.Context, userID string, result *assistant.Result) {
	if h.publisher == nil || result == nil || !result.Success {
		return
	}

	eventID, ok := result.Data["id"].(string)
	if !ok || eventID == "" {
		return
	}

	job := &jobs.ExportEventJob{
		EventID: eventID,
		UserID:  userID,
	}
	if err := h.publisher.PublishExportEvent(ctx, job); err != nil {
		h.log.Warn().Err(err).Str("event_id", eventID).Msg("Failed to enqueue archive export")
	}
}

// Summary handles GET /api/v1/finance/summary/{user_id}
func (h *FinanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	summary, err := h.svc.GetUserSummary(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to retrieve summary: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// eventResponse is the wire shape of one history record.
type eventResponse struct {
	ID             string   `json:"id"`
	InputType      string   `json:"input_type"`
	Description    *string  `json:"description"`
	Amount         *float64 `json:"amount"`
	Balance        *float64 `json:"balance"`
	QuestionText   *string  `json:"question_text,omitempty"`
	CommitmentDate *string  `json:"commitment_date,omitempty"`
	RawInput       string   `json:"raw_input"`
	CreatedAt      string   `json:"created_at"`
}

// History handles GET /api/v1/finance/history/{user_id}?limit=50
func (h *FinanceHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	events, err := h.svc.GetUserHistory(r.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to read history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to retrieve history: "+err.Error())
		return
	}

	records := make([]eventResponse, 0, len(events))
	for i := range events {
		records = append(records, toEventResponse(&events[i]))
	}

	middleware.WriteJSON(w, http.StatusOK, records)
}

func toEventResponse(ev *store.Event) eventResponse {
	resp := eventResponse{
		ID:        ev.ID,
		InputType: ev.InputType,
		RawInput:  ev.RawInput,
		CreatedAt: ev.CreatedAt.Format(time.RFC3339),
	}

	if ev.Description != "" {
		resp.Description = &ev.Description
	}
	if ev.Amount != 0 {
		resp.Amount = &ev.Amount
	}
	if ev.InputType == store.EventBalanceUpdate {
		resp.Balance = &ev.Balance
	}
	if ev.QuestionText != "" {
		resp.QuestionText = &ev.QuestionText
	}
	if ev.CommitmentDate != nil {
		date := ev.CommitmentDate.Format(time.RFC3339)
		resp.CommitmentDate = &date
	}

	return resp
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "AI Finance Assistant API",
		"health":  "/health",
	})
}
