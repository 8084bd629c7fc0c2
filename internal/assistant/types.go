// Package assistant implements the classification-routing-reasoning pipeline:
// raw text is classified into a typed action, routed to exactly one handler,
// and answered from the authoritative ledger with advisory semantic context.
package assistant

import (
	"time"
)

// InputKind is the classified intent of a piece of input text.
type InputKind string

const (
	KindCommitment    InputKind = "FINANCIAL_COMMITMENT"
	KindBalanceUpdate InputKind = "BALANCE_UPDATE"
	KindQuestion      InputKind = "QUESTION"
)

// CommitmentData is the extracted payload for a future spending commitment.
type CommitmentData struct {
	Description string
	Amount      float64
	Date        *time.Time
}

// BalanceData is the extracted payload for a balance update.
type BalanceData struct {
	Balance float64
}

// QuestionData is the extracted payload for a financial question.
type QuestionData struct {
	Question     string
	TargetAmount *float64
}

// ClassifiedInput is the transient, validated output of the classifier.
// Exactly one of the payload fields matching Kind is non-nil; the router
// never re-parses raw extraction output.
type ClassifiedInput struct {
	Kind       InputKind
	Confidence float64

	Commitment *CommitmentData
	Balance    *BalanceData
	Question   *QuestionData
}

// Result is the uniform envelope returned by every handler.
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Advice  string                 `json:"advice,omitempty"`
}

// Summary is the aggregate financial view returned for a user.
type Summary struct {
	CurrentBalance   float64                  `json:"current_balance"`
	TotalCommitments float64                  `json:"total_commitments"`
	Commitments      []map[string]interface{} `json:"commitments"`
	RecentHistory    []map[string]interface{} `json:"recent_history"`
}
