package assistant

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// mockGenerator is a function-field mock for the TextGenerator interface.
type mockGenerator struct {
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt)
	}
	return "", fmt.Errorf("not implemented")
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"dinner Saturday 2500", 2500.0},
		{"balance is 18,000.50", 18000.50},
		{"no digits here", 0.0},
		{"", 0.0},
		{"pay 100 then 250.75", 250.75},
		{"1,000,000 lottery", 1000000.0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := extractAmount(tt.text)
			if got != tt.want {
				t.Errorf("extractAmount(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractJSONRegion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare json",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json wrapped in prose",
			input: "Here is the result:\n{\"a\": 1}\nHope that helps!",
			want:  `{"a": 1}`,
		},
		{
			name:  "code fences",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "no braces returns input",
			input: "not json at all",
			want:  "not json at all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSONRegion(tt.input)
			if got != tt.want {
				t.Errorf("extractJSONRegion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFallbackClassification(t *testing.T) {
	c := NewClassifier(nil, zerolog.Nop())

	tests := []struct {
		name           string
		text           string
		wantKind       InputKind
		wantConfidence float64
	}{
		{
			name:           "balance vocabulary",
			text:           "balance is 18,000.50",
			wantKind:       KindBalanceUpdate,
			wantConfidence: 0.7,
		},
		{
			name:           "have implies balance",
			text:           "I have 5000 in my account",
			wantKind:       KindBalanceUpdate,
			wantConfidence: 0.7,
		},
		{
			name:           "question mark",
			text:           "can I afford a 3000 gadget?",
			wantKind:       KindQuestion,
			wantConfidence: 0.7,
		},
		{
			name:           "afford without question mark",
			text:           "afford new laptop 4000",
			wantKind:       KindQuestion,
			wantConfidence: 0.7,
		},
		{
			name:           "default commitment",
			text:           "dinner Saturday 2500",
			wantKind:       KindCommitment,
			wantConfidence: 0.6,
		},
		{
			name:           "empty text still classifies",
			text:           "",
			wantKind:       KindCommitment,
			wantConfidence: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.text)

			if got.Kind != tt.wantKind {
				t.Fatalf("Classify(%q).Kind = %v, want %v", tt.text, got.Kind, tt.wantKind)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Classify(%q).Confidence = %v, want %v", tt.text, got.Confidence, tt.wantConfidence)
			}

			// Exactly the payload matching the kind must be set.
			switch got.Kind {
			case KindCommitment:
				if got.Commitment == nil || got.Balance != nil || got.Question != nil {
					t.Error("expected only the commitment payload to be set")
				}
			case KindBalanceUpdate:
				if got.Balance == nil || got.Commitment != nil || got.Question != nil {
					t.Error("expected only the balance payload to be set")
				}
			case KindQuestion:
				if got.Question == nil || got.Commitment != nil || got.Balance != nil {
					t.Error("expected only the question payload to be set")
				}
			}
		})
	}
}

func TestFallbackPayloads(t *testing.T) {
	c := NewClassifier(nil, zerolog.Nop())
	ctx := context.Background()

	balance := c.Classify(ctx, "balance is 18,000.50")
	if balance.Balance.Balance != 18000.50 {
		t.Errorf("balance payload = %v, want 18000.50", balance.Balance.Balance)
	}

	question := c.Classify(ctx, "can I afford a 3000 gadget?")
	if question.Question.Question != "can I afford a 3000 gadget?" {
		t.Errorf("question payload = %q, want full text", question.Question.Question)
	}
	if question.Question.TargetAmount == nil || *question.Question.TargetAmount != 3000 {
		t.Errorf("target amount = %v, want 3000", question.Question.TargetAmount)
	}

	noAmount := c.Classify(ctx, "should i quit my job?")
	if noAmount.Question.TargetAmount != nil {
		t.Errorf("target amount = %v, want absent", *noAmount.Question.TargetAmount)
	}

	commitment := c.Classify(ctx, "dinner Saturday 2500")
	if commitment.Commitment.Description != "dinner Saturday 2500" {
		t.Errorf("description = %q, want full text", commitment.Commitment.Description)
	}
	if commitment.Commitment.Amount != 2500 {
		t.Errorf("amount = %v, want 2500", commitment.Commitment.Amount)
	}
	if commitment.Commitment.Date != nil {
		t.Errorf("date = %v, want absent", commitment.Commitment.Date)
	}
}

func TestClassifyWithModel(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		wantKind InputKind
		// wantFallback means the result must carry a fallback confidence
		wantFallback bool
	}{
		{
			name: "valid commitment wrapped in prose",
			response: "Sure! Here is the classification:\n" +
				`{"input_type": "FINANCIAL_COMMITMENT", "confidence": 0.95, "extracted_data": {"description": "dinner with friends", "amount": 2500, "date": "2026-09-05"}}`,
			wantKind: KindCommitment,
		},
		{
			name:     "valid balance update",
			response: `{"input_type": "BALANCE_UPDATE", "confidence": 0.9, "extracted_data": {"balance": 18000.5}}`,
			wantKind: KindBalanceUpdate,
		},
		{
			name:     "valid question",
			response: `{"input_type": "QUESTION", "confidence": 0.85, "extracted_data": {"question": "can I afford it?", "target_amount": 3000}}`,
			wantKind: KindQuestion,
		},
		{
			name:         "garbage response falls back",
			response:     "I cannot classify this input.",
			wantKind:     KindBalanceUpdate, // "balance is 2000" hits balance keywords
			wantFallback: true,
		},
		{
			name:         "unknown input_type falls back",
			response:     `{"input_type": "SOMETHING_ELSE", "confidence": 0.9, "extracted_data": {}}`,
			wantKind:     KindBalanceUpdate,
			wantFallback: true,
		},
		{
			name:         "missing required field falls back",
			response:     `{"input_type": "FINANCIAL_COMMITMENT", "confidence": 0.9, "extracted_data": {"amount": 100}}`,
			wantKind:     KindBalanceUpdate,
			wantFallback: true,
		},
		{
			name:         "backend error falls back",
			err:          fmt.Errorf("backend unavailable"),
			wantKind:     KindBalanceUpdate,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
					return tt.response, tt.err
				},
			}
			c := NewClassifier(gen, zerolog.Nop())

			got := c.Classify(context.Background(), "balance is 2000")

			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantFallback && got.Confidence != 0.7 {
				t.Errorf("Confidence = %v, want fallback 0.7", got.Confidence)
			}
		})
	}
}

func TestClassifyWithModelParsesDate(t *testing.T) {
	gen := &mockGenerator{
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"input_type": "FINANCIAL_COMMITMENT", "confidence": 0.9, "extracted_data": {"description": "rent", "amount": 1200, "date": "2026-10-01"}}`, nil
		},
	}
	c := NewClassifier(gen, zerolog.Nop())

	got := c.Classify(context.Background(), "rent on october first 1200")
	if got.Commitment == nil {
		t.Fatal("expected commitment payload")
	}
	if got.Commitment.Date == nil {
		t.Fatal("expected parsed date")
	}
	if got.Commitment.Date.Format("2006-01-02") != "2026-10-01" {
		t.Errorf("date = %v, want 2026-10-01", got.Commitment.Date)
	}
}
