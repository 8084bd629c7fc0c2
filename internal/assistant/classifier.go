package assistant

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Classifier turns raw text into a ClassifiedInput. The primary path asks the
// generative backend for strict JSON; any backend, parse, or schema failure
// drops to a deterministic keyword fallback that never fails.
type Classifier struct {
	gen TextGenerator // nil disables the primary path entirely
	log zerolog.Logger
}

// NewClassifier creates a classifier. Pass a nil generator to run
// fallback-only, e.g. in offline or test environments.
func NewClassifier(gen TextGenerator, log zerolog.Logger) *Classifier {
	return &Classifier{gen: gen, log: log}
}

// Classify returns exactly one of the three kinds with a decoded payload.
// It never returns an error: the fallback path is total.
func (c *Classifier) Classify(ctx context.Context, text string) *ClassifiedInput {
	if c.gen != nil {
		in, err := c.classifyWithModel(ctx, text)
		if err == nil {
			return in
		}
		c.log.Warn().Err(err).Msg("Primary classification failed, using fallback")
	}
	return c.fallback(text)
}

// classifierResponse is the wire shape the model is prompted to produce.
type classifierResponse struct {
	InputType  string          `json:"input_type"`
	Confidence float64         `json:"confidence"`
	Extracted  json.RawMessage `json:"extracted_data"`
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (*ClassifiedInput, error) {
	raw, err := c.gen.GenerateText(ctx, buildClassificationPrompt(text))
	if err != nil {
		return nil, err
	}

	var resp classifierResponse
	if err := json.Unmarshal([]byte(extractJSONRegion(raw)), &resp); err != nil {
		return nil, err
	}

	return decodeClassified(resp, text)
}

// extractJSONRegion returns the region between the first '{' and the last '}'
// of s. Models sometimes wrap JSON in prose or code fences; if no braces are
// found the whole string is returned for the caller to attempt parsing.
func extractJSONRegion(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}

// decodeClassified maps the wire response onto a typed payload. Missing
// required fields or an unknown input_type are schema violations that send
// the caller to the fallback path. Value constraints (positive amounts etc.)
// are the handlers' concern.
func decodeClassified(resp classifierResponse, text string) (*ClassifiedInput, error) {
	in := &ClassifiedInput{
		Kind:       InputKind(resp.InputType),
		Confidence: resp.Confidence,
	}

	switch in.Kind {
	case KindCommitment:
		var wire struct {
			Description string   `json:"description"`
			Amount      *float64 `json:"amount"`
			Date        *string  `json:"date"`
		}
		if err := json.Unmarshal(resp.Extracted, &wire); err != nil {
			return nil, err
		}
		if strings.TrimSpace(wire.Description) == "" || wire.Amount == nil {
			return nil, errSchema("commitment payload missing description or amount")
		}
		in.Commitment = &CommitmentData{
			Description: wire.Description,
			Amount:      *wire.Amount,
			Date:        parseDate(wire.Date),
		}

	case KindBalanceUpdate:
		var wire struct {
			Balance *float64 `json:"balance"`
		}
		if err := json.Unmarshal(resp.Extracted, &wire); err != nil {
			return nil, err
		}
		if wire.Balance == nil {
			return nil, errSchema("balance payload missing balance")
		}
		in.Balance = &BalanceData{Balance: *wire.Balance}

	case KindQuestion:
		var wire struct {
			Question     string   `json:"question"`
			TargetAmount *float64 `json:"target_amount"`
		}
		if err := json.Unmarshal(resp.Extracted, &wire); err != nil {
			return nil, err
		}
		if strings.TrimSpace(wire.Question) == "" {
			wire.Question = text
		}
		in.Question = &QuestionData{
			Question:     wire.Question,
			TargetAmount: wire.TargetAmount,
		}

	default:
		return nil, errSchema("unknown input_type " + resp.InputType)
	}

	return in, nil
}

type errSchema string

func (e errSchema) Error() string { return string(e) }

var (
	balanceKeywords  = []string{"balance", "have", "now", "current"}
	questionKeywords = []string{"can i", "should i", "afford", "?", "how much"}
)

// fallback classifies by keywords alone. Balance vocabulary wins over
// question vocabulary, and anything else is treated as a commitment.
func (c *Classifier) fallback(text string) *ClassifiedInput {
	lower := strings.ToLower(text)

	if containsAny(lower, balanceKeywords) {
		return &ClassifiedInput{
			Kind:       KindBalanceUpdate,
			Confidence: 0.7,
			Balance:    &BalanceData{Balance: extractAmount(text)},
		}
	}

	if containsAny(lower, questionKeywords) {
		q := &QuestionData{Question: text}
		if amount := extractAmount(text); amount > 0 {
			q.TargetAmount = &amount
		}
		return &ClassifiedInput{
			Kind:       KindQuestion,
			Confidence: 0.7,
			Question:   q,
		}
	}

	return &ClassifiedInput{
		Kind:       KindCommitment,
		Confidence: 0.6,
		Commitment: &CommitmentData{
			Description: text,
			Amount:      extractAmount(text),
		},
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// extractAmount finds the last numeric substring in the text, after stripping
// thousands separators. Amounts conventionally trail short financial
// utterances, so the last number is the best guess. Returns 0 if none exist.
func extractAmount(text string) float64 {
	stripped := strings.ReplaceAll(text, ",", "")
	matches := amountPattern.FindAllString(stripped, -1)
	if len(matches) == 0 {
		return 0
	}

	amount, err := strconv.ParseFloat(matches[len(matches)-1], 64)
	if err != nil {
		return 0
	}
	return amount
}

// parseDate accepts the date formats the model tends to emit. Unparsable
// dates degrade to absent; date resolution is best-effort by contract.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" || *s == "null" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
