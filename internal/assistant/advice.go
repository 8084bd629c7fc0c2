package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/rs/zerolog"
)

// AdviceGenerator produces a recommendation for a financial question. The
// primary path asks the generative backend; on any failure a deterministic
// arithmetic template takes over, so Generate always returns advice.
type AdviceGenerator struct {
	gen TextGenerator // nil disables the primary path
	log zerolog.Logger
}

// NewAdviceGenerator creates an advice generator.
func NewAdviceGenerator(gen TextGenerator, log zerolog.Logger) *AdviceGenerator {
	return &AdviceGenerator{gen: gen, log: log}
}

// Generate answers the question given the authoritative balance and upcoming
// commitments. The advisory vector context never enters this arithmetic.
func (g *AdviceGenerator) Generate(ctx context.Context, question string, balance float64, upcoming []store.Event, target *float64) string {
	var totalUpcoming float64
	for _, ev := range upcoming {
		totalUpcoming += ev.Amount
	}
	available := balance - totalUpcoming

	if g.gen != nil {
		prompt := buildAdvicePrompt(question, balance, totalUpcoming, available, upcoming, target)
		text, err := g.gen.GenerateText(ctx, prompt)
		if err == nil {
			return strings.TrimSpace(text)
		}
		g.log.Warn().Err(err).Msg("Advice generation failed, using fallback")
	}

	return fallbackAdvice(balance, totalUpcoming, available, target)
}

// fallbackAdvice states the arithmetic position: shortfall and a wait
// recommendation when the target exceeds available funds, otherwise the
// surplus and a buffer reminder.
func fallbackAdvice(balance, totalUpcoming, available float64, target *float64) string {
	if target != nil && *target > available {
		shortfall := *target - available
		return fmt.Sprintf(
			"Based on your balance of $%.2f and upcoming commitments of $%.2f, you have $%.2f available. "+
				"The $%.2f purchase exceeds your available funds by $%.2f. "+
				"Consider waiting until after your commitments are fulfilled.",
			balance, totalUpcoming, available, *target, shortfall,
		)
	}

	return fmt.Sprintf(
		"You have $%.2f available after upcoming commitments. "+
			"This purchase appears affordable, but ensure you maintain an emergency buffer.",
		available,
	)
}
