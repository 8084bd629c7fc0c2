package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/rs/zerolog"
)

func TestFallbackAdviceShortfall(t *testing.T) {
	g := NewAdviceGenerator(nil, zerolog.Nop())

	upcoming := []store.Event{
		{Description: "rent", Amount: 2000},
		{Description: "insurance", Amount: 1500},
	}
	target := 8000.0

	advice := g.Generate(context.Background(), "can I afford it?", 10000, upcoming, &target)

	// available = 10000 - 3500 = 6500, shortfall = 1500
	if !strings.Contains(advice, "$6500.00") {
		t.Errorf("advice should state available funds of $6500.00, got: %s", advice)
	}
	if !strings.Contains(advice, "$1500.00") {
		t.Errorf("advice should state the shortfall of $1500.00, got: %s", advice)
	}
	if !strings.Contains(advice, "waiting") {
		t.Errorf("advice should recommend waiting, got: %s", advice)
	}
}

func TestFallbackAdviceAffordable(t *testing.T) {
	g := NewAdviceGenerator(nil, zerolog.Nop())

	upcoming := []store.Event{{Description: "rent", Amount: 2000}}
	target := 5000.0

	advice := g.Generate(context.Background(), "can I afford it?", 10000, upcoming, &target)

	if !strings.Contains(advice, "$8000.00") {
		t.Errorf("advice should state available funds of $8000.00, got: %s", advice)
	}
	if !strings.Contains(advice, "affordable") {
		t.Errorf("advice should state the purchase is affordable, got: %s", advice)
	}
	if !strings.Contains(advice, "buffer") {
		t.Errorf("advice should mention a buffer, got: %s", advice)
	}
}

func TestFallbackAdviceWithoutTarget(t *testing.T) {
	g := NewAdviceGenerator(nil, zerolog.Nop())

	advice := g.Generate(context.Background(), "how am I doing?", 3000, nil, nil)

	if !strings.Contains(advice, "$3000.00") {
		t.Errorf("advice should state available funds of $3000.00, got: %s", advice)
	}
}

func TestGenerateUsesBackend(t *testing.T) {
	gen := &mockGenerator{
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "Current Balance: $10000.00") {
				t.Errorf("prompt missing balance context: %s", prompt)
			}
			return "  Yes, go ahead.  \n", nil
		},
	}
	g := NewAdviceGenerator(gen, zerolog.Nop())

	advice := g.Generate(context.Background(), "can I afford it?", 10000, nil, nil)
	if advice != "Yes, go ahead." {
		t.Errorf("advice = %q, want trimmed backend response", advice)
	}
}

func TestGenerateFallsBackOnBackendError(t *testing.T) {
	gen := &mockGenerator{
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", fmt.Errorf("backend down")
		},
	}
	g := NewAdviceGenerator(gen, zerolog.Nop())

	target := 500.0
	advice := g.Generate(context.Background(), "can I afford it?", 1000, nil, &target)

	if !strings.Contains(advice, "affordable") {
		t.Errorf("expected deterministic fallback advice, got: %s", advice)
	}
}
