package assistant

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/store"
)

// buildClassificationPrompt asks the model for a single strict-JSON object
// classifying the input into one of the three kinds with a kind-appropriate
// payload.
func buildClassificationPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Analyze this financial input and classify it into one of three types:\n")
	b.WriteString("1. FINANCIAL_COMMITMENT - Future spending plans (e.g., \"dinner Saturday 2500\")\n")
	b.WriteString("2. BALANCE_UPDATE - Current balance reporting (e.g., \"balance is 18000\")\n")
	b.WriteString("3. QUESTION - Financial questions (e.g., \"can I afford 5000 gadget?\")\n\n")

	b.WriteString(fmt.Sprintf("Input: %q\n\n", text))

	b.WriteString("Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString(`{
    "input_type": "FINANCIAL_COMMITMENT" | "BALANCE_UPDATE" | "QUESTION",
    "confidence": 0.0-1.0,
    "extracted_data": {
        "description": "what the expense is for (FINANCIAL_COMMITMENT only)",
        "amount": numeric_amount,
        "date": "ISO date string or null",
        "balance": numeric_balance (BALANCE_UPDATE only),
        "question": "full question text (QUESTION only)",
        "target_amount": numeric_amount_if_mentioned or null
    }
}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Amounts must be numeric (remove currency symbols).\n")
	b.WriteString("- Dates: resolve relative dates (today, tomorrow, this Saturday) to ISO format.\n")
	b.WriteString("- If uncertain, use the most likely type with lower confidence.\n")
	b.WriteString("- Return ONLY the JSON object, no Markdown, no extra text.\n")

	return b.String()
}

// buildAdvicePrompt frames the question inside the user's authoritative
// financial context. Only the first five upcoming commitments are listed.
func buildAdvicePrompt(question string, balance, totalUpcoming, available float64, upcoming []store.Event, target *float64) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("As a financial advisor, answer this question: %q\n\n", question))

	b.WriteString("User's Financial Context:\n")
	b.WriteString(fmt.Sprintf("- Current Balance: $%.2f\n", balance))
	b.WriteString(fmt.Sprintf("- Upcoming Commitments: $%.2f\n", totalUpcoming))
	b.WriteString(fmt.Sprintf("- Available Funds (after commitments): $%.2f\n", available))
	if target != nil {
		b.WriteString(fmt.Sprintf("- Target Purchase Amount: $%.2f\n", *target))
	}

	b.WriteString("\nUpcoming Commitments:\n")
	if len(upcoming) == 0 {
		b.WriteString("No upcoming commitments\n")
	}
	for i, ev := range upcoming {
		if i >= 5 {
			break
		}
		b.WriteString(fmt.Sprintf("- %s: $%.2f\n", ev.Description, ev.Amount))
	}

	b.WriteString("\nProvide:\n")
	b.WriteString("1. Direct answer to the question\n")
	b.WriteString("2. Brief reasoning based on their financial situation\n")
	b.WriteString("3. Practical recommendation\n")
	b.WriteString("4. If suggesting to wait, explain why\n\n")
	b.WriteString("Keep the response concise (2-3 sentences) but helpful and personalized.\n")

	return b.String()
}
