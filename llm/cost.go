package llm

import (
	"context"
	"strings"
	"time"

	"github.com/quickjot/quickjot/note"
)

// Price is the per-token USD cost for one model.
type Price struct {
	// InputPerToken is the cost of one prompt token.
	InputPerToken float64

	// OutputPerToken is the cost of one completion token.
	OutputPerToken float64
}

// DefaultPricing holds the fixed per-token price table.
// gpt-4o: $0.0025 per 1K input tokens, $0.01 per 1K output tokens.
var DefaultPricing = map[string]Price{
	"gpt-4o": {
		InputPerToken:  0.0025 / 1000,
		OutputPerToken: 0.01 / 1000,
	},
	"gpt-4o-mini": {
		InputPerToken:  0.00015 / 1000,
		OutputPerToken: 0.0006 / 1000,
	},
}

// CostRecorder persists cost ledger entries. The client invokes it on a
// detached goroutine; implementations must tolerate concurrent calls.
type CostRecorder interface {
	Record(ctx context.Context, entry note.CostEntry) error
}

// EstimateTokens approximates the token count of text using the standard
// 1-token-per-4-characters heuristic. Exactness is not required; the cost
// ledger is a budget signal, not a billing system.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// buildCostEntry computes the estimated cost entry for a completed call.
func buildCostEntry(caller, model string, messages []Message, output string, pricing map[string]Price, now time.Time) note.CostEntry {
	contents := make([]string, len(messages))
	for i, msg := range messages {
		contents[i] = msg.Content
	}

	inputTokens := EstimateTokens(strings.Join(contents, " "))
	outputTokens := EstimateTokens(output)

	price := pricing[model]
	cost := float64(inputTokens)*price.InputPerToken + float64(outputTokens)*price.OutputPerToken

	return note.CostEntry{
		Endpoint:     caller,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Date:         now.UTC().Format("2006-01-02"),
	}
}
