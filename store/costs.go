package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quickjot/quickjot/note"
)

// breakdownDays caps the daily breakdown to the most recent days.
const breakdownDays = 7

// DailyCost aggregates one calendar day of the cost ledger.
type DailyCost struct {
	Date     string  `json:"date"`
	Cost     float64 `json:"cost"`
	Requests int     `json:"requests"`
}

// CostSummary aggregates the trailing window of the cost ledger.
type CostSummary struct {
	TotalCost      float64     `json:"totalCost"`
	TotalRequests  int         `json:"totalRequests"`
	DailyBreakdown []DailyCost `json:"dailyBreakdown"`
}

// Record appends one entry to the cost ledger. Implements llm.CostRecorder.
// The ledger is append-only; rows are never mutated.
func (d *DB) Record(ctx context.Context, entry note.CostEntry) error {
	date := entry.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO llm_costs (endpoint, model, input_tokens, output_tokens, cost_usd, date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Endpoint, entry.Model, entry.InputTokens, entry.OutputTokens, entry.CostUSD, date)
	if err != nil {
		return fmt.Errorf("recording cost entry: %w", err)
	}
	return nil
}

// Costs returns the aggregated summary over the trailing 30 days. The
// daily breakdown covers at most the 7 most recent days, newest first.
func (d *DB) Costs(ctx context.Context) (*CostSummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")

	rows, err := d.conn.QueryContext(ctx, `
		SELECT date, SUM(cost_usd), COUNT(*)
		FROM llm_costs
		WHERE date >= ?
		GROUP BY date
		ORDER BY date DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("querying cost ledger: %w", err)
	}
	defer rows.Close()

	summary := &CostSummary{DailyBreakdown: []DailyCost{}}
	for rows.Next() {
		var day DailyCost
		if err := rows.Scan(&day.Date, &day.Cost, &day.Requests); err != nil {
			return nil, fmt.Errorf("scanning cost row: %w", err)
		}
		summary.TotalCost += day.Cost
		summary.TotalRequests += day.Requests
		if len(summary.DailyBreakdown) < breakdownDays {
			summary.DailyBreakdown = append(summary.DailyBreakdown, day)
		}
	}
	return summary, rows.Err()
}
