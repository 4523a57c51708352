package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Evaluation Report: %s\n\n", r.BatchID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Periods: %d | Entry strategies: %d | Exit strategies: %d\n\n",
		r.PeriodCount, r.EntryCount, r.ExitCount))

	// Batch Summary
	sb.WriteString("## Batch Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Runs | %d |\n", r.Summary.TotalRuns))
	sb.WriteString(fmt.Sprintf("| Failed Runs | %d |\n", r.Summary.FailedRuns))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.Summary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Earliest Period Start | %s |\n", r.Summary.PeriodStart.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Latest Period End | %s |\n", r.Summary.PeriodEnd.Format("2006-01-02")))
	sb.WriteString("\n")

	if len(r.Summary.RegimeCounts) > 0 {
		sb.WriteString("### Runs by Regime\n\n")
		sb.WriteString("| Regime | Runs |\n")
		sb.WriteString("|--------|------|\n")
		for _, rc := range r.Summary.RegimeCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", rc.Regime, rc.Runs))
		}
		sb.WriteString("\n")
	}

	// Recommendation
	sb.WriteString("## Recommended Combinations\n\n")
	if len(r.Recommendations) > 0 {
		sb.WriteString("| # | Entry | Exit | Avg Rank | Regimes |\n")
		sb.WriteString("|---|-------|------|----------|--------|\n")
		for i, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %d |\n",
				i+1, rec.EntryStrategy, rec.ExitStrategy, rec.AvgRank, rec.Regimes))
		}
	} else {
		sb.WriteString("No recommendation available: no runs under a known regime.\n")
	}
	sb.WriteString("\n")

	// Aggregates
	sb.WriteString("## Combination Performance by Regime\n\n")
	if len(r.Aggregates) > 0 {
		sb.WriteString("| Regime | Rank | Entry | Exit | Runs | Failed | AvgReturn | MedReturn | StdReturn | AvgDD | AvgWinRate | AvgTrades |\n")
		sb.WriteString("|--------|------|-------|------|------|--------|-----------|-----------|-----------|-------|------------|----------|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.1f |\n",
				a.Regime, a.Rank, a.EntryStrategy, a.ExitStrategy,
				a.Runs, a.FailedRuns, a.AvgReturn, a.MedReturn, a.StdReturn,
				a.AvgDrawdown, a.AvgWinRate, a.AvgTrades))
		}
	} else {
		sb.WriteString("No aggregates available.\n")
	}
	sb.WriteString("\n")

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Period | Entry | Exit | Regime | Return | MaxDD | WinRate | Trades | Days | Status |\n")
		sb.WriteString("|--------|-------|------|--------|--------|-------|---------|--------|------|--------|\n")
		for _, row := range r.Runs {
			status := "OK"
			if row.Failed {
				status = "FAILED"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %.4f | %.4f | %d | %d | %s |\n",
				row.PeriodName, row.EntryStrategy, row.ExitStrategy, row.Regime,
				row.TotalReturnPct, row.MaxDrawdownPct, row.WinRate,
				row.TotalTrades, row.DaysSimulated, status))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Failures
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Runs\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- %s (%s, %s/%s): %s\n",
				f.RunID, f.PeriodName, f.EntryStrategy, f.ExitStrategy, f.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
