package reporting

import (
	"fmt"
	"strings"

	"portfolio-backtest-lab/internal/domain"
)

// RenderRunsCSV renders per-run rows as CSV string.
func RenderRunsCSV(rows []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,period_name,entry_strategy,exit_strategy,regime,")
	sb.WriteString("total_return_pct,max_drawdown_pct,win_rate,total_trades,days_simulated,failed\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%.6f,%.6f,%.6f,%d,%d,%t\n",
			r.RunID,
			r.PeriodName,
			r.EntryStrategy,
			r.ExitStrategy,
			r.Regime,
			r.TotalReturnPct,
			r.MaxDrawdownPct,
			r.WinRate,
			r.TotalTrades,
			r.DaysSimulated,
			r.Failed,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders trade records as CSV string.
func RenderTradesCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,instrument_id,entry_date,entry_price,quantity,")
	sb.WriteString("exit_date,exit_price,exit_reason,holding_days,return_pct,return_value\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%d,%s,%.6f,%s,%d,%.6f,%.6f\n",
			t.TradeID,
			t.RunID,
			t.InstrumentID,
			t.EntryDate.Format("2006-01-02"),
			t.EntryPrice,
			t.Quantity,
			t.ExitDate.Format("2006-01-02"),
			t.ExitPrice,
			t.ExitReason,
			t.HoldingDays,
			t.ReturnPct,
			t.ReturnValue,
		))
	}

	return sb.String()
}

// RenderAggregatesCSV renders ranked combo aggregates as CSV string.
func RenderAggregatesCSV(aggs []*domain.ComboAggregate) string {
	var sb strings.Builder

	sb.WriteString("entry_strategy,exit_strategy,regime,rank,runs,failed_runs,")
	sb.WriteString("avg_return,med_return,std_return,avg_drawdown,avg_win_rate,avg_trades\n")

	for _, a := range aggs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.2f\n",
			a.EntryStrategy,
			a.ExitStrategy,
			a.Regime,
			a.Rank,
			a.Runs,
			a.FailedRuns,
			a.AvgReturn,
			a.MedReturn,
			a.StdReturn,
			a.AvgDrawdown,
			a.AvgWinRate,
			a.AvgTrades,
		))
	}

	return sb.String()
}
