package models

import "time"

// TradeFilter narrows a trade history query. Zero values match everything.
type TradeFilter struct {
	Symbol string
	Status TradeStatus
	From   time.Time
	To     time.Time
	Limit  int
}

// Match reports whether t passes the filter, ignoring Limit.
func (f TradeFilter) Match(t Trade) bool {
	if f.Symbol != "" && t.Symbol != f.Symbol {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && t.EntryTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.EntryTime.After(f.To) {
		return false
	}
	return true
}

// PerformanceSummary aggregates the closed trades of a period.
type PerformanceSummary struct {
	PeriodDays      int     `json:"period_days"`
	TotalTrades     int     `json:"total_trades"`
	Profitable      int     `json:"profitable_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	AverageProfit   float64 `json:"avg_profit"`
	AverageLoss     float64 `json:"avg_loss"`
	MaxProfit       float64 `json:"max_profit"`
	MaxLoss         float64 `json:"max_loss"`
	TotalFees       float64 `json:"total_fees"`
	NetPnL          float64 `json:"net_pnl"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	AveragePnLPct   float64 `json:"avg_pnl_pct"`
	OpenTradesCount int     `json:"open_trades"`
}

// ExportRow is one line of the tabular trade history export.
type ExportRow struct {
	Symbol     string
	Side       Side
	EntryTime  time.Time
	ExitTime   *time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	PnLPct     float64
	Reason     ExitReason
}
