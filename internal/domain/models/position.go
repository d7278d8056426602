package models

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideForAction maps BUY to LONG and SELL to SHORT.
func SideForAction(a Action) Side {
	if a == ActionSell {
		return SideShort
	}
	return SideLong
}

// ExitSide returns the order side that closes a position of this side.
func (s Side) ExitSide() OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// EntrySide returns the order side that opens a position of this side.
func (s Side) EntrySide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Position is an open exposure on one symbol.
type Position struct {
	TradeID          string    `json:"trade_id"`
	Symbol           string    `json:"symbol"`
	Side             Side      `json:"side"`
	Quantity         float64   `json:"quantity"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	Leverage         float64   `json:"leverage"`
	EntryTime        time.Time `json:"entry_time"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProfitPct returns the signed percent move from entry to price for the given side.
func ProfitPct(side Side, entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	pct := (price - entry) / entry * 100
	if side == SideShort {
		return -pct
	}
	return pct
}

// PnL returns the absolute profit of quantity units moving from entry to price.
func PnL(side Side, entry, price, quantity float64) float64 {
	pnl := (price - entry) * quantity
	if side == SideShort {
		return -pnl
	}
	return pnl
}

// Reprice recomputes the unrealized P&L at price.
func (p *Position) Reprice(price float64, at time.Time) {
	p.CurrentPrice = price
	p.UnrealizedPnL = PnL(p.Side, p.EntryPrice, price, p.Quantity)
	p.UnrealizedPnLPct = ProfitPct(p.Side, p.EntryPrice, price)
	p.UpdatedAt = at
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration { return now.Sub(p.EntryTime) }

type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitMaxHoldTime    ExitReason = "max hold time"
	ExitTakeProfit     ExitReason = "take profit"
	ExitStopLoss       ExitReason = "stop loss"
	ExitSignalReversal ExitReason = "signal reversal"
	ExitManual         ExitReason = "manual"
)

// Trade is the audit record of one position from entry to exit.
type Trade struct {
	ID             string         `json:"id"`
	Symbol         string         `json:"symbol"`
	Action         Action         `json:"action"`
	Side           Side           `json:"side"`
	EntryPrice     float64        `json:"entry_price"`
	ExitPrice      float64        `json:"exit_price,omitempty"`
	Quantity       float64        `json:"quantity"`
	Leverage       float64        `json:"leverage"`
	EntryTime      time.Time      `json:"entry_time"`
	ExitTime       *time.Time     `json:"exit_time,omitempty"`
	Status         TradeStatus    `json:"status"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	Scores         CategoryScores `json:"component_scores"`
	EntryOrderID   string         `json:"entry_order_id,omitempty"`
	ExitOrderID    string         `json:"exit_order_id,omitempty"`
	ExitReason     ExitReason     `json:"exit_reason,omitempty"`
	RealizedPnL    float64        `json:"realized_pnl,omitempty"`
	RealizedPnLPct float64        `json:"realized_pnl_pct,omitempty"`
	// Version increases on every state change; stores keep the highest.
	Version uint64 `json:"version"`
}

// IsOpen reports whether the trade is still OPEN.
func (t Trade) IsOpen() bool { return t.Status == TradeOpen }

// Outcome converts a closed trade into weight feedback.
func (t Trade) Outcome() TradeOutcome {
	return TradeOutcome{Scores: t.Scores, ProfitPct: t.RealizedPnLPct}
}
