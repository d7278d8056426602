package models

import "time"

// Event names carried on the event stream.
const (
	EventSignalGenerated = "signal.generated"
	EventTradeOpened     = "trade.opened"
	EventTradeClosed     = "trade.closed"
)

// TradeEvent is the payload of trade lifecycle events.
type TradeEvent struct {
	Event string    `json:"event"`
	Trade Trade     `json:"trade"`
	At    time.Time `json:"at"`
}

// SignalEvent is the payload of signal.generated events.
type SignalEvent struct {
	Event  string    `json:"event"`
	Signal Signal    `json:"signal"`
	At     time.Time `json:"at"`
}
