package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoSentimentData  = errors.New("no sentiment data")
	ErrPositionExists   = errors.New("position already open for symbol")
	ErrPositionNotFound = errors.New("position not found")
	ErrMaxPositions     = errors.New("max open positions reached")
	ErrTradingDisabled  = errors.New("trading disabled")
	ErrInvalidWeights   = errors.New("invalid indicator weights")
)

// ExternalServiceError wraps a failed or timed out collaborator call.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalError builds an ExternalServiceError.
func NewExternalError(service, op string, err error) error {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

// OrderFailureReason classifies why the executor refused or failed a trade.
type OrderFailureReason string

const (
	ReasonHoldSignal          OrderFailureReason = "hold_signal"
	ReasonLowConfidence       OrderFailureReason = "confidence_below_threshold"
	ReasonMaxPositions        OrderFailureReason = "max_positions"
	ReasonPositionExists      OrderFailureReason = "position_exists"
	ReasonPriceUnavailable    OrderFailureReason = "price_unavailable"
	ReasonBalanceUnavailable  OrderFailureReason = "balance_unavailable"
	ReasonInsufficientBalance OrderFailureReason = "insufficient_balance"
	ReasonLotSize             OrderFailureReason = "lot_size"
	ReasonOrderRejected       OrderFailureReason = "order_rejected"
	ReasonTradingDisabled     OrderFailureReason = "trading_disabled"
	ReasonRecordFailed        OrderFailureReason = "record_failed"
)

// OrderExecutionError is the structured failure of a trade execution.
// No position or trade exists when it is returned.
type OrderExecutionError struct {
	Reason OrderFailureReason
	Symbol string
	Err    error
}

func (e *OrderExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execute %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("execute %s: %s", e.Symbol, e.Reason)
}

func (e *OrderExecutionError) Unwrap() error { return e.Err }

// NewOrderError builds an OrderExecutionError.
func NewOrderError(reason OrderFailureReason, symbol string, err error) error {
	return &OrderExecutionError{Reason: reason, Symbol: symbol, Err: err}
}
