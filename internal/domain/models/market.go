package models

import "time"

// Candle represents one OHLCV bar. Series are chronological with a fixed interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Ticker24h is the rolling 24h window statistics for one symbol.
type Ticker24h struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"last_price"`
	PriceChangePercent float64 `json:"price_change_percent"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quote_volume"`
	HighPrice          float64 `json:"high_price"`
	LowPrice           float64 `json:"low_price"`
}

// PriceTick is a single last-trade price pushed by the real-time stream.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Balance is a per-asset account balance.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// AccountInfo holds the balances of the trading account.
type AccountInfo struct {
	Balances []Balance `json:"balances"`
}

// Free returns the free balance of asset, or 0 when the asset is absent.
func (a AccountInfo) Free(asset string) float64 {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return 0
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest is an order to submit to the exchange.
// Quantity and Price are decimal strings already rounded to the exchange precision.
type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Type     OrderType `json:"type"`
	Quantity string    `json:"quantity"`
	Price    string    `json:"price,omitempty"`
}

// OrderAck is the exchange acknowledgement of an order.
type OrderAck struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Status      string    `json:"status"`
	Price       float64   `json:"price"`
	ExecutedQty float64   `json:"executed_qty"`
	CreatedAt   time.Time `json:"created_at"`
}
