package exchange

import (
	"fmt"
	"strings"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/tidwall/gjson"
)

// parseKlines reads the [openTime, open, high, low, close, volume, closeTime, quoteVolume]
// tuples. Prices arrive as strings and times as numbers; gjson reads both.
func parseKlines(symbol string, body []byte) ([]models.Candle, error) {
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("mexc klines %s: expected array", symbol)
	}
	rows := res.Array()
	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		f := row.Array()
		if len(f) < 6 {
			return nil, fmt.Errorf("mexc klines %s: row %d has %d fields", symbol, i, len(f))
		}
		out = append(out, models.Candle{
			Symbol:   symbol,
			OpenTime: time.UnixMilli(f[0].Int()).UTC(),
			Open:     f[1].Float(),
			High:     f[2].Float(),
			Low:      f[3].Float(),
			Close:    f[4].Float(),
			Volume:   f[5].Float(),
		})
	}
	return out, nil
}

func parseTicker(r gjson.Result) models.Ticker24h {
	return models.Ticker24h{
		Symbol:             strings.ToUpper(r.Get("symbol").String()),
		LastPrice:          r.Get("lastPrice").Float(),
		PriceChangePercent: r.Get("priceChangePercent").Float(),
		Volume:             r.Get("volume").Float(),
		QuoteVolume:        r.Get("quoteVolume").Float(),
		HighPrice:          r.Get("highPrice").Float(),
		LowPrice:           r.Get("lowPrice").Float(),
	}
}

func parseAccount(body []byte) models.AccountInfo {
	var acct models.AccountInfo
	gjson.GetBytes(body, "balances").ForEach(func(_, b gjson.Result) bool {
		acct.Balances = append(acct.Balances, models.Balance{
			Asset:  b.Get("asset").String(),
			Free:   b.Get("free").Float(),
			Locked: b.Get("locked").Float(),
		})
		return true
	})
	return acct
}

func parseOrder(r gjson.Result) models.OrderAck {
	ack := models.OrderAck{
		OrderID:     r.Get("orderId").String(),
		Symbol:      r.Get("symbol").String(),
		Side:        models.OrderSide(strings.ToUpper(r.Get("side").String())),
		Status:      r.Get("status").String(),
		Price:       r.Get("price").Float(),
		ExecutedQty: r.Get("executedQty").Float(),
	}
	if ts := r.Get("transactTime").Int(); ts > 0 {
		ack.CreatedAt = time.UnixMilli(ts).UTC()
	} else if ts := r.Get("time").Int(); ts > 0 {
		ack.CreatedAt = time.UnixMilli(ts).UTC()
	}
	// Market orders report price 0; derive the average fill from the quote amount.
	if ack.Price == 0 && ack.ExecutedQty > 0 {
		if quote := r.Get("cummulativeQuoteQty").Float(); quote > 0 {
			ack.Price = quote / ack.ExecutedQty
		}
	}
	if ack.Status == "" {
		ack.Status = "NEW"
	}
	return ack
}
