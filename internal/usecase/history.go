package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
)

const (
	feeRate        = 0.001
	sharpeCapital  = 10_000.0
	riskFreeDaily  = 0.000055
	maxHistoryRows = 10_000
)

// HistoryUseCase reads the trade history for listing, statistics and export.
type HistoryUseCase struct {
	store drepo.TradeStore
	now   func() time.Time
}

func NewHistoryUseCase(store drepo.TradeStore) *HistoryUseCase {
	return &HistoryUseCase{store: store, now: time.Now}
}

// ListTrades returns trades matching the filter, newest first.
func (uc *HistoryUseCase) ListTrades(ctx context.Context, f models.TradeFilter) ([]models.Trade, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if f.Limit <= 0 || f.Limit > maxHistoryRows {
		f.Limit = maxHistoryRows
	}
	trades, err := uc.store.ListTrades(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// Performance summarizes the closed trades entered in the last days.
func (uc *HistoryUseCase) Performance(ctx context.Context, days int) (models.PerformanceSummary, error) {
	if days <= 0 {
		days = 30
	}
	from := uc.now().AddDate(0, 0, -days)
	trades, err := uc.ListTrades(ctx, models.TradeFilter{From: from})
	if err != nil {
		return models.PerformanceSummary{}, err
	}

	sum := Summarize(trades)
	sum.PeriodDays = days
	return sum, nil
}

// Summarize computes the performance statistics of a set of trades.
func Summarize(trades []models.Trade) models.PerformanceSummary {
	var s models.PerformanceSummary
	var closed []models.Trade
	for _, t := range trades {
		if t.IsOpen() {
			s.OpenTradesCount++
			continue
		}
		closed = append(closed, t)
	}
	s.TotalTrades = len(closed)
	if len(closed) == 0 {
		return s
	}

	sort.Slice(closed, func(i, j int) bool { return exitTime(closed[i]).Before(exitTime(closed[j])) })

	var profitSum, lossSum, pctSum float64
	var losses int
	daily := map[string]float64{}
	var days []string
	cum, peak, maxDD := 0.0, 0.0, 0.0

	for i, t := range closed {
		pnl := t.RealizedPnL
		fee := t.EntryPrice * t.Quantity * feeRate
		s.TotalPnL += pnl
		s.TotalFees += fee
		pctSum += t.RealizedPnLPct

		switch {
		case pnl > 0:
			s.Profitable++
			profitSum += pnl
			s.MaxProfit = math.Max(s.MaxProfit, pnl)
		case pnl < 0:
			losses++
			lossSum += pnl
			s.MaxLoss = math.Min(s.MaxLoss, pnl)
		}

		day := exitTime(t).UTC().Format("2006-01-02")
		if _, ok := daily[day]; !ok {
			days = append(days, day)
		}
		daily[day] += pnl - fee

		cum += pnl - fee
		if i == 0 || cum > peak {
			peak = cum
		}
		if peak != 0 {
			maxDD = math.Max(maxDD, (peak-cum)/math.Abs(peak))
		}
	}

	n := float64(len(closed))
	s.WinRate = float64(s.Profitable) / n * 100
	if s.Profitable > 0 {
		s.AverageProfit = profitSum / float64(s.Profitable)
	}
	if losses > 0 {
		s.AverageLoss = lossSum / float64(losses)
	}
	s.NetPnL = s.TotalPnL - s.TotalFees
	s.AveragePnLPct = pctSum / n
	s.MaxDrawdown = maxDD * 100

	returns := make([]float64, len(days))
	for i, d := range days {
		returns[i] = daily[d] / sharpeCapital
	}
	s.SharpeRatio = Sharpe(returns)
	return s
}

// Sharpe annualizes daily returns over the daily risk-free rate. Fewer than two days yield 0.
func Sharpe(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range daily {
		mean += r
	}
	mean /= float64(len(daily))
	ss := 0.0
	for _, r := range daily {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(daily)))
	if std == 0 {
		return 0
	}
	return (mean - riskFreeDaily) / std * math.Sqrt(365)
}

func exitTime(t models.Trade) time.Time {
	if t.ExitTime != nil {
		return *t.ExitTime
	}
	return t.EntryTime
}

// ExportRows converts trades to the tabular export shape.
func ExportRows(trades []models.Trade) []models.ExportRow {
	rows := make([]models.ExportRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, models.ExportRow{
			Symbol:     t.Symbol,
			Side:       t.Side,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.RealizedPnL,
			PnLPct:     t.RealizedPnLPct,
			Reason:     t.ExitReason,
		})
	}
	return rows
}

var exportHeader = []string{"symbol", "side", "entry_time", "exit_time", "entry_price", "exit_price", "quantity", "pnl", "pnl_pct", "reason"}

// WriteCSV writes the export rows with a header line.
func WriteCSV(w io.Writer, rows []models.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range rows {
		exit := ""
		if r.ExitTime != nil {
			exit = r.ExitTime.UTC().Format(time.RFC3339)
		}
		rec := []string{
			r.Symbol,
			string(r.Side),
			r.EntryTime.UTC().Format(time.RFC3339),
			exit,
			num(r.EntryPrice),
			num(r.ExitPrice),
			num(r.Quantity),
			num(r.PnL),
			num(r.PnLPct),
			string(r.Reason),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the filtered trade history as CSV.
func (uc *HistoryUseCase) Export(ctx context.Context, f models.TradeFilter, w io.Writer) (int, error) {
	trades, err := uc.ListTrades(ctx, f)
	if err != nil {
		return 0, err
	}
	rows := ExportRows(trades)
	return len(rows), WriteCSV(w, rows)
}
