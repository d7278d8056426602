package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgch "CoinPull/pkg/clickhouse"
	applogger "CoinPull/pkg/logger"
)

// TradeSchema returns the DDL of the trade history table. Rows are versioned
// and collapsed by ReplacingMergeTree; reads use FINAL to see the latest version.
func TradeSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id String,
    symbol LowCardinality(String),
    action LowCardinality(String),
    side LowCardinality(String),
    entry_price Float64,
    exit_price Float64,
    quantity Float64,
    leverage Float64,
    entry_time DateTime64(3, 'UTC'),
    exit_time Nullable(DateTime64(3, 'UTC')),
    status LowCardinality(String),
    confidence Float64,
    reasoning String,
    score_technical Float64,
    score_fundamental Float64,
    score_sentiment Float64,
    score_momentum Float64,
    entry_order_id String,
    exit_order_id String,
    exit_reason LowCardinality(String),
    realized_pnl Float64,
    realized_pnl_pct Float64,
    version UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY (id)`, database, table),
	}
}

const tradeColumns = `id, symbol, action, side, entry_price, exit_price, quantity, leverage,
    entry_time, exit_time, status, confidence, reasoning,
    score_technical, score_fundamental, score_sentiment, score_momentum,
    entry_order_id, exit_order_id, exit_reason, realized_pnl, realized_pnl_pct, version`

// ClickHouseTradeStore implements TradeStore on ClickHouse.
type ClickHouseTradeStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseTradeStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseTradeStore {
	return &ClickHouseTradeStore{db: ch.DB(), table: table, l: l}
}

var _ domrepo.TradeStore = (*ClickHouseTradeStore)(nil)

// SaveTrade inserts a new version of the trade row.
func (s *ClickHouseTradeStore) SaveTrade(ctx context.Context, t models.Trade) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, tradeColumns)
	var exit any
	if t.ExitTime != nil {
		exit = t.ExitTime.UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		t.ID,
		t.Symbol,
		string(t.Action),
		string(t.Side),
		t.EntryPrice,
		t.ExitPrice,
		t.Quantity,
		t.Leverage,
		t.EntryTime.UTC(),
		exit,
		string(t.Status),
		t.Confidence,
		t.Reasoning,
		t.Scores.Technical,
		t.Scores.Fundamental,
		t.Scores.Sentiment,
		t.Scores.Momentum,
		t.EntryOrderID,
		t.ExitOrderID,
		string(t.ExitReason),
		t.RealizedPnL,
		t.RealizedPnLPct,
		t.Version,
	)
	if err != nil {
		s.logError("clickhouse save_trade error", err, applogger.String("trade_id", t.ID))
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// ListTrades returns the latest version of each matching trade, newest entry first.
func (s *ClickHouseTradeStore) ListTrades(ctx context.Context, f models.TradeFilter) ([]models.Trade, error) {
	var where []string
	var args []any
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "entry_time >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "entry_time <= ?")
		args = append(args, f.To.UTC())
	}

	q := fmt.Sprintf("SELECT %s FROM %s FINAL", tradeColumns, s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY entry_time DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.query(ctx, q, args...)
}

func (s *ClickHouseTradeStore) OpenTrades(ctx context.Context) ([]models.Trade, error) {
	return s.ListTrades(ctx, models.TradeFilter{Status: models.TradeOpen})
}

func (s *ClickHouseTradeStore) query(ctx context.Context, q string, args ...any) ([]models.Trade, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logError("clickhouse list_trades query error", err)
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t                            models.Trade
			action, side, status, reason string
			exit                         sql.NullTime
		)
		if err := rows.Scan(
			&t.ID, &t.Symbol, &action, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.Leverage,
			&t.EntryTime, &exit, &status, &t.Confidence, &t.Reasoning,
			&t.Scores.Technical, &t.Scores.Fundamental, &t.Scores.Sentiment, &t.Scores.Momentum,
			&t.EntryOrderID, &t.ExitOrderID, &reason, &t.RealizedPnL, &t.RealizedPnLPct, &t.Version,
		); err != nil {
			s.logError("clickhouse list_trades scan error", err)
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Action = models.Action(action)
		t.Side = models.Side(side)
		t.Status = models.TradeStatus(status)
		t.ExitReason = models.ExitReason(reason)
		if exit.Valid {
			et := exit.Time
			t.ExitTime = &et
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse list_trades rows error", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse list_trades ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("took", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseTradeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.
func (s *ClickHouseTradeStore) Close() error { return nil }

func (s *ClickHouseTradeStore) logError(msg string, err error, fields ...applogger.Field) {
	if s.l == nil {
		return
	}
	s.l.Error(msg, append(fields, applogger.String("table", s.table), applogger.Error(err))...)
}
