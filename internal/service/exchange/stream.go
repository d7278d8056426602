package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	"CoinPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	DefaultStreamURL = "wss://wbs.mexc.com/ws"
	dealsChannel     = "spot@public.deals.v3.api@"
)

var errNotConnected = errors.New("mexc stream not connected")

// Stream implements a MarketStream over the MEXC public deals channel.
type Stream struct {
	url            string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
}

var _ drepo.MarketStream = (*Stream)(nil)

// NewStream creates a deals stream for symbols.
func NewStream(url string, symbols []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Stream {
	if url == "" {
		url = DefaultStreamURL
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	syms := make([]string, 0, len(symbols))
	for _, s := range symbols {
		syms = append(syms, strings.ToUpper(s))
	}
	return &Stream{url: url, symbols: syms, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

// Connect dials the websocket.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("mexc stream connect: %w", err)
	}
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	s.connected.Store(true)
	s.log.Info("mexc stream connected", logger.String("url", s.url))
	return nil
}

// Subscribe sends one subscription with the deals channel of every symbol.
func (s *Stream) Subscribe(_ context.Context) error {
	if !s.connected.Load() {
		return errNotConnected
	}
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, dealsChannel+sym)
	}
	if err := s.writeJSON(map[string]interface{}{"method": "SUBSCRIPTION", "params": params}); err != nil {
		return fmt.Errorf("mexc subscribe: %w", err)
	}
	s.log.Info("mexc stream subscribed", logger.Strings("symbols", s.symbols))
	return nil
}

// Read streams ticks until the connection fails or ctx is done.
// Both channels are closed when reading stops.
func (s *Stream) Read(ctx context.Context) (<-chan models.PriceTick, <-chan error) {
	ticks := make(chan models.PriceTick, 1024)
	errs := make(chan error, 1)

	s.writeMu.Lock()
	conn := s.conn
	s.writeMu.Unlock()

	go s.pingLoop(ctx)

	go func() {
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- errNotConnected
			return
		}
		for ctx.Err() == nil {
			_, b, err := conn.ReadMessage()
			if err != nil {
				s.connected.Store(false)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("mexc stream read: %w", err)
				}
				return
			}
			for _, t := range parseDeals(b) {
				select {
				case ticks <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ticks, errs
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]string{"method": "PING"}); err != nil {
				s.log.Debug("mexc ping failed", logger.Error(err))
			}
		}
	}
}

// Reconnect closes the connection, waits reconnectDelay, then connects and resubscribes.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	if s.reconnectDelay > 0 {
		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the websocket connection.
func (s *Stream) Close() error {
	s.connected.Store(false)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Stream) IsConnected() bool { return s.connected.Load() }

func (s *Stream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return errNotConnected
	}
	return s.conn.WriteJSON(v)
}

// parseDeals extracts ticks from a deals push frame. Acks and pongs yield nothing.
func parseDeals(b []byte) []models.PriceTick {
	frame := gjson.ParseBytes(b)
	if !strings.HasPrefix(frame.Get("c").String(), dealsChannel) {
		return nil
	}
	symbol := strings.ToUpper(frame.Get("s").String())
	if symbol == "" {
		symbol = strings.TrimPrefix(frame.Get("c").String(), dealsChannel)
	}
	deals := frame.Get("d.deals").Array()
	out := make([]models.PriceTick, 0, len(deals))
	for _, d := range deals {
		price := d.Get("p").Float()
		if price <= 0 {
			continue
		}
		out = append(out, models.PriceTick{
			Symbol:    symbol,
			Price:     price,
			Volume:    d.Get("v").Float(),
			Timestamp: time.UnixMilli(d.Get("t").Int()).UTC(),
		})
	}
	return out
}
