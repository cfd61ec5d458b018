package market

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-monitorv1/internal/model"
	"signal-monitorv1/internal/ringbuf"
)

const (
	defaultTickerURL    = "wss://wbs.mexc.com/ws"
	defaultPingInterval = 15 * time.Second
	defaultRingCapacity = 1024
	maxDialRetries      = 8
)

// TickerConfig configures the mini-ticker stream.
type TickerConfig struct {
	URL          string
	Symbols      []string
	PingInterval time.Duration
	RingCapacity int
}

// TickerStream maintains the latest 24h market context per symbol from the
// exchange mini-ticker websocket. The read loop pushes events into an SPSC
// ring so a slow consumer never backpressures the socket; under burst the
// ring drops the oldest-unconsumed updates, which is fine for last-value
// semantics.
type TickerStream struct {
	cfg    TickerConfig
	dialer *websocket.Dialer
	ring   *ringbuf.Ring

	mu     sync.RWMutex
	latest map[string]model.TickerEvent

	// Optional lifecycle hooks. OnConnect fires after every successful
	// subscribe, including the one that ends a reconnect.
	OnConnect   func()
	OnReconnect func()
}

// NewTickerStream creates a stream for the given symbols.
func NewTickerStream(cfg TickerConfig) *TickerStream {
	if cfg.URL == "" {
		cfg.URL = defaultTickerURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = defaultRingCapacity
	}
	return &TickerStream{
		cfg:    cfg,
		dialer: &websocket.Dialer{},
		ring:   ringbuf.New(cfg.RingCapacity),
		latest: make(map[string]model.TickerEvent),
	}
}

// MarketContext returns the latest 24h context for a symbol.
func (t *TickerStream) MarketContext(symbol string) (model.MarketContext, bool) {
	t.mu.RLock()
	ev, ok := t.latest[NormalizeSymbol(symbol)]
	t.mu.RUnlock()
	if !ok {
		return model.MarketContext{}, false
	}
	return ev.Context(), true
}

// Overflow returns the number of ticker updates dropped by the ring.
func (t *TickerStream) Overflow() uint64 { return t.ring.Overflow() }

// Run connects and streams until ctx is cancelled. Reconnects with linear
// backoff on socket errors.
func (t *TickerStream) Run(ctx context.Context) {
	go t.consume(ctx)

	retry := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, nil)
		if err != nil {
			retry++
			if retry > maxDialRetries {
				log.Printf("[market] ticker: giving up after %d dial attempts: %v", retry, err)
				return
			}
			log.Printf("[market] ticker: dial failed (attempt %d): %v", retry, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(300*retry) * time.Millisecond):
			}
			continue
		}
		retry = 0

		if err := t.subscribe(conn); err != nil {
			log.Printf("[market] ticker: subscribe failed: %v", err)
			conn.Close()
			continue
		}
		log.Printf("[market] ticker: connected, %d symbols subscribed", len(t.cfg.Symbols))
		if t.OnConnect != nil {
			t.OnConnect()
		}

		t.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if t.OnReconnect != nil {
			t.OnReconnect()
		}
		time.Sleep(time.Second)
	}
}

func (t *TickerStream) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(t.cfg.Symbols))
	for _, s := range t.cfg.Symbols {
		params = append(params, "spot@public.miniTicker.v3.api@"+NormalizeSymbol(s)+"@UTC+0")
	}
	return conn.WriteJSON(map[string]any{
		"method": "SUBSCRIPTION",
		"params": params,
	})
}

func (t *TickerStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)

	go func() {
		ticker := time.NewTicker(t.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]string{"method": "PING"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[market] ticker: read error: %v", err)
			}
			return
		}

		ev, ok := parseMiniTicker(msg)
		if !ok {
			continue
		}
		// Push drops on overflow; last-value semantics make that harmless.
		t.ring.Push(ev)
	}
}

// consume drains the ring into the latest-value map.
func (t *TickerStream) consume(ctx context.Context) {
	idle := time.NewTicker(10 * time.Millisecond)
	defer idle.Stop()

	for {
		ev, ok := t.ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}
		t.mu.Lock()
		t.latest[ev.Symbol] = ev
		t.mu.Unlock()
	}
}

// miniTickerFrame is the v3 mini-ticker push shape: channel name in "c",
// payload in "d" with string-encoded numbers.
type miniTickerFrame struct {
	Channel string `json:"c"`
	TS      int64  `json:"t"`
	Data    struct {
		Symbol      string `json:"s"`
		Price       string `json:"p"`
		ChangeRate  string `json:"r"`
		QuoteVolume string `json:"q"`
	} `json:"d"`
}

func parseMiniTicker(msg []byte) (model.TickerEvent, bool) {
	var frame miniTickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return model.TickerEvent{}, false
	}
	if frame.Data.Symbol == "" {
		// PONG and subscription acks land here.
		return model.TickerEvent{}, false
	}

	ts := time.Now().UTC()
	if frame.TS > 0 {
		ts = time.Unix(0, frame.TS*int64(time.Millisecond)).UTC()
	}
	return model.TickerEvent{
		Symbol:         frame.Data.Symbol,
		LastPrice:      toFloat(frame.Data.Price),
		Volume24h:      toFloat(frame.Data.QuoteVolume),
		PriceChangePct: toFloat(frame.Data.ChangeRate) * 100,
		TS:             ts,
	}, true
}
