package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signal-monitorv1/internal/model"
)

func buySignal() *model.TradingSignal {
	return &model.TradingSignal{
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Type:      model.SignalBuy,
		Strength:  model.StrengthStrong,
		RSIValue:  24.51,
		Price:     50123.45,
		Score:     7,
		MaxScore:  8,
		Message:   "RSI oversold + EMA alignment",
		TS:        time.Now().UTC(),
	}
}

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a.b", "a\\.b"},
		{"x_y*z", "x\\_y\\*z"},
		{"(50%)", "\\(50%\\)"},
		{"a-b+c=d", "a\\-b\\+c\\=d"},
	}
	for _, c := range cases {
		if got := escapeMarkdown(c.in); got != c.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatSignal(t *testing.T) {
	text := formatSignal(buySignal())

	for _, want := range []string{"🟢", "🔥", "BUY", "BTCUSDT", "7/8", "STRONG"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted message missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "24.51") {
		t.Error("unescaped dot survived in RSI value")
	}
	if !strings.Contains(text, "24\\.51") {
		t.Errorf("expected escaped RSI value, got:\n%s", text)
	}

	sell := buySignal()
	sell.Type = model.SignalSell
	if !strings.Contains(formatSignal(sell), "🔴") {
		t.Error("SELL must render the red marker")
	}
}

func TestTelegramNotify(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "-100123")
	tn.baseURL = srv.URL

	if err := tn.Notify(context.Background(), buySignal()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody["chat_id"] != "-100123" || gotBody["parse_mode"] != "MarkdownV2" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestTelegramNotify_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "-100123")
	tn.baseURL = srv.URL

	if err := tn.Notify(context.Background(), buySignal()); err == nil {
		t.Fatal("expected an error for non-200 response")
	}
}

// flakyNotifier fails a fixed number of times before succeeding.
type flakyNotifier struct {
	mu        sync.Mutex
	failures  int
	delivered []*model.TradingSignal
}

func (f *flakyNotifier) Notify(_ context.Context, sig *model.TradingSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	f.delivered = append(f.delivered, sig)
	return nil
}

func (f *flakyNotifier) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	backend := &flakyNotifier{failures: 2}
	q := NewQueue(backend, WithMaxAttempts(3), WithRetryDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	if err := q.Notify(ctx, buySignal()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for backend.deliveredCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("signal never delivered after retries")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestQueue_GivesUpAfterBudget(t *testing.T) {
	backend := &flakyNotifier{failures: 10}
	q := NewQueue(backend, WithMaxAttempts(2), WithRetryDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Notify(ctx, buySignal())
	time.Sleep(50 * time.Millisecond)

	if got := backend.deliveredCount(); got != 0 {
		t.Errorf("expected no delivery after exhausted budget, got %d", got)
	}
	backend.mu.Lock()
	remaining := backend.failures
	backend.mu.Unlock()
	if 10-remaining != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", 10-remaining)
	}
}

func TestQueue_FullDropsWithError(t *testing.T) {
	backend := &flakyNotifier{}
	q := NewQueue(backend)
	// Worker not running: fill the buffer.
	for i := 0; i < defaultQueueSize; i++ {
		if err := q.Notify(context.Background(), buySignal()); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Notify(context.Background(), buySignal()); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestMulti_AttemptsAllBackends(t *testing.T) {
	a := &flakyNotifier{failures: 1}
	b := &flakyNotifier{}
	m := Multi{a, b}

	err := m.Notify(context.Background(), buySignal())
	if err == nil {
		t.Fatal("expected first backend's error to propagate")
	}
	if b.deliveredCount() != 1 {
		t.Error("second backend must still be attempted")
	}
}
