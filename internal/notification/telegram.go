package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"signal-monitorv1/internal/model"
)

// TelegramNotifier sends signals via Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Notify(ctx context.Context, sig *model.TradingSignal) error {
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       formatSignal(sig),
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[telegram] sent signal: %s %s/%s", sig.Type, sig.Symbol, sig.Timeframe)
	return nil
}

// formatSignal renders the MarkdownV2 message body.
func formatSignal(sig *model.TradingSignal) string {
	direction := "🟢"
	if sig.Type == model.SignalSell {
		direction = "🔴"
	}
	strength := "⚡"
	switch sig.Strength {
	case model.StrengthStrong:
		strength = "🔥"
	case model.StrengthWeak:
		strength = "💤"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s %s* %s\n\n",
		direction, escapeMarkdown(string(sig.Type)), escapeMarkdown(sig.Symbol), strength)
	fmt.Fprintf(&b, "📊 RSI: %s\n", escapeMarkdown(fmt.Sprintf("%.2f", sig.RSIValue)))
	fmt.Fprintf(&b, "💰 Price: %s\n", escapeMarkdown(fmt.Sprintf("%.8g", sig.Price)))
	fmt.Fprintf(&b, "⏱ Timeframe: %s\n", escapeMarkdown(sig.Timeframe))
	fmt.Fprintf(&b, "🎯 Confluence: %d/%d \\(%s\\)\n", sig.Score, sig.MaxScore, escapeMarkdown(string(sig.Strength)))
	if sig.Message != "" {
		fmt.Fprintf(&b, "\n%s", escapeMarkdown(sig.Message))
	}
	return b.String()
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
