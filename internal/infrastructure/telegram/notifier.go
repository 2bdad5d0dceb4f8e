package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"MentionScanner/internal/ports"
)

// Notifier sends operator alerts to a Telegram chat via bot API. Alerts
// are rate-limited with a cooldown so a flapping monitor cannot flood
// the channel.
type Notifier struct {
	botToken string
	chatID   string
	cooldown time.Duration
	client   *http.Client

	mu       sync.Mutex
	lastSent time.Time
}

var _ ports.AlertNotifier = (*Notifier)(nil)

// NewNotifier registers bot token, chat identifier, and alert cooldown.
func NewNotifier(botToken, chatID string, cooldown time.Duration) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		cooldown: cooldown,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishAlert posts the message to Telegram unless the cooldown since
// the previous alert has not elapsed yet.
func (n *Notifier) PublishAlert(ctx context.Context, message string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	if !n.takeSlot() {
		return nil
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func (n *Notifier) takeSlot() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	if n.cooldown > 0 && now.Sub(n.lastSent) < n.cooldown {
		return false
	}
	n.lastSent = now
	return true
}
