package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/domain"
	"RiverWatch/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// Bot API rejects sendMessage text longer than this.
	maxMessageRunes = 4096
)

// Notifier announces new bulletins in a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimSuffix(base, "/")
	return n
}

// Announce posts a count header followed by the notice blocks of fresh,
// split over as many messages as the Bot API length limit requires.
func (n *Notifier) Announce(ctx context.Context, fresh []domain.Bulletin) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if len(fresh) == 0 {
		return nil
	}

	for i, text := range Messages(fresh) {
		if err := n.send(ctx, text); err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}
	return nil
}

// Messages renders fresh as chat messages of at most maxMessageRunes runes.
// Blocks are never split; a single oversized block is truncated.
func Messages(fresh []domain.Bulletin) []string {
	header := fmt.Sprintf("🌊 河川情報 新着 %d 件", len(fresh))

	var (
		messages []string
		current  = header
	)
	for _, b := range fresh {
		block := truncateRunes(artifact.FormatNotice([]domain.Bulletin{b}), maxMessageRunes)
		candidate := current + artifact.NoticeSeparator + block
		if current == header {
			candidate = current + "\n\n" + block
		}
		if utf8.RuneCountInString(candidate) <= maxMessageRunes {
			current = candidate
			continue
		}
		messages = append(messages, current)
		current = block
	}
	return append(messages, current)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

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

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}
