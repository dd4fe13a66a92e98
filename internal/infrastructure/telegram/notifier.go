package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// Notifier posts run summaries to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishSummary posts a Markdown digest of the run to Telegram.
func (n *Notifier) PublishSummary(ctx context.Context, summary domain.RunSummary) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatSummary(summary))
	form.Set("parse_mode", "Markdown")

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

func formatSummary(summary domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Run %s*\n", summary.RunID)
	fmt.Fprintf(&b, "fetched %d | done %d | failed %d | skipped %d\n",
		summary.Fetched, summary.Succeeded, summary.Failed, summary.Skipped)
	fmt.Fprintf(&b, "took %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))

	for _, item := range summary.Items {
		if item.Kind != domain.OutcomeFailed {
			continue
		}
		fmt.Fprintf(&b, "\n❌ %s (%s", truncate(item.Title, 60), item.Stage)
		if item.Reason != "" {
			fmt.Fprintf(&b, ": %s", truncate(item.Reason, 80))
		}
		b.WriteString(")")
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
