package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// ErrMisconfigured is returned when the bot token or chat is missing.
var ErrMisconfigured = errors.New("telegram notifier misconfigured")

// Notifier alerts a Telegram chat via bot API when ingestion jobs fail for good.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Alerter = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Configured reports whether alerts can be sent.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// JobFailed posts a short incident message for a permanently failed job.
func (n *Notifier) JobFailed(ctx context.Context, job domain.Job, cause error) error {
	return n.send(ctx, formatFailure(job, cause))
}

func formatFailure(job domain.Job, cause error) string {
	reason := job.LastError
	if cause != nil {
		reason = cause.Error()
	}
	var b strings.Builder
	b.WriteString("Ingestion job failed\n")
	fmt.Fprintf(&b, "job: %s (%s)\n", job.Name, job.ID)
	fmt.Fprintf(&b, "attempts: %d/%d\n", job.Attempts, job.MaxAttempts)
	fmt.Fprintf(&b, "error: %s", reason)
	return b.String()
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if !n.Configured() || n.client == nil {
		return ErrMisconfigured
	}

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
