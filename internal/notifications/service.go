package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/ledger"
)

const userAgent = "Courier-Go/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	ReportAvailable(ctx context.Context, torrents []ledger.Task, artifacts []ledger.ArtifactInfo) error
	NotifyArtifactTransferred(ctx context.Context, name string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) ReportAvailable(ctx context.Context, torrents []ledger.Task, artifacts []ledger.ArtifactInfo) error {
	var builder strings.Builder

	if len(torrents) > 0 {
		builder.WriteString("Ready Torrents:\n")
		for _, torrent := range torrents {
			fmt.Fprintf(&builder, "\n- %s\n  (%s)\n", torrent.Name, torrent.Hash)
		}
	}
	if len(artifacts) > 0 {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("Available Artifacts:\n")
		for _, artifact := range artifacts {
			fmt.Fprintf(&builder, "\n- %s\n  (%s)\n", artifact.Name, artifact.Hash)
		}
	}

	message := builder.String()
	if message == "" {
		message = "No torrents or artifacts available"
	}

	data := payload{
		title:   "Courier - Status Report",
		message: message,
		tags:    []string{"courier", "report"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyArtifactTransferred(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	data := payload{
		title:   "Courier - Artifact Ready",
		message: fmt.Sprintf("Transferred to relay: %s", name),
		tags:    []string{"courier", "transfer", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Courier - Error",
		message:  builder.String(),
		tags:     []string{"courier", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Courier - Test",
		message:  "Notification system test",
		tags:     []string{"courier", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) ReportAvailable(context.Context, []ledger.Task, []ledger.ArtifactInfo) error {
	return nil
}
func (noopService) NotifyArtifactTransferred(context.Context, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
