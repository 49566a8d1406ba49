package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flora/internal/config"
)

const userAgent = "Flora-Go/0.1.0"

// Event identifies a notification class.
type Event string

const (
	EventIdentificationCompleted Event = "identification_completed"
	EventRenameCompleted         Event = "rename_completed"
	EventGroupCompleted          Event = "group_completed"
	EventError                   Event = "error"
	EventTest                    Event = "test"
)

// Payload carries event fields. Values are formatted with %v.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventIdentificationCompleted: cfg.Notifications.Identification,
			EventRenameCompleted:         cfg.Notifications.Organization,
			EventGroupCompleted:          cfg.Notifications.Organization,
			EventError:                   cfg.Notifications.Errors,
			EventTest:                    true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, p Payload) (payload, bool) {
	switch event {
	case EventIdentificationCompleted:
		return payload{
			title: "Flora - Identified",
			message: fmt.Sprintf("🌿 Identified %s: %d identified, %d unidentified, %d skipped",
				p.text("dir"), p.count("identified"), p.count("unidentified"), p.count("skipped")),
			tags: []string{"flora", "identify", "completed"},
		}, true
	case EventRenameCompleted:
		return payload{
			title: "Flora - Renamed",
			message: fmt.Sprintf("🏷️ Renamed %d files in %s (%d conflicts)",
				p.count("renamed"), p.text("dir"), p.count("conflicts")),
			tags: []string{"flora", "rename", "completed"},
		}, true
	case EventGroupCompleted:
		return payload{
			title: "Flora - Grouped",
			message: fmt.Sprintf("📂 Grouped %d files in %s (%d ungrouped, %d conflicts)",
				p.count("moved"), p.text("dir"), p.count("ungrouped"), p.count("conflicts")),
			tags: []string{"flora", "group", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := p.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := p.text("error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Flora - Error",
			message:  builder.String(),
			tags:     []string{"flora", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Flora - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"flora", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) text(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
