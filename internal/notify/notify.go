package notify

import (
	"context"
	"fmt"
	"propbook/pkg/client"
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"sync"
	"time"
)

// Notifier hands a notification to the dispatch service.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Dispatch sends n and swallows any failure after logging it. It reports
// whether the attempt succeeded so callers can record delivery.
func Dispatch(ctx context.Context, notifier Notifier, log *logger.Logger, timeout time.Duration, n model.Notification) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := notifier.Notify(ctx, n); err != nil {
		log.Warn("Notification failed",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"entity_id", n.EntityID,
			"error", err,
		)
		return false
	}
	return true
}

// LogNotifier writes notifications to the log. Used when no dispatch service
// is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg model.Notification) error {
	n.log.Info("Notification", "kind", msg.Kind, "recipient_id", msg.RecipientID, "entity_id", msg.EntityID)
	return nil
}

// HTTPNotifier posts notifications as JSON to {base}/notifications, keyed by
// kind and entity so the dispatcher can drop retries.
type HTTPNotifier struct {
	client *client.HttpClient
}

func NewHTTPNotifier(baseURL string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{client: client.NewHttpClient(baseURL, timeout)}
}

func (n *HTTPNotifier) Notify(ctx context.Context, msg model.Notification) error {
	key := string(msg.Kind) + ":" + msg.EntityID
	resp, err := n.client.POST(ctx, "/notifications", msg, client.WithHeader("Idempotency-Key", key))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("notifier returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	return nil
}

// MemoryNotifier records every attempt, including failed ones.
type MemoryNotifier struct {
	mu       sync.Mutex
	attempts []model.Notification
	err      error
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *MemoryNotifier) Notify(_ context.Context, msg model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts = append(n.attempts, msg)
	return n.err
}

func (n *MemoryNotifier) Attempts() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.Notification, len(n.attempts))
	copy(out, n.attempts)
	return out
}

// Count returns how many attempts of kind were made.
func (n *MemoryNotifier) Count(kind model.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, a := range n.attempts {
		if a.Kind == kind {
			count++
		}
	}
	return count
}
