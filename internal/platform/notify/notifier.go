package notify

import (
	"context"
	"log/slog"
)

// LogNotifier records template sends in the structured log. It stands in for
// the email delivery integration while that rollout completes; callers treat
// sends as best effort either way.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, templateType string, recipients []string, payload map[string]any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification dispatched",
		"event", "notify_send",
		"module", "internal/platform/notify",
		"layer", "platform",
		"template_type", templateType,
		"recipients", len(recipients),
		"payload", payload,
	)
	return nil
}
