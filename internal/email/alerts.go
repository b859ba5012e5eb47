package email

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// AlertMailer turns dispatched events into plain-text emails for a fixed
// recipient list. It satisfies the same Dispatch surface as the webhook
// service so the two channels can be fanned out together.
type AlertMailer struct {
	sender     Sender
	recipients []string
	logger     *zap.Logger
}

// NewAlertMailer creates an AlertMailer. With no recipients it is inert.
func NewAlertMailer(sender Sender, recipients []string, logger *zap.Logger) *AlertMailer {
	return &AlertMailer{sender: sender, recipients: recipients, logger: logger}
}

// Dispatch sends one email per recipient for the event.
func (m *AlertMailer) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	if len(m.recipients) == 0 {
		return
	}

	subject, body := formatEvent(eventType, payload)
	for _, to := range m.recipients {
		if err := m.sender.Send(ctx, to, subject, body); err != nil {
			m.logger.Warn("alert email delivery failed",
				zap.String("to", to),
				zap.String("event", eventType),
				zap.Error(err))
		}
	}
}

func formatEvent(eventType string, payload map[string]string) (subject, body string) {
	switch eventType {
	case "simulation.alert":
		subject = fmt.Sprintf("[aegis] ALERT on device %s (risk %s)", payload["device_id"], payload["risk_score"])
	case "device.offline":
		subject = fmt.Sprintf("[aegis] device %s went offline", payload["device_id"])
	default:
		subject = "[aegis] " + eventType
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n\n", eventType)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, payload[k])
	}
	return subject, b.String()
}
