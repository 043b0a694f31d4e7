// Package notification sends farm manager alerts over WhatsApp.
package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/pkg/clients/whatsapp"
)

// Notifier formats reconciliation and yield events as text messages. A
// notifier without a client only logs.
type Notifier struct {
	client    whatsapp.Client
	recipient string
	logger    *zap.Logger
}

// NewNotifier returns a notifier sending to recipient. Client may be nil.
func NewNotifier(client whatsapp.Client, recipient string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{client: client, recipient: recipient, logger: logger}
}

// NotifyRunReport sends the summary of a reconciliation run.
func (n *Notifier) NotifyRunReport(ctx context.Context, report models.RunReport) error {
	return n.send(ctx, FormatRunReport(report))
}

// NotifyYieldAlarm sends an alert for a milking event whose yield fell below
// its tolerance band. Other feedback is ignored.
func (n *Notifier) NotifyYieldAlarm(ctx context.Context, view models.MilkingView) error {
	record := view.MilkYieldRecord
	if record == nil || record.Feedback != models.FeedbackAlarm {
		return nil
	}
	return n.send(ctx, FormatYieldAlarm(view.Event, *record))
}

func (n *Notifier) send(ctx context.Context, body string) error {
	if n.client == nil {
		n.logger.Debug("notifications disabled, message dropped", zap.String("body", body))
		return nil
	}

	resp, err := n.client.SendTextMessage(ctx, whatsapp.SendTextMessageRequest{To: n.recipient, Body: body})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	n.logger.Info("notification sent", zap.String("message_id", resp.MessageID()))
	return nil
}

// FormatRunReport renders a run report as a short text message.
func FormatRunReport(report models.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lactation reconciliation %s (%s)\n", report.State, report.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Processed: %d of %d candidates\n", report.Processed, report.Candidates)
	fmt.Fprintf(&b, "Assigned: %d, not found: %d", report.Assigned, report.NotFound)
	if report.Failed > 0 || report.WriteFailed > 0 {
		fmt.Fprintf(&b, "\nFailed: %d, audit rows lost: %d", report.Failed, report.WriteFailed)
	}
	if report.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", report.Error)
	}
	return b.String()
}

// FormatYieldAlarm renders a low-yield alert.
func FormatYieldAlarm(event models.AnimalEvent, record models.MilkYieldRecord) string {
	return fmt.Sprintf(
		"ALARM: animal %d produced %.1f l on %s (day %d in milk), expected %.1f l, lower limit %.1f l.",
		event.AnimalID,
		record.TotalMilkRecord,
		event.Date.Format("2006-01-02"),
		record.DaysInMilk,
		record.ExpectedMilkYield,
		record.LowerLimit,
	)
}
