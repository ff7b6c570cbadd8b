package lark

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
)

// TransitionNotifier posts committed transitions to the HR group chat
type TransitionNotifier struct {
	messenger *Messenger
	chatID    string
	logger    *zap.Logger
}

// NewTransitionNotifier creates a notifier that posts to chatID
func NewTransitionNotifier(messenger *Messenger, chatID string, logger *zap.Logger) *TransitionNotifier {
	return &TransitionNotifier{
		messenger: messenger,
		chatID:    chatID,
		logger:    logger,
	}
}

// NotifyTransition posts one line per transition
func (n *TransitionNotifier) NotifyTransition(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeRecordTransitioned && evt.Type != event.TypeEffectsFailed {
		return nil
	}

	if err := n.messenger.SendText(ctx, ReceiveByChatID, n.chatID, FormatTransition(evt)); err != nil {
		n.logger.Error("Failed to notify transition",
			zap.String("record_id", evt.RecordID),
			zap.Error(err))
		return err
	}
	return nil
}

// FormatTransition renders the chat line for an event
func FormatTransition(evt *event.Event) string {
	var b strings.Builder

	if evt.Type == event.TypeEffectsFailed {
		b.WriteString("[ACTION NEEDED] follow-up failed, retry from the record page\n")
	}

	fmt.Fprintf(&b, "%s %s\n", humanize(string(evt.Workflow)), evt.RecordID)
	fmt.Fprintf(&b, "%s -> %s\n", evt.From, evt.To)
	fmt.Fprintf(&b, "by %s (%s)", evt.Actor.UserID, evt.Actor.Role)

	if evt.Record != nil {
		fmt.Fprintf(&b, " for %s", evt.Record.SubjectID)
		if title := evt.Record.PayloadString(entity.FieldTitle); title != "" {
			fmt.Fprintf(&b, "\n%s", title)
		}
		if net := evt.Record.PayloadString(entity.FieldNetPayable); net != "" {
			fmt.Fprintf(&b, "\nnet payable %s", net)
		}
		if last := evt.Record.LastEntry(); last != nil && last.Comment != "" {
			fmt.Fprintf(&b, "\n\"%s\"", last.Comment)
		}
	}

	return b.String()
}

func humanize(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		switch w {
		case "pi":
			words[i] = "PI"
		case "fnf":
			words[i] = "F&F"
		default:
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}

// Verify interface compliance
var _ port.Notifier = (*TransitionNotifier)(nil)
