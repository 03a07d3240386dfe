package provider

import (
	"context"
	"fmt"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/rs/zerolog"
)

// ChatSender posts a message to a channel chat.
type ChatSender interface {
	SendChatMessage(ctx context.Context, channelID, message string) error
}

// ChatNotifier implements providers.Notifier by posting templated chat messages.
type ChatNotifier struct {
	sender    ChatSender
	templates config.MessagesConfig
	logger    zerolog.Logger
}

// NewChatNotifier creates a chat notifier
func NewChatNotifier(sender ChatSender, cfg *config.Config, logger zerolog.Logger) *ChatNotifier {
	return &ChatNotifier{
		sender:    sender,
		templates: cfg.Twitch.Messages,
		logger:    logger.With().Str("component", "chat_notifier").Logger(),
	}
}

// Format renders the message for n
func (n *ChatNotifier) Format(note providers.Notification) string {
	switch note.Kind {
	case providers.NotifyRefund:
		return fmt.Sprintf(n.templates.Refund, note.DisplayName)
	case providers.NotifyRejected:
		return fmt.Sprintf(n.templates.Rejected, note.DisplayName, note.Reason)
	case providers.NotifyCanceled:
		return fmt.Sprintf(n.templates.Canceled, note.DisplayName)
	case providers.NotifyWon:
		return fmt.Sprintf(n.templates.Won, note.DisplayName, note.Prize.String())
	default:
		return ""
	}
}

// Notify sends the rendered message to the notification's channel
func (n *ChatNotifier) Notify(ctx context.Context, note providers.Notification) error {
	msg := n.Format(note)
	if msg == "" {
		return fmt.Errorf("unknown notification kind %q", note.Kind)
	}
	if note.ChannelID == "" {
		n.logger.Debug().Str("kind", string(note.Kind)).Msg("No channel for notification, skipping")
		return nil
	}
	return n.sender.SendChatMessage(ctx, note.ChannelID, msg)
}
