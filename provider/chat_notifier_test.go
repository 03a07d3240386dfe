package provider

import (
	"context"
	"testing"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	channel  string
	messages []string
}

func (s *recordingSender) SendChatMessage(_ context.Context, channelID, message string) error {
	s.channel = channelID
	s.messages = append(s.messages, message)
	return nil
}

func TestChatNotifierFormats(t *testing.T) {
	cfg := &config.Config{}
	cfg.Twitch.Messages = config.MessagesConfig{
		Refund:   "refund %s",
		Rejected: "rejected %s: %s",
		Canceled: "canceled %s",
		Won:      "%s won %s",
	}
	sender := &recordingSender{}
	n := NewChatNotifier(sender, cfg, zerolog.Nop())

	notes := []providers.Notification{
		{Kind: providers.NotifyRefund, ChannelID: "42", DisplayName: "alice"},
		{Kind: providers.NotifyRejected, ChannelID: "42", DisplayName: "bob", Reason: "banned"},
		{Kind: providers.NotifyCanceled, ChannelID: "42", DisplayName: "carol"},
		{Kind: providers.NotifyWon, ChannelID: "42", DisplayName: "dave", Prize: decimal.NewFromInt(17711)},
	}
	for _, note := range notes {
		require.NoError(t, n.Notify(context.Background(), note))
	}

	assert.Equal(t, "42", sender.channel)
	assert.Equal(t, []string{
		"refund alice",
		"rejected bob: banned",
		"canceled carol",
		"dave won 17711",
	}, sender.messages)
}

func TestChatNotifierSkipsWithoutChannel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Twitch.Messages = config.MessagesConfig{Refund: "refund %s"}
	sender := &recordingSender{}
	n := NewChatNotifier(sender, cfg, zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), providers.Notification{Kind: providers.NotifyRefund, DisplayName: "x"}))
	assert.Empty(t, sender.messages)

	assert.Error(t, n.Notify(context.Background(), providers.Notification{Kind: "unknown", ChannelID: "42"}))
}
