package providers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RedemptionStatus is the terminal status written back to the redemption source.
type RedemptionStatus string

const (
	RedemptionCanceled  RedemptionStatus = "CANCELED"
	RedemptionFulfilled RedemptionStatus = "FULFILLED"
)

// Channel identifies the broadcaster whose rewards are read.
type Channel struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"display_name"`
}

// Reward is a channel-point reward as returned by the redemption source.
type Reward struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Cost  int    `json:"cost"`
}

// RewardSpec holds the fixed parameters used to create the reward.
type RewardSpec struct {
	Title               string
	Cost                int
	Prompt              string
	RequiresUserInput   bool
	MaxPerUserPerStream int
}

// Redemption is one unresolved redemption of the wheel reward.
type Redemption struct {
	ID         string    `json:"id"`
	RewardID   string    `json:"reward_id"`
	UserID     string    `json:"user_id"`
	UserLogin  string    `json:"user_login"`
	UserName   string    `json:"user_name"`
	UserInput  string    `json:"user_input"`
	Status     string    `json:"status"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// RedemptionSource is the external event API the ingestor polls.
//
// CreateReward returns an ErrExternalRejection error when the channel is not
// eligible for channel-point rewards. Transport failures carry ErrTransport.
type RedemptionSource interface {
	ResolveChannel(ctx context.Context, login string) (*Channel, error)
	FindReward(ctx context.Context, channelID, title string) (*Reward, error)
	CreateReward(ctx context.Context, channelID string, spec RewardSpec) (*Reward, error)
	ListUnfulfilled(ctx context.Context, channelID, rewardID string) ([]Redemption, error)
	UpdateRedemption(ctx context.Context, channelID, rewardID, redemptionID string, status RedemptionStatus) error
	SendChatMessage(ctx context.Context, channelID, message string) error
}

// ParticipantValidator registers a wallet for a user. A nil error accepts the
// participant; an ErrExternalRejection error carries the reason shown to the user.
type ParticipantValidator interface {
	Validate(ctx context.Context, username, wallet string) error
}

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotifyRefund   NotificationKind = "refund"
	NotifyRejected NotificationKind = "rejected"
	NotifyCanceled NotificationKind = "canceled"
	NotifyWon      NotificationKind = "won"
)

// Notification is a user-facing message about one participant.
type Notification struct {
	Kind        NotificationKind
	ChannelID   string
	DisplayName string
	Wallet      string
	Reason      string
	Prize       decimal.Decimal
}

// Notifier delivers notifications to the source channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StateStore persists the engine snapshot across restarts.
type StateStore interface {
	// Load decodes the stored snapshot into dest and reports whether one existed.
	Load(ctx context.Context, dest interface{}) (bool, error)
	Save(ctx context.Context, snapshot interface{}) error
}

// AuditEvent is one record on the audit stream.
type AuditEvent struct {
	Type      string      `json:"type"`
	Key       string      `json:"key"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Audit event types.
const (
	AuditSpinResolved          = "spin.resolved"
	AuditParticipantCanceled   = "participant.canceled"
	AuditSettlementApproved    = "settlement.approved"
	AuditSettlementConfirmed   = "settlement.confirmed"
	AuditParticipantIngested   = "participant.ingested"
	AuditRedemptionInvalidated = "redemption.invalidated"
)

// AuditPublisher records engine events for audit.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
}
