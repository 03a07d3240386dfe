package queue

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is one pending entry. Identity is positional in the queue, so
// duplicate wallets are allowed.
type Participant struct {
	ID                 string    `json:"id"`
	WalletAddress      string    `json:"wallet_address"`
	DisplayName        string    `json:"display_name"`
	SourceRedemptionID string    `json:"source_redemption_id,omitempty"`
	SourceRewardID     string    `json:"source_reward_id,omitempty"`
	EnqueuedAt         time.Time `json:"enqueued_at"`
}

// ExternallySourced reports whether the entry came from a redemption and
// therefore owns a source event that must be fulfilled or canceled.
func (p Participant) ExternallySourced() bool {
	return p.SourceRedemptionID != ""
}

// SpinResult is one completed draw. Immutable once appended to the log.
type SpinResult struct {
	Participant  Participant     `json:"participant"`
	PrizeValue   decimal.Decimal `json:"prize_value"`
	SegmentIndex int             `json:"segment_index"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the queue, used for persistence and
// for readers outside the engine loop.
type Snapshot struct {
	Pending       []Participant `json:"pending"`
	Completed     []SpinResult  `json:"completed"`
	TotalEnqueued int           `json:"total_enqueued"`
	TotalCanceled int           `json:"total_canceled"`
	HeadDrawn     bool          `json:"head_drawn"`
}
