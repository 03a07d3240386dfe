package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/metrics"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// sideEffectTimeout bounds each cancel, fulfill or notify call.
const sideEffectTimeout = 10 * time.Second

// Config holds the channel to read and the reward to read it from.
type Config struct {
	ChannelLogin string
	Reward       providers.RewardSpec
}

// ConfigFromConfig maps the channel and reward sections of the config.
func ConfigFromConfig(cfg *config.Config) Config {
	return Config{
		ChannelLogin: cfg.Twitch.ChannelLogin,
		Reward: providers.RewardSpec{
			Title:               cfg.Twitch.Reward.Title,
			Cost:                cfg.Twitch.Reward.Cost,
			Prompt:              cfg.Twitch.Reward.Prompt,
			MaxPerUserPerStream: cfg.Twitch.Reward.MaxPerUserPerStream,
		},
	}
}

// Rejection is one redemption that was canceled instead of enqueued.
type Rejection struct {
	Redemption providers.Redemption `json:"redemption"`
	Kind       errors.ErrorKind     `json:"kind"`
	Reason     string               `json:"reason"`
}

// Result is the outcome of one polling cycle.
type Result struct {
	Accepted []queue.Participant `json:"accepted"`
	Rejected []Rejection         `json:"rejected"`
	Skipped  int                 `json:"skipped"`
	// Listed holds every redemption id the source still reports unfulfilled.
	Listed []string `json:"listed"`
}

// Ingestor turns redemptions into participants. It also owns the source-event
// side effects for participants it produced: fulfill on a win, cancel on
// removal.
type Ingestor struct {
	source    providers.RedemptionSource
	validator providers.ParticipantValidator
	notifier  providers.Notifier
	metrics   *metrics.EngineMetrics
	cfg       Config
	logger    zerolog.Logger

	mu       sync.Mutex
	channel  *providers.Channel
	rewardID string
}

// New creates an ingestor. m may be nil.
func New(source providers.RedemptionSource, validator providers.ParticipantValidator, notifier providers.Notifier,
	m *metrics.EngineMetrics, cfg Config, logger zerolog.Logger) *Ingestor {
	cfg.Reward.RequiresUserInput = true
	return &Ingestor{
		source:    source,
		validator: validator,
		notifier:  notifier,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.With().Str("component", "ingestor").Logger(),
	}
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// Poll runs one ingestion cycle. Redemptions whose id is in known are
// skipped without side effects, so re-running a cycle never duplicates
// entries. A returned error means nothing was enqueued and nothing was
// canceled; it is safe to retry on the next tick.
func (i *Ingestor) Poll(ctx context.Context, known map[string]struct{}) (*Result, error) {
	channel, err := i.ensureChannel(ctx)
	if err != nil {
		return nil, err
	}

	rewardID, err := i.ensureReward(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	redemptions, err := i.source.ListUnfulfilled(ctx, channel.ID, rewardID)
	if err != nil {
		i.metrics.ObservePollFailure(string(errors.Kind(err)))
		return nil, errors.Wrap(err, errors.GetCode(err), "failed to list redemptions")
	}

	result := &Result{Listed: make([]string, 0, len(redemptions))}
	for _, r := range redemptions {
		result.Listed = append(result.Listed, r.ID)
		if _, seen := known[r.ID]; seen {
			result.Skipped++
			continue
		}
		if r.RewardID == "" {
			r.RewardID = rewardID
		}

		p, rejection := i.admit(ctx, channel.ID, r)
		if rejection != nil {
			result.Rejected = append(result.Rejected, *rejection)
			continue
		}
		result.Accepted = append(result.Accepted, p)
	}

	i.logger.Debug().
		Int("listed", len(redemptions)).
		Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).
		Int("skipped", result.Skipped).
		Msg("Ingestion cycle complete")

	return result, nil
}

// admit validates one redemption. Every failure cancels and refunds it.
func (i *Ingestor) admit(ctx context.Context, channelID string, r providers.Redemption) (queue.Participant, *Rejection) {
	wallet := strings.TrimSpace(r.UserInput)
	logger := i.logger.With().Str("redemption_id", r.ID).Str("user", r.UserLogin).Logger()

	if !ValidAddress(wallet) {
		logger.Info().Str("input", r.UserInput).Msg("Malformed wallet address, refunding")
		i.invalidate(ctx, channelID, r, providers.NotifyRefund, "")
		i.metrics.ObserveRedemption("malformed")
		return queue.Participant{}, &Rejection{Redemption: r, Kind: errors.KindValidation, Reason: "malformed wallet address"}
	}

	if err := i.validator.Validate(ctx, r.UserLogin, wallet); err != nil {
		reason := rejectionReason(err)
		logger.Info().Err(err).Str("reason", reason).Msg("Wallet rejected by registry, refunding")
		i.invalidate(ctx, channelID, r, providers.NotifyRejected, reason)
		i.metrics.ObserveRedemption("rejected")
		return queue.Participant{}, &Rejection{Redemption: r, Kind: errors.Kind(err), Reason: reason}
	}

	i.metrics.ObserveRedemption("accepted")
	return queue.Participant{
		WalletAddress:      common.HexToAddress(wallet).Hex(),
		DisplayName:        displayName(r),
		SourceRedemptionID: r.ID,
		SourceRewardID:     r.RewardID,
	}, nil
}

// invalidate cancels the redemption, refunding its points, then notifies.
// Failures are logged; the redemption is not enqueued either way.
func (i *Ingestor) invalidate(ctx context.Context, channelID string, r providers.Redemption, kind providers.NotificationKind, reason string) {
	cctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	if err := i.source.UpdateRedemption(cctx, channelID, r.RewardID, r.ID, providers.RedemptionCanceled); err != nil {
		i.logger.Error().Err(err).Str("redemption_id", r.ID).Msg("Failed to cancel redemption")
	}
	if err := i.notifier.Notify(cctx, providers.Notification{
		Kind:        kind,
		ChannelID:   channelID,
		DisplayName: displayName(r),
		Wallet:      strings.TrimSpace(r.UserInput),
		Reason:      reason,
	}); err != nil {
		i.logger.Warn().Err(err).Str("redemption_id", r.ID).Msg("Failed to send notification")
	}
}

// Fulfill marks p's redemption fulfilled and announces the prize. Manual
// entries have no source event and are ignored.
func (i *Ingestor) Fulfill(ctx context.Context, p queue.Participant, prize decimal.Decimal) error {
	if !p.ExternallySourced() {
		return nil
	}
	channelID := i.channelID()
	cctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	if err := i.source.UpdateRedemption(cctx, channelID, p.SourceRewardID, p.SourceRedemptionID, providers.RedemptionFulfilled); err != nil {
		return errors.Wrap(err, errors.GetCode(err), "failed to fulfill redemption")
	}
	if err := i.notifier.Notify(cctx, providers.Notification{
		Kind:        providers.NotifyWon,
		ChannelID:   channelID,
		DisplayName: p.DisplayName,
		Wallet:      p.WalletAddress,
		Prize:       prize,
	}); err != nil {
		return errors.Wrap(err, errors.GetCode(err), "failed to announce win")
	}
	return nil
}

// Cancel cancels p's redemption, refunding it, and notifies the user.
// Manual entries are ignored.
func (i *Ingestor) Cancel(ctx context.Context, p queue.Participant) error {
	if !p.ExternallySourced() {
		return nil
	}
	channelID := i.channelID()
	cctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	if err := i.source.UpdateRedemption(cctx, channelID, p.SourceRewardID, p.SourceRedemptionID, providers.RedemptionCanceled); err != nil {
		return errors.Wrap(err, errors.GetCode(err), "failed to cancel redemption")
	}
	if err := i.notifier.Notify(cctx, providers.Notification{
		Kind:        providers.NotifyCanceled,
		ChannelID:   channelID,
		DisplayName: p.DisplayName,
		Wallet:      p.WalletAddress,
	}); err != nil {
		return errors.Wrap(err, errors.GetCode(err), "failed to send cancel notification")
	}
	return nil
}

func (i *Ingestor) ensureChannel(ctx context.Context) (*providers.Channel, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.channel != nil {
		return i.channel, nil
	}
	if i.cfg.ChannelLogin == "" {
		return nil, errors.New(errors.ErrConfigError, "twitch channel login is not configured")
	}

	channel, err := i.source.ResolveChannel(ctx, i.cfg.ChannelLogin)
	if err != nil {
		i.metrics.ObservePollFailure(string(errors.Kind(err)))
		return nil, errors.Wrap(err, errors.GetCode(err), "failed to resolve channel")
	}
	i.channel = channel
	i.logger.Info().Str("channel_id", channel.ID).Str("login", channel.Login).Msg("Resolved channel")
	return channel, nil
}

// ensureReward finds the wheel reward, creating it when absent. Creation
// failures are returned as-is so an ineligible channel surfaces to the
// operator instead of being retried silently.
func (i *Ingestor) ensureReward(ctx context.Context, channelID string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.rewardID != "" {
		return i.rewardID, nil
	}

	reward, err := i.source.FindReward(ctx, channelID, i.cfg.Reward.Title)
	if err != nil {
		i.metrics.ObservePollFailure(string(errors.Kind(err)))
		return "", errors.Wrap(err, errors.GetCode(err), "failed to look up reward")
	}
	if reward == nil {
		reward, err = i.source.CreateReward(ctx, channelID, i.cfg.Reward)
		if err != nil {
			i.metrics.ObservePollFailure(string(errors.Kind(err)))
			return "", errors.Wrap(err, errors.GetCode(err), "failed to create reward")
		}
	}
	i.rewardID = reward.ID
	return reward.ID, nil
}

func (i *Ingestor) channelID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.channel == nil {
		return ""
	}
	return i.channel.ID
}

func displayName(r providers.Redemption) string {
	if r.UserName != "" {
		return r.UserName
	}
	return r.UserLogin
}

// rejectionReason picks the user-facing reason. Transport failures are
// reported generically.
func rejectionReason(err error) string {
	if errors.Kind(err) == errors.KindTransport {
		return "wallet registration is unavailable, try again later"
	}
	return errors.Message(err)
}
