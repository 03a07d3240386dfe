package engine

import (
	"context"
	"strings"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/ingest"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/ethereum/go-ethereum/common"
)

// Spin draws the queue head now instead of waiting for the settle delay.
func (e *Engine) Spin(ctx context.Context) error {
	return e.do(ctx, e.startSpin)
}

// SetAutoSpin arms or disarms automatic processing of the queue.
func (e *Engine) SetAutoSpin(ctx context.Context, enabled bool) error {
	return e.do(ctx, func() error {
		e.autoSpin = enabled
		if enabled {
			e.lastErr = nil
		}
		e.logger.Info().Bool("enabled", enabled).Msg("Auto spin toggled")
		e.requestPersist()
		return nil
	})
}

// SetAutoIngest turns redemption polling on or off. Enabling polls at once.
func (e *Engine) SetAutoIngest(ctx context.Context, enabled bool) error {
	return e.do(ctx, func() error {
		if enabled && e.ingestor == nil {
			return errors.New(errors.ErrConfigError, "no redemption source is configured")
		}
		if enabled && !e.autoIngest {
			e.pollNow = true
			e.lastErr = nil
		}
		e.autoIngest = enabled
		e.logger.Info().Bool("enabled", enabled).Msg("Auto ingestion toggled")
		e.requestPersist()
		return nil
	})
}

// PollNow runs one ingestion cycle regardless of the queue length.
func (e *Engine) PollNow(ctx context.Context) error {
	return e.do(ctx, func() error {
		if e.ingestor == nil {
			return errors.New(errors.ErrConfigError, "no redemption source is configured")
		}
		if e.polling {
			return errors.New(errors.ErrBusy, "an ingestion cycle is already running")
		}
		e.stopPollTimer()
		e.startPoll(e.runCtx)
		return nil
	})
}

// AddParticipant enqueues a manual entry. Manual entries never touch the
// redemption source.
func (e *Engine) AddParticipant(ctx context.Context, wallet, displayName string) (queue.Participant, error) {
	wallet = strings.TrimSpace(wallet)
	if !ingest.ValidAddress(wallet) {
		return queue.Participant{}, errors.NewWithDebug(errors.ErrMalformedAddress, "wallet address is malformed", wallet)
	}
	p := queue.Participant{
		WalletAddress: common.HexToAddress(wallet).Hex(),
		DisplayName:   strings.TrimSpace(displayName),
	}
	if p.DisplayName == "" {
		p.DisplayName = p.WalletAddress
	}

	var added queue.Participant
	err := e.do(ctx, func() error {
		added = e.queue.Enqueue(p)[0]
		e.publishQueue()
		e.requestPersist()
		return nil
	})
	return added, err
}

// RemoveParticipant cancels the pending entry at position (0 is the head).
// Externally sourced entries have their redemption canceled and refunded.
func (e *Engine) RemoveParticipant(ctx context.Context, position int) (queue.Participant, error) {
	var removed queue.Participant
	err := e.do(ctx, func() error {
		p, err := e.queue.Remove(position)
		if err != nil {
			return err
		}
		removed = p
		if p.SourceRedemptionID != "" {
			e.invalidated[p.SourceRedemptionID] = struct{}{}
		}
		e.publishQueue()
		e.requestPersist()
		e.publishAudit(ctx, providers.AuditParticipantCanceled, p.ID, p)

		if e.ingestor != nil && p.ExternallySourced() {
			bg := context.WithoutCancel(ctx)
			go func() {
				ctx, cancel := context.WithTimeout(bg, sideEffectTimeout)
				defer cancel()
				if err := e.ingestor.Cancel(ctx, p); err != nil {
					e.logger.Warn().Err(err).Str("redemption_id", p.SourceRedemptionID).Msg("Failed to cancel redemption")
				}
			}()
		}
		e.logger.Info().Str("participant", p.DisplayName).Int("position", position).Msg("Participant removed")
		return nil
	})
	return removed, err
}

// SetSegments replaces the wheel. Labels must be prize amounts; the weight
// sum is not checked until the next draw.
func (e *Engine) SetSegments(ctx context.Context, segments wheel.Segments) error {
	for _, seg := range segments {
		if _, err := seg.PrizeValue(); err != nil {
			return err
		}
	}
	next := append(wheel.Segments(nil), segments...)
	return e.editSegments(ctx, func(wheel.Segments) (wheel.Segments, error) { return next, nil })
}

// AddSegment appends a segment.
func (e *Engine) AddSegment(ctx context.Context, seg wheel.Segment) error {
	return e.editSegments(ctx, func(s wheel.Segments) (wheel.Segments, error) { return s.Add(seg) })
}

// RemoveSegment drops the segment at index.
func (e *Engine) RemoveSegment(ctx context.Context, index int) error {
	return e.editSegments(ctx, func(s wheel.Segments) (wheel.Segments, error) { return s.Remove(index) })
}

// ReweightSegment changes one segment's weight.
func (e *Engine) ReweightSegment(ctx context.Context, index int, weight string) error {
	return e.editSegments(ctx, func(s wheel.Segments) (wheel.Segments, error) { return s.Reweight(index, weight) })
}

func (e *Engine) editSegments(ctx context.Context, edit func(wheel.Segments) (wheel.Segments, error)) error {
	return e.do(ctx, func() error {
		if e.spin != nil {
			return errors.New(errors.ErrSpinInFlight, "segments cannot change while a spin is in flight")
		}
		next, err := edit(e.segments)
		if err != nil {
			return err
		}
		e.segments = next
		if errors.HasCode(e.lastErr, errors.ErrInvalidWeights) {
			e.lastErr = nil
		}
		e.requestPersist()
		e.logger.Info().Int("segments", len(next)).Msg("Segments updated")
		return nil
	})
}
