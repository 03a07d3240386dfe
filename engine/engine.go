package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/events"
	"github.com/Digital-Creators-Team/spin-rewards/ingest"
	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/Digital-Creators-Team/spin-rewards/metrics"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	DefaultSettleDelay  = time.Second
	DefaultPollInterval = 10 * time.Second

	sideEffectTimeout = 10 * time.Second
)

// Ingestor is the redemption intake the engine polls and reports back to.
// *ingest.Ingestor satisfies it.
type Ingestor interface {
	Poll(ctx context.Context, known map[string]struct{}) (*ingest.Result, error)
	Fulfill(ctx context.Context, p queue.Participant, prize decimal.Decimal) error
	Cancel(ctx context.Context, p queue.Participant) error
}

// Options configures timing and the initial wheel.
type Options struct {
	Segments          wheel.Segments
	SettleDelay       time.Duration
	AnimationDuration time.Duration
	PollInterval      time.Duration
	MinTurns          int
	AutoSpin          bool
	AutoIngest        bool
	// Random overrides the draw source, mainly for tests.
	Random wheel.Source
}

// OptionsFromConfig maps the wheel section of the config.
func OptionsFromConfig(cfg config.WheelConfig) Options {
	return Options{
		Segments: lo.Map(cfg.Segments, func(s config.SegmentConfig, _ int) wheel.Segment {
			return wheel.Segment{Label: s.Label, Weight: s.Weight}
		}),
		SettleDelay:       cfg.SettleDelay,
		AnimationDuration: cfg.AnimationDuration,
		PollInterval:      cfg.PollInterval,
		MinTurns:          cfg.MinTurns,
		AutoSpin:          cfg.AutoSpin,
		AutoIngest:        cfg.AutoIngest,
	}
}

type command struct {
	fn    func() error
	reply chan error
}

type activeSpin struct {
	participant queue.Participant
	index       int
	prize       decimal.Decimal
	event       wheel.SpinEvent
}

type pollOutcome struct {
	result *ingest.Result
	err    error
	// invalidated is the set of ids that were invalidated when the poll started.
	invalidated map[string]struct{}
}

// Engine owns the wheel, the queue and every timer. All mutations run on
// the goroutine started by Run; public methods submit commands to it.
type Engine struct {
	queue      *queue.Queue
	selector   *wheel.Selector
	animator   *wheel.Animator
	ingestor   Ingestor
	store      providers.StateStore
	audit      providers.AuditPublisher
	events     *events.Broadcaster
	metrics    *metrics.EngineMetrics
	settlement *settlement.Manager
	logger     zerolog.Logger

	settleDelay  time.Duration
	pollInterval time.Duration

	cmds     chan command
	spinDone chan wheel.SpinEvent
	pollDone chan pollOutcome
	done     chan struct{}

	// Owned by the loop goroutine.
	runCtx     context.Context
	segments   wheel.Segments
	autoSpin   bool
	autoIngest bool
	spin       *activeSpin
	polling    bool
	pollNow    bool
	lastErr    error
	history    []settlement.Record
	pendingTx  *settlement.PendingTx
	// invalidated holds redemption ids that were canceled at the source or
	// are being canceled. They are never admitted again, even while the
	// source still lists them.
	invalidated map[string]struct{}
	settleTimer *time.Timer
	pollTimer   *time.Timer

	persistMu  sync.Mutex
	persisting *Snapshot
	persistCh  chan struct{}
}

// New creates an engine. ingestor, store, audit, broadcaster and m may be nil.
func New(opts Options, ingestor Ingestor, store providers.StateStore, audit providers.AuditPublisher,
	broadcaster *events.Broadcaster, m *metrics.EngineMetrics, logger zerolog.Logger) *Engine {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Engine{
		queue:        queue.New(),
		selector:     wheel.NewSelector(opts.Random),
		animator:     wheel.NewAnimator(opts.AnimationDuration, opts.MinTurns),
		ingestor:     ingestor,
		store:        store,
		audit:        audit,
		events:       broadcaster,
		metrics:      m,
		logger:       logging.WithComponent(logger, "engine"),
		settleDelay:  opts.SettleDelay,
		pollInterval: opts.PollInterval,
		cmds:         make(chan command),
		spinDone:     make(chan wheel.SpinEvent, 1),
		pollDone:     make(chan pollOutcome, 1),
		done:         make(chan struct{}),
		segments:     append(wheel.Segments(nil), opts.Segments...),
		autoSpin:     opts.AutoSpin,
		autoIngest:   opts.AutoIngest && ingestor != nil,
		invalidated:  make(map[string]struct{}),
		pollNow:      true,
		persistCh:    make(chan struct{}, 1),
	}
}

// AttachSettlement links the settlement manager so its phase shows in the
// status and confirmed batches are persisted with the snapshot. Call it
// before Restore and Run.
func (e *Engine) AttachSettlement(m *settlement.Manager) {
	e.settlement = m
	m.OnRecord(func(history []settlement.Record) {
		records := append([]settlement.Record(nil), history...)
		err := e.do(context.Background(), func() error {
			e.history = records
			e.requestPersist()
			return nil
		})
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to record settlement history")
		}
	})
	m.OnPending(func(tx *settlement.PendingTx) {
		err := e.do(context.Background(), func() error {
			e.pendingTx = tx
			e.requestPersist()
			return nil
		})
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to record unconfirmed transaction")
		}
	})
}

// Completed returns the completed log. It is safe to call from any goroutine.
func (e *Engine) Completed() []queue.SpinResult {
	return e.queue.Completed()
}

// Restore loads the persisted snapshot. It must run before Run.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	var snap Snapshot
	found, err := e.store.Load(ctx, &snap)
	if err != nil {
		return err
	}
	if !found {
		e.logger.Info().Msg("No saved state, starting empty")
		return nil
	}

	e.queue = queue.Restore(snap.Queue)
	if len(snap.Segments) > 0 {
		e.segments = snap.Segments
	}
	e.autoSpin = snap.AutoSpin
	e.autoIngest = snap.AutoIngest && e.ingestor != nil
	e.history = snap.Settlements
	e.pendingTx = snap.PendingTx
	for _, id := range snap.Invalidated {
		e.invalidated[id] = struct{}{}
	}
	if e.settlement != nil {
		e.settlement.RestoreHistory(snap.Settlements)
		e.settlement.RestorePending(snap.PendingTx)
	}

	e.logger.Info().
		Int("pending", e.queue.Len()).
		Int("completed", len(snap.Queue.Completed)).
		Int("segments", len(e.segments)).
		Time("saved_at", snap.SavedAt).
		Msg("Restored engine state")
	return nil
}

// Run drives the engine until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.runCtx = ctx

	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		e.saveLoop(ctx)
	}()

	e.logger.Info().
		Bool("auto_spin", e.autoSpin).
		Bool("auto_ingest", e.autoIngest).
		Dur("settle_delay", e.settleDelay).
		Dur("poll_interval", e.pollInterval).
		Msg("Engine started")

	e.publishQueue()
	e.reconcile()

	for {
		select {
		case <-ctx.Done():
			e.stopSettleTimer()
			e.stopPollTimer()
			<-saverDone
			e.logger.Info().Msg("Engine stopped")
			return nil

		case cmd := <-e.cmds:
			cmd.reply <- cmd.fn()

		case <-e.timerC(e.settleTimer):
			e.settleTimer = nil
			if err := e.startSpin(); err != nil {
				e.logger.Debug().Err(err).Msg("Auto spin skipped")
			}

		case <-e.timerC(e.pollTimer):
			e.pollTimer = nil
			e.startPoll(ctx)

		case ev := <-e.spinDone:
			e.resolve(ctx, ev)

		case out := <-e.pollDone:
			e.handlePoll(ctx, out)
		}

		e.reconcile()
	}
}

// do runs fn on the loop goroutine and returns its error.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case e.cmds <- command{fn: fn, reply: reply}:
	case <-e.done:
		return errors.New(errors.ErrServiceUnavailable, "engine is not running")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// reconcile arms or cancels the timers so each runs only while its
// condition holds.
func (e *Engine) reconcile() {
	wantSettle := e.autoSpin && e.spin == nil && e.queue.Len() > 0
	switch {
	case wantSettle && e.settleTimer == nil:
		e.settleTimer = time.NewTimer(e.settleDelay)
	case !wantSettle:
		e.stopSettleTimer()
	}

	wantPoll := e.autoIngest && e.ingestor != nil && !e.polling && e.queue.Len() == 0
	switch {
	case wantPoll && e.pollTimer == nil:
		delay := e.pollInterval
		if e.pollNow {
			delay = 0
			e.pollNow = false
		}
		e.pollTimer = time.NewTimer(delay)
	case !wantPoll:
		e.stopPollTimer()
	}
}

func (e *Engine) stopSettleTimer() {
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}

func (e *Engine) stopPollTimer() {
	if e.pollTimer != nil {
		e.pollTimer.Stop()
		e.pollTimer = nil
	}
}

// startSpin draws the head and starts the animation. The prize is fixed
// here, before anything moves.
func (e *Engine) startSpin() error {
	if e.spin != nil {
		return errors.New(errors.ErrSpinInFlight, "a spin is already in flight")
	}
	if e.queue.Len() == 0 {
		return errors.New(errors.ErrEmptyQueue, "no participants are waiting")
	}

	index, err := e.selector.Select(len(e.segments), e.segments.Weights())
	if err != nil {
		e.refuseSpin(err)
		return err
	}
	prize, err := e.segments[index].PrizeValue()
	if err != nil {
		e.refuseSpin(err)
		return err
	}

	p, err := e.queue.Draw()
	if err != nil {
		return err
	}
	event, ok := e.animator.Spin(index, len(e.segments), func(ev wheel.SpinEvent) {
		e.spinDone <- ev
	})
	if !ok {
		e.queue.Release()
		return errors.New(errors.ErrSpinInFlight, "the wheel is still animating")
	}

	e.spin = &activeSpin{participant: p, index: index, prize: prize, event: event}
	e.lastErr = nil
	e.metrics.ObserveSpin("started", 0)

	spinLogger := logging.WithParticipant(e.logger, p.WalletAddress, p.DisplayName)
	spinLogger.Info().
		Int("segment", index).
		Str("prize", prize.String()).
		Msg("Spin started")

	e.events.Send(events.New(events.TypeSpinStarted, SpinView{
		Participant: p,
		Segment:     index,
		Label:       e.segments[index].Label,
		From:        event.From,
		Target:      event.Target,
		DurationMs:  event.Duration.Milliseconds(),
		StartedAt:   event.StartedAt,
	}))
	e.publishQueue()
	return nil
}

// refuseSpin leaves the wheel untouched and disarms auto-spin so the same
// refusal is not raised every settle tick.
func (e *Engine) refuseSpin(err error) {
	e.autoSpin = false
	e.requestPersist()
	e.lastErr = err
	e.metrics.ObserveSpin("refused", 0)
	e.logger.Warn().Err(err).Msg("Spin refused")
	e.alert(err)
}

// resolve is the only place a spin completes.
func (e *Engine) resolve(ctx context.Context, ev wheel.SpinEvent) {
	s := e.spin
	if s == nil || !s.event.StartedAt.Equal(ev.StartedAt) {
		e.logger.Warn().Int("segment", ev.Index).Msg("Ignoring animation end without a matching spin")
		return
	}
	e.spin = nil

	result, err := e.queue.Complete(s.prize, s.index, time.Now().UTC())
	if err != nil {
		e.lastErr = err
		e.logger.Error().Err(err).Msg("Failed to record spin result")
		e.alert(err)
		return
	}

	prize, _ := result.PrizeValue.Float64()
	e.metrics.ObserveSpin("resolved", prize)
	logger := logging.WithParticipant(e.logger, result.Participant.WalletAddress, result.Participant.DisplayName)
	logger.Info().Str("prize", result.PrizeValue.String()).Msg("Spin resolved")

	e.events.Send(events.New(events.TypeSpinEnded, result))
	e.publishQueue()
	e.requestPersist()

	if e.ingestor != nil && result.Participant.ExternallySourced() {
		bg := context.WithoutCancel(ctx)
		go func() {
			ctx, cancel := context.WithTimeout(bg, sideEffectTimeout)
			defer cancel()
			if err := e.ingestor.Fulfill(ctx, result.Participant, result.PrizeValue); err != nil {
				logger.Warn().Err(err).Msg("Failed to fulfill redemption, result is kept")
			}
		}()
	}
	e.publishAudit(ctx, providers.AuditSpinResolved, result.Participant.ID, result)
}

func (e *Engine) startPoll(ctx context.Context) {
	if e.ingestor == nil || e.polling {
		return
	}
	e.polling = true
	known := e.queue.KnownRedemptionIDs()
	invalidated := make(map[string]struct{}, len(e.invalidated))
	for id := range e.invalidated {
		known[id] = struct{}{}
		invalidated[id] = struct{}{}
	}
	go func() {
		result, err := e.ingestor.Poll(ctx, known)
		e.pollDone <- pollOutcome{result: result, err: err, invalidated: invalidated}
	}()
}

func (e *Engine) handlePoll(ctx context.Context, out pollOutcome) {
	e.polling = false

	if out.err != nil {
		// A rejected reward or a missing channel will not fix itself.
		if errors.Kind(out.err) == errors.KindRejection || errors.HasCode(out.err, errors.ErrConfigError) {
			e.autoIngest = false
			e.lastErr = out.err
			e.logger.Error().Err(out.err).Msg("Ingestion disabled")
			e.alert(out.err)
			return
		}
		e.logger.Warn().Err(out.err).Msg("Ingestion cycle failed, retrying on next poll")
		return
	}
	if out.result == nil {
		return
	}

	// Ids the source no longer lists are resolved there and need no memory.
	// Ids invalidated while this poll ran are kept.
	listed := lo.SliceToMap(out.result.Listed, func(id string) (string, struct{}) { return id, struct{}{} })
	pruned := 0
	for id := range out.invalidated {
		if _, still := listed[id]; !still {
			delete(e.invalidated, id)
			pruned++
		}
	}

	for _, r := range out.result.Rejected {
		e.invalidated[r.Redemption.ID] = struct{}{}
		e.events.Send(events.New(events.TypeAlert, Alert{
			Kind:    string(r.Kind),
			Message: r.Reason,
			Subject: r.Redemption.UserLogin,
		}))
		e.publishAudit(ctx, providers.AuditRedemptionInvalidated, r.Redemption.ID, r)
	}
	if pruned > 0 || len(out.result.Rejected) > 0 {
		e.requestPersist()
	}

	if len(out.result.Accepted) == 0 {
		return
	}
	added := e.queue.Enqueue(out.result.Accepted...)
	e.autoSpin = true
	e.publishQueue()
	e.requestPersist()
	for _, p := range added {
		e.publishAudit(ctx, providers.AuditParticipantIngested, p.ID, p)
	}
	e.logger.Info().Int("accepted", len(added)).Int("pending", e.queue.Len()).Msg("Participants enqueued")
}

func (e *Engine) alert(err error) {
	e.events.Send(events.New(events.TypeAlert, Alert{
		Kind:    string(errors.Kind(err)),
		Message: errors.Message(err),
	}))
}

func (e *Engine) publishQueue() {
	pending, completed := e.queue.Len(), len(e.queue.Completed())
	e.metrics.SetQueueSizes(pending, completed)
	e.events.Send(events.New(events.TypeQueueUpdated, map[string]int{
		"pending":   pending,
		"completed": completed,
	}))
}

func (e *Engine) publishAudit(ctx context.Context, eventType, key string, payload interface{}) {
	if e.audit == nil {
		return
	}
	event := providers.AuditEvent{Type: eventType, Key: key, Timestamp: time.Now().UTC(), Payload: payload}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, sideEffectTimeout)
		defer cancel()
		if err := e.audit.Publish(ctx, event); err != nil {
			e.logger.Warn().Err(err).Str("type", eventType).Msg("Failed to publish audit event")
		}
	}()
}
