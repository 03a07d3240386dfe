package engine

import (
	"context"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// StatusKind is the single state the engine reports.
type StatusKind string

const (
	StatusIdle StatusKind = "idle"
	// StatusAutoSpinning means auto-spin is armed and no spin is in flight.
	StatusAutoSpinning StatusKind = "auto_spinning"
	StatusSpinning     StatusKind = "spinning"
	StatusApproving    StatusKind = "approving"
	StatusSettling     StatusKind = "settling"
	StatusError        StatusKind = "error"
)

// Status is the engine state with the reason for StatusError.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// SpinView describes a spin for the page.
type SpinView struct {
	Participant queue.Participant `json:"participant"`
	Segment     int               `json:"segment"`
	Label       string            `json:"label"`
	From        float64           `json:"from"`
	Target      float64           `json:"target"`
	DurationMs  int64             `json:"duration_ms"`
	StartedAt   time.Time         `json:"started_at"`
}

// Alert is a user-facing toast.
type Alert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

// State is a read-only view of the engine.
type State struct {
	Status        Status              `json:"status"`
	Segments      wheel.Segments      `json:"segments"`
	WeightsError  string              `json:"weights_error,omitempty"`
	Pending       []queue.Participant `json:"pending"`
	Completed     []queue.SpinResult  `json:"completed"`
	TotalEnqueued int                 `json:"total_enqueued"`
	TotalCanceled int                 `json:"total_canceled"`
	TotalOwed     decimal.Decimal     `json:"total_owed"`
	AutoSpin      bool                `json:"auto_spin"`
	AutoIngest    bool                `json:"auto_ingest"`
	Polling       bool                `json:"polling"`
	Rotation      float64             `json:"rotation"`
	CurrentSpin   *SpinView           `json:"current_spin,omitempty"`
	// UnconfirmedTx is a payout transaction whose outcome is not yet known.
	UnconfirmedTx *settlement.PendingTx `json:"unconfirmed_tx,omitempty"`
}

// Snapshot is what survives a restart.
type Snapshot struct {
	Queue       queue.Snapshot        `json:"queue"`
	Segments    wheel.Segments        `json:"segments"`
	AutoSpin    bool                  `json:"auto_spin"`
	AutoIngest  bool                  `json:"auto_ingest"`
	Settlements []settlement.Record   `json:"settlements"`
	PendingTx   *settlement.PendingTx `json:"pending_tx,omitempty"`
	// Invalidated lists redemption ids that must never be admitted again.
	Invalidated []string  `json:"invalidated,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// State returns the current view.
func (e *Engine) State(ctx context.Context) (*State, error) {
	var st *State
	err := e.do(ctx, func() error {
		st = e.view()
		return nil
	})
	return st, err
}

func (e *Engine) view() *State {
	snap := e.queue.Snapshot()
	st := &State{
		Status:        e.status(),
		Segments:      append(wheel.Segments(nil), e.segments...),
		Pending:       snap.Pending,
		Completed:     snap.Completed,
		TotalEnqueued: snap.TotalEnqueued,
		TotalCanceled: snap.TotalCanceled,
		TotalOwed:     e.queue.TotalOwed(),
		AutoSpin:      e.autoSpin,
		AutoIngest:    e.autoIngest,
		Polling:       e.polling,
		Rotation:      e.animator.Rotation(),
		UnconfirmedTx: e.pendingTx,
	}
	if err := e.segments.Validate(); err != nil {
		st.WeightsError = errors.Message(err)
	}
	if s := e.spin; s != nil {
		st.CurrentSpin = &SpinView{
			Participant: s.participant,
			Segment:     s.index,
			Label:       e.segments[s.index].Label,
			From:        s.event.From,
			Target:      s.event.Target,
			DurationMs:  s.event.Duration.Milliseconds(),
			StartedAt:   s.event.StartedAt,
		}
	}
	return st
}

// status folds the spin, the settlement phase and the last error into one
// variant. A spin outranks settlement, which outranks an error.
func (e *Engine) status() Status {
	if e.spin != nil {
		return Status{Kind: StatusSpinning}
	}
	if e.settlement != nil {
		switch e.settlement.Phase() {
		case settlement.PhaseApproving:
			return Status{Kind: StatusApproving}
		case settlement.PhaseSettling:
			return Status{Kind: StatusSettling}
		}
		if err := e.settlement.LastError(); err != nil && errors.Kind(err) != errors.KindCancelled {
			return Status{Kind: StatusError, Reason: errors.Message(err)}
		}
	}
	if e.lastErr != nil {
		return Status{Kind: StatusError, Reason: errors.Message(e.lastErr)}
	}
	if e.autoSpin {
		return Status{Kind: StatusAutoSpinning}
	}
	return Status{Kind: StatusIdle}
}

func (e *Engine) snapshot() *Snapshot {
	return &Snapshot{
		Queue:       e.queue.Snapshot(),
		Segments:    append(wheel.Segments(nil), e.segments...),
		AutoSpin:    e.autoSpin,
		AutoIngest:  e.autoIngest,
		Settlements: append([]settlement.Record(nil), e.history...),
		PendingTx:   e.pendingTx,
		Invalidated: lo.Keys(e.invalidated),
		SavedAt:     time.Now().UTC(),
	}
}

// requestPersist hands the latest snapshot to the saver. Bursts of changes
// collapse into one write.
func (e *Engine) requestPersist() {
	if e.store == nil {
		return
	}
	snap := e.snapshot()
	e.persistMu.Lock()
	e.persisting = snap
	e.persistMu.Unlock()

	select {
	case e.persistCh <- struct{}{}:
	default:
	}
}

func (e *Engine) saveLoop(ctx context.Context) {
	if e.store == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			// Final flush with a fresh deadline.
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			e.save(flushCtx)
			cancel()
			return
		case <-e.persistCh:
			e.save(ctx)
		}
	}
}

func (e *Engine) save(ctx context.Context) {
	e.persistMu.Lock()
	snap := e.persisting
	e.persisting = nil
	e.persistMu.Unlock()
	if snap == nil {
		return
	}
	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Error().Err(err).Msg("Failed to save engine state")
	}
}
