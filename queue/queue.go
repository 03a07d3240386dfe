package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Queue holds pending participants and the append-only completed log.
//
// Every method is safe for concurrent use, but the engine is the only
// writer: it alone calls Draw and Complete.
type Queue struct {
	mu            sync.RWMutex
	pending       []Participant
	completed     []SpinResult
	totalEnqueued int
	totalCanceled int
	headDrawn     bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		pending:   make([]Participant, 0),
		completed: make([]SpinResult, 0),
	}
}

// Restore rebuilds a queue from a snapshot. Counters that do not add up are
// recomputed from the lists. A head that was drawn when the snapshot was taken
// is released: its animation did not survive the restart.
func Restore(s Snapshot) *Queue {
	q := &Queue{
		pending:       append(make([]Participant, 0, len(s.Pending)), s.Pending...),
		completed:     append(make([]SpinResult, 0, len(s.Completed)), s.Completed...),
		totalEnqueued: s.TotalEnqueued,
		totalCanceled: s.TotalCanceled,
	}
	if q.totalCanceled < 0 {
		q.totalCanceled = 0
	}
	if q.totalEnqueued-q.totalCanceled != len(q.pending)+len(q.completed) {
		q.totalEnqueued = len(q.pending) + len(q.completed) + q.totalCanceled
	}
	return q
}

// Enqueue appends participants at the tail in the given order and returns
// them with IDs and timestamps filled in.
func (q *Queue) Enqueue(participants ...Participant) []Participant {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	added := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.EnqueuedAt.IsZero() {
			p.EnqueuedAt = now
		}
		q.pending = append(q.pending, p)
		added = append(added, p)
	}
	q.totalEnqueued += len(added)
	return added
}

// Head returns the participant at the front of the queue.
func (q *Queue) Head() (Participant, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.pending) == 0 {
		return Participant{}, false
	}
	return q.pending[0], true
}

// Draw locks the head for a spin. Only the head can be drawn and it stays
// locked until Complete.
func (q *Queue) Draw() (Participant, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Participant{}, errors.New(errors.ErrEmptyQueue, "no pending participants")
	}
	if q.headDrawn {
		return Participant{}, errors.New(errors.ErrSpinInFlight, "a spin is already in flight")
	}
	q.headDrawn = true
	return q.pending[0], nil
}

// Release unlocks a drawn head without resolving it. Used when a draw is
// refused after the head was locked.
func (q *Queue) Release() {
	q.mu.Lock()
	q.headDrawn = false
	q.mu.Unlock()
}

// Complete removes the drawn head and appends its result to the completed log.
func (q *Queue) Complete(prize decimal.Decimal, segmentIndex int, at time.Time) (SpinResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 || !q.headDrawn {
		return SpinResult{}, errors.New(errors.ErrConflict, "no drawn participant to resolve")
	}

	result := SpinResult{
		Participant:  q.pending[0],
		PrizeValue:   prize,
		SegmentIndex: segmentIndex,
		Timestamp:    at,
	}
	q.pending = q.pending[1:]
	q.completed = append(q.completed, result)
	q.headDrawn = false
	return result, nil
}

// Remove cancels the pending participant at position. A drawn head cannot be
// removed.
func (q *Queue) Remove(position int) (Participant, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if position < 0 || position >= len(q.pending) {
		return Participant{}, errors.NewWithDebug(errors.ErrNotFound, "participant not found",
			fmt.Sprintf("position %d, pending %d", position, len(q.pending)))
	}
	if position == 0 && q.headDrawn {
		return Participant{}, errors.New(errors.ErrParticipantDrawn, "participant has already been drawn")
	}

	removed := q.pending[position]
	q.pending = append(q.pending[:position:position], q.pending[position+1:]...)
	q.totalCanceled++
	return removed, nil
}

// Len returns the number of pending participants.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// HeadDrawn reports whether the head is locked by an in-flight spin.
func (q *Queue) HeadDrawn() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.headDrawn
}

// Pending returns a copy of the pending list.
func (q *Queue) Pending() []Participant {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Participant(nil), q.pending...)
}

// Completed returns a copy of the completed log.
func (q *Queue) Completed() []SpinResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]SpinResult(nil), q.completed...)
}

// KnownRedemptionIDs returns every redemption id already pending or completed.
func (q *Queue) KnownRedemptionIDs() map[string]struct{} {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := make(map[string]struct{}, len(q.pending)+len(q.completed))
	for _, p := range q.pending {
		if p.SourceRedemptionID != "" {
			ids[p.SourceRedemptionID] = struct{}{}
		}
	}
	for _, r := range q.completed {
		if r.Participant.SourceRedemptionID != "" {
			ids[r.Participant.SourceRedemptionID] = struct{}{}
		}
	}
	return ids
}

// TotalOwed sums the prize values in the completed log.
func (q *Queue) TotalOwed() decimal.Decimal {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return lo.Reduce(q.completed, func(acc decimal.Decimal, r SpinResult, _ int) decimal.Decimal {
		return acc.Add(r.PrizeValue)
	}, decimal.Zero)
}

// Snapshot returns a copy of the whole queue.
func (q *Queue) Snapshot() Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Snapshot{
		Pending:       append([]Participant(nil), q.pending...),
		Completed:     append([]SpinResult(nil), q.completed...),
		TotalEnqueued: q.totalEnqueued,
		TotalCanceled: q.totalCanceled,
		HeadDrawn:     q.headDrawn,
	}
}
