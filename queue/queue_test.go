package queue

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInvariant(t *testing.T, q *Queue) {
	t.Helper()
	s := q.Snapshot()
	assert.Equal(t, s.TotalEnqueued-s.TotalCanceled, len(s.Pending)+len(s.Completed),
		"pending+completed must equal enqueued-canceled")
}

func TestEnqueueKeepsOrderAndAssignsIDs(t *testing.T) {
	q := New()
	added := q.Enqueue(
		Participant{WalletAddress: "0x1", DisplayName: "a"},
		Participant{WalletAddress: "0x1", DisplayName: "a"},
		Participant{WalletAddress: "0x2", DisplayName: "b", SourceRedemptionID: "r2"},
	)

	require.Len(t, added, 3)
	assert.NotEqual(t, added[0].ID, added[1].ID, "duplicate wallets are distinct entries")
	assert.False(t, added[0].EnqueuedAt.IsZero())
	assert.Equal(t, []string{"a", "a", "b"}, []string{q.Pending()[0].DisplayName, q.Pending()[1].DisplayName, q.Pending()[2].DisplayName})
	assert.True(t, added[2].ExternallySourced())
	assert.False(t, added[0].ExternallySourced())
	assertInvariant(t, q)
}

func TestDrawAndComplete(t *testing.T) {
	q := New()
	q.Enqueue(Participant{WalletAddress: "0xA"}, Participant{WalletAddress: "0xB"})

	head, err := q.Draw()
	require.NoError(t, err)
	assert.Equal(t, "0xA", head.WalletAddress)

	_, err = q.Draw()
	assert.True(t, errors.HasCode(err, errors.ErrSpinInFlight))

	_, err = q.Remove(0)
	assert.True(t, errors.HasCode(err, errors.ErrParticipantDrawn), "drawn head must not be removable")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result, err := q.Complete(decimal.NewFromInt(10), 1, at)
	require.NoError(t, err)
	assert.Equal(t, "0xA", result.Participant.WalletAddress)
	assert.True(t, result.PrizeValue.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, at, result.Timestamp)

	assert.Equal(t, 1, q.Len())
	assert.False(t, q.HeadDrawn())
	require.Len(t, q.Completed(), 1)
	assertInvariant(t, q)
}

func TestCompleteRequiresDrawnHead(t *testing.T) {
	q := New()
	_, err := q.Complete(decimal.NewFromInt(1), 0, time.Now())
	assert.Error(t, err)

	_, err = q.Draw()
	assert.True(t, errors.HasCode(err, errors.ErrEmptyQueue))

	q.Enqueue(Participant{WalletAddress: "0xA"})
	_, err = q.Complete(decimal.NewFromInt(1), 0, time.Now())
	assert.Error(t, err, "head must be drawn before it resolves")
}

func TestRemove(t *testing.T) {
	q := New()
	q.Enqueue(Participant{DisplayName: "a"}, Participant{DisplayName: "b"}, Participant{DisplayName: "c"})

	removed, err := q.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.DisplayName)
	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].DisplayName)
	assert.Equal(t, "c", pending[1].DisplayName)

	_, err = q.Remove(5)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	_, err = q.Remove(-1)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	assertInvariant(t, q)
}

func TestReleaseUnlocksHead(t *testing.T) {
	q := New()
	q.Enqueue(Participant{DisplayName: "a"})
	_, err := q.Draw()
	require.NoError(t, err)
	q.Release()

	removed, err := q.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.DisplayName)
}

func TestKnownRedemptionIDsCoversPendingAndCompleted(t *testing.T) {
	q := New()
	q.Enqueue(Participant{SourceRedemptionID: "r1"}, Participant{SourceRedemptionID: "r2"}, Participant{})
	_, err := q.Draw()
	require.NoError(t, err)
	_, err = q.Complete(decimal.NewFromInt(5), 0, time.Now())
	require.NoError(t, err)

	ids := q.KnownRedemptionIDs()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "r1")
	assert.Contains(t, ids, "r2")
}

func TestTotalOwed(t *testing.T) {
	q := New()
	q.Enqueue(Participant{}, Participant{})
	for _, prize := range []string{"10", "20.5"} {
		_, err := q.Draw()
		require.NoError(t, err)
		_, err = q.Complete(decimal.RequireFromString(prize), 0, time.Now())
		require.NoError(t, err)
	}
	assert.True(t, q.TotalOwed().Equal(decimal.RequireFromString("30.5")))
}

func TestRestore(t *testing.T) {
	q := New()
	q.Enqueue(Participant{DisplayName: "a"}, Participant{DisplayName: "b"})
	_, _ = q.Draw()
	_, _ = q.Complete(decimal.NewFromInt(3), 0, time.Now())
	_, _ = q.Draw()

	restored := Restore(q.Snapshot())
	assert.False(t, restored.HeadDrawn(), "in-flight draw does not survive a restore")
	assert.Equal(t, 1, restored.Len())
	assert.Len(t, restored.Completed(), 1)
	assertInvariant(t, restored)

	broken := Restore(Snapshot{Pending: []Participant{{}}, TotalEnqueued: 7, TotalCanceled: 1})
	assertInvariant(t, broken)
}

func TestInvariantUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	q := New()

	for i := 0; i < 2000; i++ {
		switch rng.IntN(5) {
		case 0, 1:
			q.Enqueue(Participant{DisplayName: "p"})
		case 2:
			if n := q.Len(); n > 0 {
				_, _ = q.Remove(rng.IntN(n))
			}
		case 3:
			_, _ = q.Draw()
		case 4:
			_, _ = q.Complete(decimal.NewFromInt(int64(rng.IntN(100))), 0, time.Now())
		}
		assertInvariant(t, q)
	}
}
