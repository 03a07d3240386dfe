package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "0x00000000000000000000000000000000000000a1"
	walletB = "0x00000000000000000000000000000000000000b2"
)

type statusUpdate struct {
	RewardID     string
	RedemptionID string
	Status       providers.RedemptionStatus
}

type fakeSource struct {
	mu           sync.Mutex
	resolveCalls int
	reward       *providers.Reward
	createErr    error
	createCalls  int
	listErr      error
	redemptions  []providers.Redemption
	updates      []statusUpdate
}

func (f *fakeSource) ResolveChannel(_ context.Context, login string) (*providers.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	return &providers.Channel{ID: "chan-1", Login: login}, nil
}

func (f *fakeSource) FindReward(_ context.Context, _, _ string) (*providers.Reward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reward, nil
}

func (f *fakeSource) CreateReward(_ context.Context, _ string, spec providers.RewardSpec) (*providers.Reward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.reward = &providers.Reward{ID: "created", Title: spec.Title, Cost: spec.Cost}
	return f.reward, nil
}

func (f *fakeSource) ListUnfulfilled(_ context.Context, _, _ string) ([]providers.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]providers.Redemption(nil), f.redemptions...), nil
}

func (f *fakeSource) UpdateRedemption(_ context.Context, _, rewardID, redemptionID string, status providers.RedemptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{RewardID: rewardID, RedemptionID: redemptionID, Status: status})
	return nil
}

func (f *fakeSource) SendChatMessage(context.Context, string, string) error { return nil }

type fakeValidator struct {
	results map[string]error
	calls   []string
}

func (v *fakeValidator) Validate(_ context.Context, _ string, wallet string) error {
	v.calls = append(v.calls, wallet)
	return v.results[wallet]
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []providers.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, note providers.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func newTestIngestor(src *fakeSource, val *fakeValidator, notifier *fakeNotifier) *Ingestor {
	return New(src, val, notifier, nil, Config{
		ChannelLogin: "streamer",
		Reward:       providers.RewardSpec{Title: "Spin the Wheel", Cost: 5000, MaxPerUserPerStream: 1},
	}, zerolog.Nop())
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{walletA, true},
		{"0x00000000000000000000000000000000000000A1", true},
		{"not-an-address", false},
		{"00000000000000000000000000000000000000a1", false},
		{"0x1234", false},
		{"0xZZ000000000000000000000000000000000000a1", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidAddress(tt.in), tt.in)
	}
}

func TestPollMalformedAddressIsCanceledAndNotified(t *testing.T) {
	src := &fakeSource{
		reward: &providers.Reward{ID: "rw"},
		redemptions: []providers.Redemption{
			{ID: "r1", RewardID: "rw", UserLogin: "alice", UserName: "Alice", UserInput: "not-an-address"},
		},
	}
	val := &fakeValidator{}
	notifier := &fakeNotifier{}
	ing := newTestIngestor(src, val, notifier)

	q := queue.New()
	result, err := ing.Poll(context.Background(), q.KnownRedemptionIDs())
	require.NoError(t, err)

	assert.Empty(t, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, errors.KindValidation, result.Rejected[0].Kind)
	assert.Empty(t, val.calls, "malformed addresses never reach the registry")

	require.Len(t, src.updates, 1)
	assert.Equal(t, statusUpdate{RewardID: "rw", RedemptionID: "r1", Status: providers.RedemptionCanceled}, src.updates[0])
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, providers.NotifyRefund, notifier.notes[0].Kind)
	assert.Equal(t, "Alice", notifier.notes[0].DisplayName)
	assert.Equal(t, "chan-1", notifier.notes[0].ChannelID)

	q.Enqueue(result.Accepted...)
	assert.Equal(t, 0, q.Len())
}

func TestPollAcceptsValidatedWallet(t *testing.T) {
	src := &fakeSource{
		reward: &providers.Reward{ID: "rw"},
		redemptions: []providers.Redemption{
			{ID: "r1", RewardID: "rw", UserLogin: "alice", UserName: "Alice", UserInput: "  " + walletA + " "},
			{ID: "r2", RewardID: "rw", UserLogin: "bob", UserInput: walletB},
		},
	}
	ing := newTestIngestor(src, &fakeValidator{}, &fakeNotifier{})

	result, err := ing.Poll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)
	assert.Empty(t, src.updates, "accepted redemptions stay unfulfilled until drawn")

	first := result.Accepted[0]
	assert.Equal(t, common.HexToAddress(walletA).Hex(), first.WalletAddress, "addresses are checksummed")
	assert.True(t, strings.EqualFold(walletA, first.WalletAddress))
	assert.Equal(t, "Alice", first.DisplayName)
	assert.Equal(t, "r1", first.SourceRedemptionID)
	assert.Equal(t, "rw", first.SourceRewardID)
	assert.Equal(t, "bob", result.Accepted[1].DisplayName, "login is used when display name is missing")
}

func TestPollRegistryRejectionAndTransportAreRejections(t *testing.T) {
	src := &fakeSource{
		reward: &providers.Reward{ID: "rw"},
		redemptions: []providers.Redemption{
			{ID: "r1", UserLogin: "alice", UserInput: walletA},
			{ID: "r2", UserLogin: "bob", UserInput: walletB},
			{ID: "r3", UserLogin: "carol", UserInput: "0x00000000000000000000000000000000000000c3"},
		},
	}
	val := &fakeValidator{results: map[string]error{
		walletA: errors.New(errors.ErrExternalRejection, "duplicate: wallet already registered"),
		walletB: errors.New(errors.ErrTransport, "request failed"),
	}}
	notifier := &fakeNotifier{}
	ing := newTestIngestor(src, val, notifier)

	result, err := ing.Poll(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1, "one failing registration must not block the batch")
	assert.Equal(t, "r3", result.Accepted[0].SourceRedemptionID)

	require.Len(t, result.Rejected, 2)
	assert.Equal(t, errors.KindRejection, result.Rejected[0].Kind)
	assert.Equal(t, "duplicate: wallet already registered", result.Rejected[0].Reason)
	assert.Equal(t, errors.KindTransport, result.Rejected[1].Kind)

	require.Len(t, src.updates, 2)
	for _, u := range src.updates {
		assert.Equal(t, providers.RedemptionCanceled, u.Status)
		assert.Equal(t, "rw", u.RewardID, "missing reward id falls back to the wheel reward")
	}
	require.Len(t, notifier.notes, 2)
	assert.Equal(t, providers.NotifyRejected, notifier.notes[0].Kind)
	assert.Equal(t, "duplicate: wallet already registered", notifier.notes[0].Reason)
}

func TestPollSkipsKnownRedemptions(t *testing.T) {
	src := &fakeSource{
		reward: &providers.Reward{ID: "rw"},
		redemptions: []providers.Redemption{
			{ID: "r1", UserLogin: "alice", UserInput: walletA},
			{ID: "r2", UserLogin: "bob", UserInput: walletB},
		},
	}
	val := &fakeValidator{}
	ing := newTestIngestor(src, val, &fakeNotifier{})
	q := queue.New()

	first, err := ing.Poll(context.Background(), q.KnownRedemptionIDs())
	require.NoError(t, err)
	q.Enqueue(first.Accepted...)

	second, err := ing.Poll(context.Background(), q.KnownRedemptionIDs())
	require.NoError(t, err)
	assert.Empty(t, second.Accepted)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 2, q.Len())
	assert.Len(t, val.calls, 2, "known redemptions are not revalidated")
	assert.Equal(t, 1, src.resolveCalls, "channel identity is cached")
}

func TestPollListTransportErrorMutatesNothing(t *testing.T) {
	src := &fakeSource{
		reward:  &providers.Reward{ID: "rw"},
		listErr: errors.New(errors.ErrTransport, "timeout"),
	}
	notifier := &fakeNotifier{}
	ing := newTestIngestor(src, &fakeValidator{}, notifier)

	result, err := ing.Poll(context.Background(), nil)
	assert.Nil(t, result)
	assert.Equal(t, errors.KindTransport, errors.Kind(err))
	assert.Empty(t, src.updates)
	assert.Empty(t, notifier.notes)
}

func TestPollCreatesMissingReward(t *testing.T) {
	src := &fakeSource{}
	ing := newTestIngestor(src, &fakeValidator{}, &fakeNotifier{})

	_, err := ing.Poll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.createCalls)

	_, err = ing.Poll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.createCalls, "reward id is cached after creation")
}

func TestPollIneligibleChannelSurfacesEachCycle(t *testing.T) {
	src := &fakeSource{createErr: errors.New(errors.ErrExternalRejection, "channel is not eligible for channel point rewards")}
	ing := newTestIngestor(src, &fakeValidator{}, &fakeNotifier{})

	for i := 0; i < 2; i++ {
		_, err := ing.Poll(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.KindRejection, errors.Kind(err))
	}
	assert.Equal(t, 2, src.createCalls)
}

func TestPollRequiresChannelLogin(t *testing.T) {
	ing := New(&fakeSource{}, &fakeValidator{}, &fakeNotifier{}, nil, Config{}, zerolog.Nop())
	_, err := ing.Poll(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrConfigError))
}

func TestFulfillAndCancel(t *testing.T) {
	src := &fakeSource{reward: &providers.Reward{ID: "rw"}}
	notifier := &fakeNotifier{}
	ing := newTestIngestor(src, &fakeValidator{}, notifier)
	_, err := ing.Poll(context.Background(), nil)
	require.NoError(t, err)

	sourced := queue.Participant{DisplayName: "Alice", WalletAddress: walletA, SourceRedemptionID: "r1", SourceRewardID: "rw"}
	manual := queue.Participant{DisplayName: "Op", WalletAddress: walletB}

	require.NoError(t, ing.Fulfill(context.Background(), sourced, decimal.NewFromInt(17711)))
	require.NoError(t, ing.Cancel(context.Background(), sourced))
	require.NoError(t, ing.Fulfill(context.Background(), manual, decimal.NewFromInt(1)))
	require.NoError(t, ing.Cancel(context.Background(), manual))

	require.Len(t, src.updates, 2, "manual entries have no source side effects")
	assert.Equal(t, providers.RedemptionFulfilled, src.updates[0].Status)
	assert.Equal(t, providers.RedemptionCanceled, src.updates[1].Status)

	require.Len(t, notifier.notes, 2)
	assert.Equal(t, providers.NotifyWon, notifier.notes[0].Kind)
	assert.True(t, notifier.notes[0].Prize.Equal(decimal.NewFromInt(17711)))
	assert.Equal(t, providers.NotifyCanceled, notifier.notes[1].Kind)
}
