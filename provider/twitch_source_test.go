package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwitchSource(t *testing.T, handler http.Handler) *TwitchSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.ExternalServices.RedemptionAPI.BaseURL = srv.URL
	cfg.Twitch.ClientID = "client-123"
	cfg.Twitch.AccessToken = "token-abc"
	return NewTwitchSource(cfg, zerolog.Nop())
}

func TestTwitchSourceResolveChannel(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "somechannel", r.URL.Query().Get("login"))
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "client-123", r.Header.Get("Client-Id"))
		_, _ = w.Write([]byte(`{"data":[{"id":"42","login":"somechannel","display_name":"SomeChannel"}]}`))
	}))

	ch, err := src.ResolveChannel(context.Background(), "somechannel")
	require.NoError(t, err)
	assert.Equal(t, "42", ch.ID)
	assert.Equal(t, "SomeChannel", ch.Name)
}

func TestTwitchSourceResolveChannelNotFound(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	_, err := src.ResolveChannel(context.Background(), "ghost")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestTwitchSourceFindReward(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("only_manageable_rewards"))
		_, _ = w.Write([]byte(`{"data":[{"id":"r1","title":"Other","cost":1},{"id":"r2","title":"Spin the Wheel","cost":5000}]}`))
	}))

	reward, err := src.FindReward(context.Background(), "42", "Spin the Wheel")
	require.NoError(t, err)
	require.NotNil(t, reward)
	assert.Equal(t, "r2", reward.ID)

	missing, err := src.FindReward(context.Background(), "42", "Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTwitchSourceCreateReward(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "42", r.URL.Query().Get("broadcaster_id"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Spin the Wheel", body["title"])
		assert.Equal(t, float64(5000), body["cost"])
		assert.Equal(t, true, body["is_user_input_required"])
		assert.Equal(t, true, body["is_max_per_user_per_stream_enabled"])
		assert.Equal(t, float64(1), body["max_per_user_per_stream"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":[{"id":"new-reward","title":"Spin the Wheel","cost":5000}]}`))
	}))

	reward, err := src.CreateReward(context.Background(), "42", providers.RewardSpec{
		Title:               "Spin the Wheel",
		Cost:                5000,
		Prompt:              "wallet",
		RequiresUserInput:   true,
		MaxPerUserPerStream: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-reward", reward.ID)
}

func TestTwitchSourceCreateRewardIneligible(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Forbidden","status":403,"message":"The broadcaster must be a partner or affiliate"}`))
	}))

	_, err := src.CreateReward(context.Background(), "42", providers.RewardSpec{Title: "x", Cost: 1})
	require.Error(t, err)
	assert.Equal(t, errors.KindRejection, errors.Kind(err))
}

func TestTwitchSourceListUnfulfilledPaginates(t *testing.T) {
	calls := 0
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "UNFULFILLED", r.URL.Query().Get("status"))
		assert.Equal(t, "rw", r.URL.Query().Get("reward_id"))
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"a","user_name":"Alice","user_input":"0xabc","reward":{"id":"rw"}}],"pagination":{"cursor":"next"}}`))
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{"data":[{"id":"b","user_name":"Bob","user_input":"0xdef"}],"pagination":{}}`))
	}))

	redemptions, err := src.ListUnfulfilled(context.Background(), "42", "rw")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, redemptions, 2)
	assert.Equal(t, "a", redemptions[0].ID)
	assert.Equal(t, "rw", redemptions[1].RewardID, "missing reward id falls back to the queried one")
	assert.Equal(t, "0xdef", redemptions[1].UserInput)
}

func TestTwitchSourceListUnfulfilledServerError(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := src.ListUnfulfilled(context.Background(), "42", "rw")
	assert.Equal(t, errors.KindTransport, errors.Kind(err))
}

func TestTwitchSourceUpdateRedemption(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "red-1", r.URL.Query().Get("id"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CANCELED", body["status"])
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	require.NoError(t, src.UpdateRedemption(context.Background(), "42", "rw", "red-1", providers.RedemptionCanceled))
}

func TestTwitchSourceSendChatMessage(t *testing.T) {
	src := newTestTwitchSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/messages", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["broadcaster_id"])
		assert.Equal(t, "42", body["sender_id"])
		assert.Equal(t, "hello", body["message"])
		_, _ = w.Write([]byte(`{"data":[{"is_sent":true}]}`))
	}))

	require.NoError(t, src.SendChatMessage(context.Background(), "42", "hello"))
}
