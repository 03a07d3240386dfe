package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/httpclient"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const redemptionPageSize = 50

// TwitchSource implements providers.RedemptionSource against the Helix API.
type TwitchSource struct {
	client *httpclient.Client
	logger zerolog.Logger
}

// NewTwitchSource creates a Helix redemption source
func NewTwitchSource(cfg *config.Config, logger zerolog.Logger) *TwitchSource {
	svc := cfg.ExternalServices.RedemptionAPI
	timeout := svc.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &TwitchSource{
		client: httpclient.New(httpclient.Config{
			BaseURL:     strings.TrimRight(svc.BaseURL, "/"),
			Timeout:     timeout,
			Logger:      logger,
			Headers:     map[string]string{"Client-Id": cfg.Twitch.ClientID},
			BearerToken: cfg.Twitch.AccessToken,
			RateLimit:   svc.RateLimit,
			Burst:       svc.Burst,
		}),
		logger: logger.With().Str("component", "twitch_source").Logger(),
	}
}

type helixPage[T any] struct {
	Data       []T `json:"data"`
	Pagination struct {
		Cursor string `json:"cursor"`
	} `json:"pagination"`
}

type helixUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type helixRedemption struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserLogin  string    `json:"user_login"`
	UserName   string    `json:"user_name"`
	UserInput  string    `json:"user_input"`
	Status     string    `json:"status"`
	RedeemedAt time.Time `json:"redeemed_at"`
	Reward     struct {
		ID string `json:"id"`
	} `json:"reward"`
}

// ResolveChannel looks up the broadcaster by login
func (s *TwitchSource) ResolveChannel(ctx context.Context, login string) (*providers.Channel, error) {
	var page helixPage[helixUser]
	if err := s.client.GetJSON(ctx, "/users?login="+url.QueryEscape(login), nil, &page); err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, errors.NewWithDebug(errors.ErrNotFound, "channel not found", login)
	}
	u := page.Data[0]
	return &providers.Channel{ID: u.ID, Login: u.Login, Name: u.DisplayName}, nil
}

// FindReward returns the manageable reward with the given title, or nil
func (s *TwitchSource) FindReward(ctx context.Context, channelID, title string) (*providers.Reward, error) {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	q.Set("only_manageable_rewards", "true")

	var page helixPage[providers.Reward]
	if err := s.client.GetJSON(ctx, "/channel_points/custom_rewards?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	reward, ok := lo.Find(page.Data, func(r providers.Reward) bool { return r.Title == title })
	if !ok {
		return nil, nil
	}
	return &reward, nil
}

// CreateReward creates the wheel reward. A 403 means the channel cannot own
// custom rewards (not affiliate or partner).
func (s *TwitchSource) CreateReward(ctx context.Context, channelID string, spec providers.RewardSpec) (*providers.Reward, error) {
	body := map[string]interface{}{
		"title":                              spec.Title,
		"cost":                               spec.Cost,
		"prompt":                             spec.Prompt,
		"is_user_input_required":             spec.RequiresUserInput,
		"is_max_per_user_per_stream_enabled": spec.MaxPerUserPerStream > 0,
		"max_per_user_per_stream":            spec.MaxPerUserPerStream,
	}

	resp, err := s.client.Post(ctx, "/channel_points/custom_rewards?broadcaster_id="+url.QueryEscape(channelID), body, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, errors.NewWithDebug(errors.ErrExternalRejection, "channel is not eligible for channel point rewards",
			string(resp.Body))
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var page helixPage[providers.Reward]
	if err := resp.Unmarshal(&page); err != nil {
		return nil, fmt.Errorf("failed to decode reward: %w", err)
	}
	if len(page.Data) == 0 {
		return nil, errors.New(errors.ErrExternalRejection, "reward creation returned no reward")
	}

	s.logger.Info().Str("reward_id", page.Data[0].ID).Str("title", spec.Title).Msg("Created channel reward")
	return &page.Data[0], nil
}

// ListUnfulfilled returns every unfulfilled redemption, oldest first
func (s *TwitchSource) ListUnfulfilled(ctx context.Context, channelID, rewardID string) ([]providers.Redemption, error) {
	var out []providers.Redemption
	cursor := ""
	for {
		q := url.Values{}
		q.Set("broadcaster_id", channelID)
		q.Set("reward_id", rewardID)
		q.Set("status", "UNFULFILLED")
		q.Set("sort", "OLDEST")
		q.Set("first", fmt.Sprint(redemptionPageSize))
		if cursor != "" {
			q.Set("after", cursor)
		}

		var page helixPage[helixRedemption]
		if err := s.client.GetJSON(ctx, "/channel_points/custom_rewards/redemptions?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Data {
			out = append(out, providers.Redemption{
				ID:         r.ID,
				RewardID:   lo.Ternary(r.Reward.ID != "", r.Reward.ID, rewardID),
				UserID:     r.UserID,
				UserLogin:  r.UserLogin,
				UserName:   r.UserName,
				UserInput:  r.UserInput,
				Status:     r.Status,
				RedeemedAt: r.RedeemedAt,
			})
		}

		cursor = page.Pagination.Cursor
		if cursor == "" || len(page.Data) == 0 {
			return out, nil
		}
	}
}

// UpdateRedemption sets a redemption to CANCELED (refunding points) or FULFILLED
func (s *TwitchSource) UpdateRedemption(ctx context.Context, channelID, rewardID, redemptionID string, status providers.RedemptionStatus) error {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	q.Set("reward_id", rewardID)
	q.Set("id", redemptionID)

	return s.client.PatchJSON(ctx, "/channel_points/custom_rewards/redemptions?"+q.Encode(),
		map[string]string{"status": string(status)}, nil, nil)
}

// SendChatMessage posts a message to the channel chat as the broadcaster
func (s *TwitchSource) SendChatMessage(ctx context.Context, channelID, message string) error {
	return s.client.PostJSON(ctx, "/chat/messages", map[string]string{
		"broadcaster_id": channelID,
		"sender_id":      channelID,
		"message":        message,
	}, nil, nil)
}
