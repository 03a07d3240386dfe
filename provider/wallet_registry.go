package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/httpclient"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
)

// RejectionDetails is the structured part of a registry rejection.
type RejectionDetails struct {
	Reason   string `mapstructure:"reason"`
	Field    string `mapstructure:"field"`
	Username string `mapstructure:"username"`
	Wallet   string `mapstructure:"wallet"`
}

type rejectionBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details"`
}

// WalletRegistry implements providers.ParticipantValidator over HTTP.
type WalletRegistry struct {
	client *httpclient.Client
	logger zerolog.Logger
}

// NewWalletRegistry creates a wallet registry client
func NewWalletRegistry(cfg *config.Config, logger zerolog.Logger) *WalletRegistry {
	svc := cfg.ExternalServices.WalletRegistry
	timeout := svc.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WalletRegistry{
		client: httpclient.New(httpclient.Config{
			BaseURL:   strings.TrimRight(svc.BaseURL, "/"),
			Timeout:   timeout,
			Logger:    logger,
			RateLimit: svc.RateLimit,
			Burst:     svc.Burst,
		}),
		logger: logger.With().Str("component", "wallet_registry").Logger(),
	}
}

// Validate registers wallet for username. 2xx accepts; 4xx is a rejection
// whose message is the reason to show the user.
func (r *WalletRegistry) Validate(ctx context.Context, username, wallet string) error {
	resp, err := r.client.Post(ctx, "/wallets", map[string]string{
		"username": username,
		"wallet":   wallet,
	}, nil)
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	if resp.StatusCode >= 500 {
		return resp.Err()
	}

	reason := decodeRejection(resp.Body)
	r.logger.Info().
		Str("username", username).
		Str("wallet", wallet).
		Int("status", resp.StatusCode).
		Str("reason", reason).
		Msg("Wallet registration rejected")
	return errors.NewWithDebug(errors.ErrExternalRejection, reason, string(resp.Body))
}

// decodeRejection turns a `{error, details}` body into one readable reason.
// details may be a string or an object.
func decodeRejection(body []byte) string {
	var rb rejectionBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return "wallet registration rejected"
	}

	var detail string
	switch d := rb.Details.(type) {
	case string:
		detail = d
	case map[string]interface{}:
		var details RejectionDetails
		if err := mapstructure.Decode(d, &details); err == nil {
			detail = details.Reason
		}
	}

	switch {
	case rb.Error != "" && detail != "":
		return rb.Error + ": " + detail
	case rb.Error != "":
		return rb.Error
	case detail != "":
		return detail
	default:
		return "wallet registration rejected"
	}
}
