package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWalletRegistry(t *testing.T, status int, body string) *WalletRegistry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallets", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req["username"])
		assert.Equal(t, "0x00000000000000000000000000000000000000a1", req["wallet"])
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.ExternalServices.WalletRegistry.BaseURL = srv.URL + "/"
	return NewWalletRegistry(cfg, zerolog.Nop())
}

func TestWalletRegistryValidate(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   errors.ErrorKind
		wantReason string
	}{
		{name: "created", status: http.StatusCreated, body: `{}`},
		{name: "ok", status: http.StatusOK, body: `{}`},
		{
			name:       "object details",
			status:     http.StatusBadRequest,
			body:       `{"error":"duplicate","details":{"reason":"wallet already registered","field":"wallet"}}`,
			wantKind:   errors.KindRejection,
			wantReason: "duplicate: wallet already registered",
		},
		{
			name:       "string details",
			status:     http.StatusBadRequest,
			body:       `{"error":"banned","details":"user is banned"}`,
			wantKind:   errors.KindRejection,
			wantReason: "banned: user is banned",
		},
		{
			name:       "error only",
			status:     http.StatusConflict,
			body:       `{"error":"duplicate"}`,
			wantKind:   errors.KindRejection,
			wantReason: "duplicate",
		},
		{
			name:       "unparseable body",
			status:     http.StatusBadRequest,
			body:       `nope`,
			wantKind:   errors.KindRejection,
			wantReason: "wallet registration rejected",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{}`,
			wantKind: errors.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestWalletRegistry(t, tt.status, tt.body)
			err := reg.Validate(context.Background(), "alice", "0x00000000000000000000000000000000000000a1")
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errors.Kind(err))
			if tt.wantReason != "" {
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantReason, appErr.Message)
			}
		})
	}
}

func TestWalletRegistryTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := &config.Config{}
	cfg.ExternalServices.WalletRegistry.BaseURL = srv.URL
	reg := NewWalletRegistry(cfg, zerolog.Nop())

	err := reg.Validate(context.Background(), "alice", "0x1")
	assert.Equal(t, errors.KindTransport, errors.Kind(err))
}
