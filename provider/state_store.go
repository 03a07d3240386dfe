package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	coreredis "github.com/Digital-Creators-Team/spin-rewards/db/redis"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/rs/zerolog"
)

// KV is the subset of the Redis client the state store needs.
type KV interface {
	ReadDoc(ctx context.Context, key string, dest interface{}) (int64, error)
	WriteDoc(ctx context.Context, key string, value interface{}) (int64, error)
}

// StateStore implements providers.StateStore on Redis. The snapshot never
// expires: the completed log must outlive any restart until it is settled.
type StateStore struct {
	kv     KV
	key    string
	logger zerolog.Logger
}

// NewStateStore creates a snapshot store
func NewStateStore(redisClient *coreredis.Client, cfg *config.Config, logger zerolog.Logger) *StateStore {
	return NewStateStoreWithKV(redisClient, cfg.Redis.SnapshotKey, logger)
}

// NewStateStoreWithKV creates a snapshot store over any KV
func NewStateStoreWithKV(kv KV, key string, logger zerolog.Logger) *StateStore {
	return &StateStore{
		kv:     kv,
		key:    key,
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

// Load decodes the stored snapshot into dest
func (s *StateStore) Load(ctx context.Context, dest interface{}) (bool, error) {
	rev, err := s.kv.ReadDoc(ctx, s.key, dest)
	if stderrors.Is(err, coreredis.ErrKeyNotFound) {
		s.logger.Debug().Str("key", s.key).Msg("No stored snapshot")
		return false, nil
	}
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return false, errors.Wrap(err, errors.ErrRedisError, "stored snapshot is corrupt")
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrRedisError, "failed to load snapshot")
	}
	s.logger.Info().Str("key", s.key).Int64("revision", rev).Msg("Snapshot loaded")
	return true, nil
}

// Save stores the snapshot
func (s *StateStore) Save(ctx context.Context, snapshot interface{}) error {
	rev, err := s.kv.WriteDoc(ctx, s.key, snapshot)
	if err != nil {
		return errors.Wrap(err, errors.ErrRedisError, "failed to save snapshot")
	}
	s.logger.Debug().Int64("revision", rev).Msg("Snapshot saved")
	return nil
}
