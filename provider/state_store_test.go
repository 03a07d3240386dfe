package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	coreredis "github.com/Digital-Creators-Team/spin-rewards/db/redis"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	data map[string][]byte
	rev  int64
}

func (m *memoryKV) ReadDoc(_ context.Context, key string, dest interface{}) (int64, error) {
	raw, ok := m.data[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", coreredis.ErrKeyNotFound, key)
	}
	return m.rev, json.Unmarshal(raw, dest)
}

func (m *memoryKV) WriteDoc(_ context.Context, key string, value interface{}) (int64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	m.data[key] = raw
	m.rev++
	return m.rev, nil
}

func TestStateStoreRoundTrip(t *testing.T) {
	kv := &memoryKV{data: map[string][]byte{}}
	store := NewStateStoreWithKV(kv, "snap", zerolog.Nop())

	var empty map[string]int
	found, err := store.Load(context.Background(), &empty)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(context.Background(), map[string]int{"pending": 2}))

	var got map[string]int
	found, err = store.Load(context.Background(), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, got["pending"])
	assert.Equal(t, int64(1), kv.rev)
}

func TestStateStoreCorruptSnapshot(t *testing.T) {
	kv := &memoryKV{data: map[string][]byte{"snap": []byte("{not json")}}
	store := NewStateStoreWithKV(kv, "snap", zerolog.Nop())

	var got map[string]int
	_, err := store.Load(context.Background(), &got)
	assert.True(t, errors.HasCode(err, errors.ErrRedisError))
}
