package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catmcp/internal/domain"
)

func TestMemoryCacheStore_TTLExpiry(t *testing.T) {
	store := NewMemoryCacheStore(time.Minute, 8)
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Put("k", []byte("v")))

	got, ok := store.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	current = current.Add(time.Minute)
	_, ok = store.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, store.Len())
}

func TestMemoryCacheStore_LRUEviction(t *testing.T) {
	store := NewMemoryCacheStore(time.Minute, 2)

	require.NoError(t, store.Put("a", []byte("1")))
	require.NoError(t, store.Put("b", []byte("2")))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := store.Get("a")
	require.True(t, ok)

	require.NoError(t, store.Put("c", []byte("3")))
	require.Equal(t, 2, store.Len())

	_, ok = store.Get("b")
	require.False(t, ok)
	_, ok = store.Get("a")
	require.True(t, ok)
	_, ok = store.Get("c")
	require.True(t, ok)
}

func TestCachedStrategy_ServesRepeatCallsFromCache(t *testing.T) {
	var calls atomic.Int64
	tool := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		calls.Add(1)
		return map[string]any{"count": calls.Load()}, nil
	}}

	s := NewCachedStrategy(NewMemoryCacheStore(time.Minute, 8), nil, nil)
	meta := domain.ToolMetadata{Name: "get_entities", Description: "x", Cacheable: true}
	args := json.RawMessage(`{"limit": 5}`)
	ec := &domain.ExecContext{}

	first, err := s.Execute(context.Background(), tool, args, ec, meta)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.Execute(context.Background(), tool, args, ec, meta)
	require.NoError(t, err)
	require.JSONEq(t, `{"count":1}`, string(second.(json.RawMessage)))
	require.Equal(t, int64(1), calls.Load())
}

func TestCachedStrategy_DistinctArgumentsMiss(t *testing.T) {
	var calls atomic.Int64
	tool := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		calls.Add(1)
		return "ok", nil
	}}

	s := NewCachedStrategy(NewMemoryCacheStore(time.Minute, 8), nil, nil)
	meta := domain.ToolMetadata{Name: "get_entities", Description: "x", Cacheable: true}
	ec := &domain.ExecContext{}

	_, err := s.Execute(context.Background(), tool, json.RawMessage(`{"limit":5}`), ec, meta)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), tool, json.RawMessage(`{"limit":6}`), ec, meta)
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestCachedStrategy_FormattingDoesNotSplitEntries(t *testing.T) {
	var calls atomic.Int64
	tool := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		calls.Add(1)
		return "ok", nil
	}}

	s := NewCachedStrategy(NewMemoryCacheStore(time.Minute, 8), nil, nil)
	meta := domain.ToolMetadata{Name: "get_entities", Description: "x", Cacheable: true}
	ec := &domain.ExecContext{}

	_, err := s.Execute(context.Background(), tool, json.RawMessage(`{"limit":5}`), ec, meta)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), tool, json.RawMessage("{ \"limit\": 5 }"), ec, meta)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())
}

func TestCachedStrategy_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int64
	tool := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return "recovered", nil
	}}

	s := NewCachedStrategy(NewMemoryCacheStore(time.Minute, 8), nil, nil)
	meta := domain.ToolMetadata{Name: "get_entities", Description: "x", Cacheable: true}
	ec := &domain.ExecContext{}
	args := json.RawMessage(`{}`)

	_, err := s.Execute(context.Background(), tool, args, ec, meta)
	require.Error(t, err)

	result, err := s.Execute(context.Background(), tool, args, ec, meta)
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
}

func TestCachedStrategy_NonCacheablePassesThrough(t *testing.T) {
	var calls atomic.Int64
	tool := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		calls.Add(1)
		return "ok", nil
	}}

	s := NewCachedStrategy(NewMemoryCacheStore(time.Minute, 8), nil, nil)
	meta := domain.ToolMetadata{Name: "plain", Description: "x"}
	ec := &domain.ExecContext{}

	for i := 0; i < 3; i++ {
		_, err := s.Execute(context.Background(), tool, nil, ec, meta)
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), calls.Load())
}
