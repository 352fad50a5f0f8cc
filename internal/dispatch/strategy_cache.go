package dispatch

import (
	"bytes"
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// CacheStore is the backing store for the cached strategy. Implementations
// own TTL expiry; Get must never return an expired entry.
type CacheStore interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Close() error
}

// MemoryCacheStore is a bounded in-memory TTL cache with LRU eviction.
type MemoryCacheStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List

	// now is swappable for tests.
	now func() time.Time
}

type memoryCacheEntry struct {
	key      string
	value    []byte
	storedAt time.Time
}

func NewMemoryCacheStore(ttl time.Duration, maxEntries int) *MemoryCacheStore {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = domain.DefaultCacheMaxEntries
	}
	return &MemoryCacheStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

func (s *MemoryCacheStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryCacheEntry)
	if s.now().Sub(entry.storedAt) >= s.ttl {
		s.order.Remove(elem)
		delete(s.entries, key)
		return nil, false
	}
	s.order.MoveToFront(elem)
	return append([]byte(nil), entry.value...), true
}

func (s *MemoryCacheStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryCacheEntry)
		entry.value = append([]byte(nil), value...)
		entry.storedAt = s.now()
		s.order.MoveToFront(elem)
		return nil
	}

	entry := &memoryCacheEntry{
		key:      key,
		value:    append([]byte(nil), value...),
		storedAt: s.now(),
	}
	s.entries[key] = s.order.PushFront(entry)

	for len(s.entries) > s.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryCacheEntry).key)
	}
	return nil
}

func (s *MemoryCacheStore) Close() error {
	return nil
}

// Len reports the live entry count.
func (s *MemoryCacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CachedStrategy serves repeated identical calls from a time-boxed cache.
// Tools without the cacheable flag pass straight through. The cache is
// strategy-scoped: one store per strategy instance.
type CachedStrategy struct {
	store   CacheStore
	logger  *zap.Logger
	metrics domain.Metrics
}

func NewCachedStrategy(store CacheStore, logger *zap.Logger, metrics domain.Metrics) *CachedStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryCacheStore(domain.DefaultCacheTTL, domain.DefaultCacheMaxEntries)
	}
	return &CachedStrategy{
		store:   store,
		logger:  logger.Named("cached_strategy"),
		metrics: metrics,
	}
}

func (s *CachedStrategy) Execute(ctx context.Context, tool domain.Tool, args json.RawMessage, ec *domain.ExecContext, meta domain.ToolMetadata) (any, error) {
	if !meta.Cacheable {
		return tool.Execute(ctx, args, ec)
	}

	key := cacheKey(meta.Name, args)
	if cached, ok := s.store.Get(key); ok {
		s.recordEvent(meta.Name, domain.CacheEventHit)
		return json.RawMessage(cached), nil
	}
	s.recordEvent(meta.Name, domain.CacheEventMiss)

	result, err := tool.Execute(ctx, args, ec)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		// Result is still good; it just cannot be cached.
		s.logger.Warn("cache store skipped, result not serializable",
			zap.String("tool", meta.Name), zap.Error(err))
		return result, nil
	}
	if err := s.store.Put(key, encoded); err != nil {
		s.logger.Warn("cache store failed",
			zap.String("tool", meta.Name), zap.Error(err))
		return result, nil
	}
	s.recordEvent(meta.Name, domain.CacheEventStore)
	return result, nil
}

func (s *CachedStrategy) recordEvent(tool string, event domain.CacheEvent) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheEvent(tool, event)
}

// cacheKey derives a stable key from the tool name and the serialized
// arguments. Arguments are compacted first so formatting differences do not
// split cache entries; the digest keeps keys bounded.
func cacheKey(name string, args json.RawMessage) string {
	var compact bytes.Buffer
	if len(args) > 0 {
		if err := json.Compact(&compact, args); err != nil {
			compact.Reset()
			compact.Write(args)
		}
	}
	sum := sha256.Sum256(compact.Bytes())
	return name + ":" + hex.EncodeToString(sum[:])
}
