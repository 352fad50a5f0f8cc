package dispatch

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"

	"catmcp/internal/domain"
)

var boltCacheBucket = []byte("tool_cache")

// BoltCacheStore is a bbolt-backed CacheStore for deployments that want the
// response cache to survive restarts. Entries carry their store timestamp;
// expiry happens on read and stale entries are dropped lazily.
type BoltCacheStore struct {
	db  *bolt.DB
	ttl time.Duration

	now func() time.Time
}

func OpenBoltCacheStore(path string, ttl time.Duration) (*BoltCacheStore, error) {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltCacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltCacheStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *BoltCacheStore) Get(key string) ([]byte, bool) {
	var value []byte
	expired := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltCacheBucket).Get([]byte(key))
		if raw == nil || len(raw) < 8 {
			return nil
		}
		storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
		if s.now().Sub(storedAt) >= s.ttl {
			expired = true
			return nil
		}
		value = append([]byte(nil), raw[8:]...)
		return nil
	})
	if err != nil || value == nil {
		if expired {
			_ = s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket(boltCacheBucket).Delete([]byte(key))
			})
		}
		return nil, false
	}
	return value, true
}

func (s *BoltCacheStore) Put(key string, value []byte) error {
	record := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(record[:8], uint64(s.now().UnixNano()))
	copy(record[8:], value)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltCacheBucket).Put([]byte(key), record)
	})
}

func (s *BoltCacheStore) Close() error {
	return s.db.Close()
}
