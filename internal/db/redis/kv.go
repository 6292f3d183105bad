package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/billsearch/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	return s.bytes(ctx, cmd, db.OpGet, key)
}

// GetEx retrieves a value and slides its expiry forward. ttl <= 0 behaves like Get.
func (s *Store) GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		return s.Get(ctx, key)
	}
	cmd := s.client.B().Arbitrary(db.OpGetEx).
		Keys(key).
		Args("PX", strconv.FormatInt(ttl.Milliseconds(), 10)).
		Build()
	return s.bytes(ctx, cmd, db.OpGetEx, key)
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	return s.exec(ctx, cmd, db.OpSet, key)
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	return s.exec(ctx, cmd, db.OpSet, key)
}

// Del removes a key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	return s.exec(ctx, s.client.B().Del().Key(key).Build(), db.OpDel, key)
}

func (s *Store) bytes(ctx context.Context, cmd rueidis.Completed, op, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: op, Key: key, Err: err}
	}
	return data, nil
}

func (s *Store) exec(ctx context.Context, cmd rueidis.Completed, op, key string) error {
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: op, Key: key, Err: err}
	}
	return nil
}
