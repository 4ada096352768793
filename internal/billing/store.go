package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-kasir/internal/cart"
)

// ErrNotFound is returned when no snapshot is stored for a bill.
var ErrNotFound = errors.New("bill snapshot not found")

// Record is the persisted form of a finalised bill.
type Record struct {
	BillID      int64         `json:"bill_id"`
	BillNumber  string        `json:"bill_number"`
	Table       string        `json:"table_id,omitempty"`
	FinalizedAt time.Time     `json:"finalized_at"`
	Snapshot    cart.Snapshot `json:"snapshot"`
}

// Store keeps bill snapshots in Redis as JSON.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore constructs a store. A non-positive ttl keeps snapshots forever.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if ttl < 0 {
		ttl = 0
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Key is the Redis key of a bill snapshot.
func (s *Store) Key(billID int64) string {
	k := "bill:" + strconv.FormatInt(billID, 10)
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get loads the stored record for billID.
func (s *Store) Get(ctx context.Context, billID int64) (Record, error) {
	var rec Record
	ok, err := s.getJSON(ctx, s.Key(billID), &rec)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Put stores rec under its bill id.
func (s *Store) Put(ctx context.Context, rec Record) error {
	return s.setJSON(ctx, s.Key(rec.BillID), rec)
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	if s == nil || s.client == nil {
		return errors.New("billing: redis client not configured")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}
