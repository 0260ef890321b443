package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/mitchellh/mapstructure"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.SnapshotStore using Redis hashes.
// Each machine is one hash (state, inventory, version, updated_at) plus a
// member of a sorted-set index used by List.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for machine snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the namespace for every key the store writes.
// Machine hashes live under <prefix>machine:<id> and the index at <prefix>machines.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "dispenser:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(machineID string) string {
	return s.prefix + "machine:" + machineID
}

// indexKey sits outside the machine: key space, so no machine ID can collide with it.
func (s *Store) indexKey() string {
	return s.prefix + "machines"
}

// Save persists the snapshot as a hash, replacing any previous fields.
func (s *Store) Save(ctx context.Context, machineID string, snap *domain.Snapshot) error {
	if machineID == "" {
		return fmt.Errorf("%w: machineID cannot be empty", domain.ErrInvalidArgument)
	}

	fields := map[string]any{
		"machine_id": machineID,
		"state":      string(snap.State),
		"inventory":  snap.Inventory,
		"version":    snap.Version,
		"updated_at": snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(machineID))
	pipe.HSet(ctx, s.key(machineID), fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(machineID), s.ttl)
	}

	// Score = Now + TTL. If TTL = 0, score is far in the future.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: machineID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the snapshot hash and decodes it.
func (s *Store) Load(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.key(machineID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrMachineNotFound
	}
	return decodeSnapshot(fields)
}

// decodeSnapshot turns the string fields of a hash into a typed snapshot.
func decodeSnapshot(fields map[string]string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &snap,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the machine hash and its index entry.
func (s *Store) Delete(ctx context.Context, machineID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(machineID))
	pipe.ZRem(ctx, s.indexKey(), machineID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored machines, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired machines: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

var (
	ErrFailedToParseURL = errors.New("failed to parse redis connection string")
	ErrRedisNotReady    = errors.New("redis did not become ready within the given time period")
)

// Connect parses a redis:// URL and pings the server, retrying until ctx expires
// or attempts run out.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration) (*backend.Client, error) {
	opt, err := backend.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	if attempts < 1 {
		attempts = 1
	}

	for range attempts {
		client := backend.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}
