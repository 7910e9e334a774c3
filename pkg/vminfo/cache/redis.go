package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

const defaultRedisPrefix = "vminfo:cache:"

// RedisConfig selects the redis server holding shared results.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TLS      bool
}

// RedisCache stores one key per fingerprint. Entries carry no TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	Now    func() time.Time
}

// NewRedisCache connects to the configured server and verifies it answers.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) key(fp inventory.Fingerprint) string {
	return c.prefix + string(fp)
}

func (c *RedisCache) Get(ctx context.Context, fp inventory.Fingerprint) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}
	return entry, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fp inventory.Fingerprint, vms []inventory.VirtualMachine) error {
	data, err := json.Marshal(newEntry(fp, vms, nowOr(c.Now)))
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, c.key(fp), data, 0).Err()
}

func (c *RedisCache) List(ctx context.Context) ([]Summary, error) {
	keys, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(keys))
	for _, key := range keys {
		fp := inventory.Fingerprint(key[len(c.prefix):])
		entry, ok, err := c.Get(ctx, fp)
		if err != nil || !ok {
			continue
		}
		summaries = append(summaries, Summary{Fingerprint: fp, Records: len(entry.VMs), FetchedAt: entry.FetchedAt})
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) scan(ctx context.Context) ([]string, error) {
	var cursor uint64
	keys := make([]string, 0)
	pattern := c.prefix + "*"
	for {
		res, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, res...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return keys, nil
}
