package redistier

import (
	"context"
	"time"

	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ session.Tier = (*RedisTier)(nil)

const defaultTimeout = 3 * time.Second

// RedisTier is a persistent tier backed by Redis, for consoles that keep
// their state outside the local filesystem.
type RedisTier struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// Option configures a RedisTier
type Option func(*RedisTier)

// WithKeyPrefix namespaces the session keys
func WithKeyPrefix(prefix string) Option {
	return func(t *RedisTier) {
		t.prefix = prefix
	}
}

// WithTTL expires the stored keys after ttl. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(t *RedisTier) {
		t.ttl = ttl
	}
}

// New creates a tier over an existing client
func New(client redis.Cmdable, options ...Option) *RedisTier {
	t := &RedisTier{
		client:  client,
		prefix:  "attendance:session",
		timeout: defaultTimeout,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// NewFromURL creates a tier from a redis:// URL
func NewFromURL(url string, options ...Option) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "[redistier.NewFromURL] parse url")
	}
	return New(redis.NewClient(opts), options...), nil
}

func (t *RedisTier) key(k string) string {
	if t.prefix == "" {
		return k
	}
	return t.prefix + ":" + k
}

func (t *RedisTier) Get(keys ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = t.key(k)
	}
	vals, err := t.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisTier.Get]")
	}

	found := make(map[string]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			found[keys[i]] = s
		}
	}
	return found, nil
}

func (t *RedisTier) Put(values map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, t.key(k), v, t.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[RedisTier.Put]")
	}
	return nil
}

func (t *RedisTier) Delete(keys ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = t.key(k)
	}
	if err := t.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "[RedisTier.Delete]")
	}
	return nil
}
