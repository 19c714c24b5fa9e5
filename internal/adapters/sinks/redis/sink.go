package redis

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"vr-screenshotter/internal/domain"
)

// Sink appends msgpack-encoded capture records to a Redis list so other
// services can consume completed captures.
type Sink struct {
	rdb *goredis.Client
	key string
}

// New connects using a redis:// URL.
func New(url, key string) (*Sink, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewWithClient(goredis.NewClient(opt), key), nil
}

func NewWithClient(rdb *goredis.Client, key string) *Sink {
	return &Sink{rdb: rdb, key: key}
}

func (s *Sink) Name() string { return "redis" }

func (s *Sink) Publish(ctx context.Context, rec domain.CaptureRecord) error {
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode capture record: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.key, b).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", s.key, err)
	}
	return nil
}

// Ping checks connectivity, used by the readiness probe.
func (s *Sink) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Sink) Close() error { return s.rdb.Close() }
