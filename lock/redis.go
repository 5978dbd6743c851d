package lock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Redis locks keys across every replica of the service that shares the same redis instance.
type Redis struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
}

func NewRedis(client redislock.RedisClient, prefix string, ttl, wait time.Duration) *Redis {
	return &Redis{
		client:  redislock.New(client),
		prefix:  prefix,
		ttl:     ttl,
		wait:    wait,
		backoff: 25 * time.Millisecond,
	}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)

	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	held := make([]*redislock.Lock, 0, len(keys))
	for _, k := range keys {
		l, err := r.client.Obtain(waitCtx, r.prefix+k, r.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(r.backoff),
		})
		if err != nil {
			r.release(ctx, held)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, errors.Errorf("lock %s is held elsewhere", k)
			}
			return nil, errors.WithMessagef(err, "failed to obtain lock %s", k)
		}
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(context.Background(), held) })
	}, nil
}

func (r *Redis) release(ctx context.Context, held []*redislock.Lock) {
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", held[i].Key()).Msg("failed to release lock")
		}
	}
}
