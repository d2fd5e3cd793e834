package binstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
)

const (
	binKeyPrefix   = "bin:"
	changedChannel = "smartbin:bins:changed"
)

// Redis is the production Store: one hash per bin under bin:<id>, and a
// pub/sub notification after every write. Subscribers reload the entire
// collection on every notification, which gives the same full-replacement
// snapshot semantics the dashboard core expects.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func binKey(id string) string { return binKeyPrefix + id }

func (r *Redis) Update(ctx context.Context, binID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	vals := make(map[string]string, len(fields))
	for k, v := range fields {
		vals[k] = fieldString(v)
	}
	if err := r.rdb.HSet(ctx, binKey(binID), vals).Err(); err != nil {
		return fmt.Errorf("update bin %s: %w", binID, err)
	}
	if err := r.rdb.Publish(ctx, changedChannel, binID).Err(); err != nil {
		return fmt.Errorf("notify change for bin %s: %w", binID, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	pubsub := r.rdb.Subscribe(subCtx, changedChannel)
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	fn(snap)

	go r.pump(subCtx, pubsub, fn)

	return newSubscription(func() {
		cancel()
		_ = pubsub.Close()
	}), nil
}

func (r *Redis) pump(ctx context.Context, pubsub *redis.PubSub, fn SnapshotFunc) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			snap, err := r.loadWithRetry(ctx)
			if err != nil {
				slog.Error("bin snapshot reload failed", "bin_id", msg.Payload, "error", err)
				continue
			}
			fn(snap)
		}
	}
}

// loadWithRetry retries transient reload failures with exponential backoff
// and jitter so a Redis hiccup does not silently freeze the feed.
func (r *Redis) loadWithRetry(ctx context.Context) (model.Snapshot, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	return backoff.Retry(ctx, func() (model.Snapshot, error) {
		return r.load(ctx)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
}

func (r *Redis) load(ctx context.Context) (model.Snapshot, error) {
	snap := make(model.Snapshot)
	iter := r.rdb.Scan(ctx, 0, binKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := strings.TrimPrefix(key, binKeyPrefix)
		if id == "" || id == key {
			continue
		}
		fields, err := r.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("load bin %s: %w", id, err)
		}
		if len(fields) == 0 {
			// Deleted between SCAN and HGETALL.
			continue
		}
		snap[id] = recordFromFields(id, fields)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan bins: %w", err)
	}
	return snap, nil
}
