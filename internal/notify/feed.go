// Package notify delivers alerts to operators beyond the artifact file: a Redis feed that
// dashboards can read or subscribe to, and SendGrid email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultFeedKey     = "nexwatch:alerts"
	DefaultFeedChannel = "nexwatch:alerts:live"
	DefaultFeedLength  = 100
)

// Feed keeps the most recent alerts in a capped Redis list and publishes each new one.
type Feed struct {
	client  *redis.Client
	key     string
	channel string
	maxLen  int64
}

func NewFeed(redisAddr string) (*Feed, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Feed{
		client:  client,
		key:     DefaultFeedKey,
		channel: DefaultFeedChannel,
		maxLen:  DefaultFeedLength,
	}, nil
}

func (f *Feed) Notify(ctx context.Context, a *alert.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	pipe := f.client.TxPipeline()
	pipe.LPush(ctx, f.key, data)
	pipe.LTrim(ctx, f.key, 0, f.maxLen-1)
	pipe.Publish(ctx, f.channel, data)
	_, err = pipe.Exec(ctx)

	return err
}

// Recent returns up to limit alerts, newest first. Entries that fail to decode are skipped.
func (f *Feed) Recent(ctx context.Context, limit int) ([]*alert.Alert, error) {
	if limit <= 0 || int64(limit) > f.maxLen {
		limit = int(f.maxLen)
	}

	raw, err := f.client.LRange(ctx, f.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	alerts := make([]*alert.Alert, 0, len(raw))
	for _, item := range raw {
		var a alert.Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		alerts = append(alerts, &a)
	}

	return alerts, nil
}

// Subscribe returns a subscription to alerts as they are published.
func (f *Feed) Subscribe(ctx context.Context) *redis.PubSub {
	return f.client.Subscribe(ctx, f.channel)
}

func (f *Feed) Close() error {
	return f.client.Close()
}
