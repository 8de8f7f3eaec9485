package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/jjudge-oj/judge-worker/config"
	"github.com/jjudge-oj/judge-worker/types"
)

// RedisPublisher publishes progress events via Redis PUBLISH.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisClient builds a go-redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
	})
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish fires the event on progress:<submission_id>. A publish failure is
// logged and swallowed: it must never propagate into the verdict.
func (p *RedisPublisher) Publish(ctx context.Context, event types.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("progress: marshal event for submission %d: %v", event.SubmissionID, err)
		return nil
	}
	if err := p.client.Publish(ctx, channelFor(event.SubmissionID), payload).Err(); err != nil {
		log.Printf("progress: publish for submission %d: %v", event.SubmissionID, err)
		return nil
	}
	return nil
}
