package progress

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/jjudge-oj/judge-worker/types"
)

func TestChannelForFormatsSubmissionID(t *testing.T) {
	assert.Equal(t, "progress:42", channelFor(42))
}

func TestPublishSwallowsTransportFailure(t *testing.T) {
	// Point at a port nothing listens on: the publish itself fails, but
	// that must never surface into the verdict.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	publisher := NewRedisPublisher(client)

	err := publisher.Publish(context.Background(), types.ProgressEvent{SubmissionID: 1, Status: "JUDGING"})
	assert.NoError(t, err)
}
