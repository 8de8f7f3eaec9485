// Package progress publishes ordered, submission-scoped status events.
package progress

import (
	"context"
	"strconv"

	"github.com/jjudge-oj/judge-worker/types"
)

// Publisher is the progress bus contract. Delivery is best-effort:
// implementations must never return an error that the caller is expected
// to propagate into the verdict.
type Publisher interface {
	Publish(ctx context.Context, event types.ProgressEvent) error
}

// channelFor returns the per-submission logical channel name
// progress:<submission_id>.
func channelFor(submissionID int64) string {
	return "progress:" + strconv.FormatInt(submissionID, 10)
}
