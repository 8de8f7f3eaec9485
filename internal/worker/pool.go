// Package worker runs the fixed pool of independent worker tasks that
// consume submissions and drive them through the Judge.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/jjudge-oj/judge-worker/internal/judge"
	"github.com/jjudge-oj/judge-worker/internal/mq"
	"github.com/jjudge-oj/judge-worker/types"
)

// Judger is the subset of judge.Judge the pool needs, narrowed to an
// interface so tests can substitute a fake orchestrator.
type Judger interface {
	Judge(ctx context.Context, sub types.Submission) judge.Result
}

// Pool owns a fixed number of worker goroutines, each with its own
// dedicated subscription loop against the ingress queue. Workers are
// never shared across submissions.
type Pool struct {
	backend        mq.Backend
	judge          Judger
	consumeQueue   string
	produceQueue   string
	concurrency    int
	maxSourceBytes int64
}

// NewPool builds a Pool sized by concurrency (config.WorkerConcurrency).
// maxSourceBytes (config.SourceMaxBytes) is enforced against every ingress
// submission's source code before it is ever handed to Judge.
func NewPool(backend mq.Backend, j Judger, consumeQueue, produceQueue string, concurrency int, maxSourceBytes int64) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		backend:        backend,
		judge:          j,
		consumeQueue:   consumeQueue,
		produceQueue:   produceQueue,
		concurrency:    concurrency,
		maxSourceBytes: maxSourceBytes,
	}
}

// Run starts `concurrency` independent subscription loops and blocks until
// ctx is cancelled or all loops exit.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := p.backend.Subscribe(ctx, p.consumeQueue, p.handle); err != nil && ctx.Err() == nil {
				log.Printf("worker %d: subscription loop exited: %v", workerID, err)
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// handle parses one ingress delivery, runs it through Judge end to end, and
// publishes the egress result only after the terminal verdict exists. The
// underlying mq.Backend acks the delivery only once this handler returns
// without error.
func (p *Pool) handle(ctx context.Context, msg mq.Message) error {
	var ingress types.IngressMessage
	if err := json.Unmarshal(msg.Data, &ingress); err != nil {
		log.Printf("worker: malformed ingress message %s: %v", msg.ID, err)
		return nil // no retry for malformed input
	}

	sub, err := ingress.ToSubmission(p.maxSourceBytes)
	if err != nil {
		log.Printf("worker: invalid submission in message %s: %v", msg.ID, err)
		return nil
	}

	result := p.judge.Judge(ctx, sub)

	egress := types.EgressMessage{
		SubmissionID: sub.SubmissionID,
		ProblemID:    sub.ProblemID,
		Username:     sub.Username,
		SubmitStatus: result.Verdict,
		RuntimeMs:    result.RuntimeMs,
		MemoryKb:     result.MemoryKb,
	}
	payload, err := egress.Marshal()
	if err != nil {
		log.Printf("worker: marshal egress for submission %d: %v", sub.SubmissionID, err)
		return err
	}

	dedupKey := map[string]string{"dedupKey": strconv.FormatInt(sub.SubmissionID, 10)}
	if _, err := p.backend.Publish(ctx, p.produceQueue, payload, dedupKey); err != nil {
		log.Printf("worker: publish result for submission %d: %v", sub.SubmissionID, err)
		return err
	}
	return nil
}
