package scan

import (
	"context"
	"sync"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/classify"
	"github.com/marisel-vam/ai-inbox-zero/internal/classify/local"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/ratelimit"
	"go.uber.org/zap"
)

// PoolResult pairs a message with its classification
type PoolResult struct {
	Message        mailbox.RawMessage
	Classification classify.Result
}

// Pool runs classifications with a fixed number of workers. The worker
// count caps parallelism; the rate limiter independently caps call rate.
// Every submitted message yields exactly one result: a failed or timed
// out service call degrades to the local heuristic instead of erroring.
type Pool struct {
	concurrency int
	limiter     *ratelimit.Limiter
	classifier  classify.Classifier
	timeout     time.Duration
	userName    string
	log         *zap.SugaredLogger
}

// NewPool creates a Pool with exactly concurrency workers
func NewPool(concurrency int, limiter *ratelimit.Limiter, classifier classify.Classifier, timeout time.Duration, userName string, log *zap.SugaredLogger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		concurrency: concurrency,
		limiter:     limiter,
		classifier:  classifier,
		timeout:     timeout,
		userName:    userName,
		log:         log,
	}
}

// Run classifies msgs and streams results as they complete. Result order
// is unspecified. The returned channel closes once all submitted work is
// done; after ctx is cancelled no further messages are submitted, but
// in-flight ones still complete and deliver their result.
func (p *Pool) Run(ctx context.Context, msgs []mailbox.RawMessage) <-chan PoolResult {
	jobs := make(chan mailbox.RawMessage)
	results := make(chan PoolResult, len(msgs))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				results <- PoolResult{
					Message:        msg,
					Classification: p.classifyOne(ctx, msg),
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, msg := range msgs {
			select {
			case jobs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// classifyOne performs the per-message algorithm: limiter slot, bounded
// service call, heuristic fallback on any failure. It never returns an
// error; one message's failure must not abort the batch.
func (p *Pool) classifyOne(ctx context.Context, msg mailbox.RawMessage) classify.Result {
	if err := p.limiter.Acquire(ctx); err != nil {
		p.log.Warnf("[Scan] Rate limiter wait aborted for %s: %v", msg.ID, err)
		return local.Classify(msg, p.userName)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	result, err := p.classifier.Classify(callCtx, msg)
	cancel()

	if err != nil {
		p.log.Warnf("[Scan] Classification failed for %s, using fallback: %v", msg.ID, err)
		return local.Classify(msg, p.userName)
	}

	return result
}
