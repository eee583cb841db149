package judge

import (
	"context"
	"fmt"
	"time"

	"codebench/internal/common"
)

// Pipeline composes the dispatch and poll halves of a grading round trip.
// One Pipeline is shared by every request; it holds no per-invocation state.
type Pipeline struct {
	client    *Client
	interval  time.Duration
	maxRounds int
}

func NewPipeline(client *Client, interval time.Duration, maxRounds int) *Pipeline {
	if interval <= 0 {
		interval = time.Second
	}
	if maxRounds <= 0 {
		maxRounds = 60
	}
	return &Pipeline{client: client, interval: interval, maxRounds: maxRounds}
}

// Execute dispatches the batch and blocks until every test case reaches a
// terminal status, returning results in batch order.
func (p *Pipeline) Execute(ctx context.Context, items []BatchItem) ([]TestResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tokens, err := p.client.SubmitBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	return p.AwaitResults(ctx, tokens)
}

// AwaitResults re-queries the full token set on a fixed interval until every
// result is terminal. The round budget keeps an executor hang from holding
// the request open forever; on expiry the caller gets ErrGradingTimeout.
func (p *Pipeline) AwaitResults(ctx context.Context, tokens []string) ([]TestResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	for round := 1; ; round++ {
		results, err := p.client.FetchBatch(ctx, tokens)
		if err != nil {
			return nil, err
		}

		if allTerminal(results) {
			return results, nil
		}

		if round >= p.maxRounds {
			return nil, fmt.Errorf("results still pending after %d polling rounds: %w", p.maxRounds, common.ErrGradingTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

func allTerminal(results []TestResult) bool {
	for _, r := range results {
		if !r.Terminal() {
			return false
		}
	}
	return true
}
