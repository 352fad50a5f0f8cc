package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// BatchedStrategy coalesces concurrent calls to the same tool into one flush
// cycle. Coalescing is by time window, not payload merging: each queued call
// still invokes the tool with its own arguments, and each caller receives its
// own outcome, so one entry's failure never affects its siblings.
type BatchedStrategy struct {
	// flushWait is how long the first caller holds the queue open for others
	// to join before the flush fires.
	flushWait time.Duration
	logger    *zap.Logger
	metrics   domain.Metrics

	mu     sync.Mutex
	queues map[string]*batchQueue
}

type batchOutcome struct {
	result any
	err    error
}

type batchEntry struct {
	ctx  context.Context
	args json.RawMessage
	ec   *domain.ExecContext
	done chan batchOutcome
}

type batchQueue struct {
	tool    domain.Tool
	entries []*batchEntry
	timer   *time.Timer
}

func NewBatchedStrategy(flushWait time.Duration, logger *zap.Logger, metrics domain.Metrics) *BatchedStrategy {
	if flushWait <= 0 {
		flushWait = domain.DefaultBatchFlushWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchedStrategy{
		flushWait: flushWait,
		logger:    logger.Named("batched_strategy"),
		metrics:   metrics,
		queues:    make(map[string]*batchQueue),
	}
}

func (s *BatchedStrategy) Execute(ctx context.Context, tool domain.Tool, args json.RawMessage, ec *domain.ExecContext, meta domain.ToolMetadata) (any, error) {
	if meta.MaxBatchSize <= 1 {
		return tool.Execute(ctx, args, ec)
	}

	entry := &batchEntry{
		ctx:  ctx,
		args: args,
		ec:   ec,
		done: make(chan batchOutcome, 1),
	}

	s.mu.Lock()
	queue, ok := s.queues[meta.Name]
	if !ok {
		queue = &batchQueue{tool: tool}
		s.queues[meta.Name] = queue
		name := meta.Name
		queue.timer = time.AfterFunc(s.flushWait, func() {
			s.flush(name)
		})
	}
	queue.entries = append(queue.entries, entry)
	full := len(queue.entries) >= meta.MaxBatchSize
	s.mu.Unlock()

	// Reaching the size cap flushes immediately instead of waiting out the
	// window. flush is idempotent, so racing with the timer is harmless.
	if full {
		s.flush(meta.Name)
	}

	select {
	case outcome := <-entry.done:
		return outcome.result, outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush atomically detaches the queue for a tool so new calls start a fresh
// one, then runs every queued entry concurrently and delivers each outcome to
// its own caller.
func (s *BatchedStrategy) flush(name string) {
	s.mu.Lock()
	queue, ok := s.queues[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.queues, name)
	s.mu.Unlock()

	if queue.timer != nil {
		queue.timer.Stop()
	}

	size := len(queue.entries)
	s.logger.Debug("flushing batch", zap.String("tool", name), zap.Int("size", size))
	if s.metrics != nil {
		s.metrics.RecordBatchFlush(name, size)
	}

	for _, entry := range queue.entries {
		go func(entry *batchEntry) {
			result, err := queue.tool.Execute(entry.ctx, entry.args, entry.ec)
			entry.done <- batchOutcome{result: result, err: err}
		}(entry)
	}
}

// PendingQueues reports how many tools currently have an open queue.
func (s *BatchedStrategy) PendingQueues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
