package taskgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/taskgraph/pkg/taskgraph/history"
	"github.com/randalmurphal/taskgraph/pkg/taskgraph/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Trigger runs the graph once and returns the final snapshot.
//
// Node failures do not make Trigger fail: they are reported through
// completion hooks, the run-complete hook, and Execute's Run record.
// Trigger returns an error only if the run could not start, e.g. the
// initial factory failed.
//
// Example:
//
//	final, err := runner.Trigger(ctx)
//	if err != nil {
//	    return err
//	}
//	total, _ := taskgraph.Value[int](final, "D")
func (r *Runner) Trigger(ctx context.Context, opts ...RunOption) (*Snapshot, error) {
	run, err := r.Execute(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return run.Snapshot(), nil
}

// Execute runs the graph once and returns the full Run record.
//
// Execution flow:
//  1. Resolve the seed and reset the run's results to {initial: seed}
//  2. Admit every node without dependencies
//  3. Start each admitted, enabled node in its own goroutine
//  4. As each node finishes: apply its result, call its completion hook,
//     and admit dependents whose dependencies have all completed
//  5. Stop when nothing is running and nothing is ready
//
// A node is admitted once; its enablement is decided at that moment.
// Dependents of failed or skipped nodes are never admitted and stay pending.
func (r *Runner) Execute(ctx context.Context, opts ...RunOption) (*Run, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	base := asExecutionContext(ctx)
	runID := cfg.runID
	if runID == "" {
		runID = base.RunID()
	}

	seed, err := r.resolveSeed(ctx)
	if err != nil {
		observability.LogRunError(cfg.logger, runID, err)
		return nil, err
	}

	run := newRun(runID, r.name, r.order)
	run.store.reset(seed)
	run.started = time.Now()
	elapsedMs := observability.TimedOperation()
	observability.LogRunStart(cfg.logger, runID, len(r.order))

	spanCtx, span := cfg.spans.StartRunSpan(base.Context, r.name, runID)

	s := newScheduler(r, run, &cfg, base.forRun(spanCtx, runID, cfg.history))
	s.execute()
	run.finished = time.Now()

	cfg.spans.EndSpanWithError(span, run.Err())
	cfg.metrics.RecordRun(spanCtx, len(run.errs), run.Duration())
	observability.LogRunComplete(cfg.logger, runID, elapsedMs(),
		run.Count(StatusCompleted), run.Count(StatusFailed),
		run.Count(StatusSkipped), run.Count(StatusPending))

	s.recordRun()
	s.notifyRunComplete()
	return run, nil
}

func (r *Runner) resolveSeed(ctx context.Context) (seed any, err error) {
	if r.initialFn == nil {
		return r.initial, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("initial context: %w", &PanicError{Value: p, Stack: string(debug.Stack())})
		}
	}()
	seed, err = r.initialFn(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial context: %w", err)
	}
	return seed, nil
}

// completion is sent by a node goroutine when its work is done.
type completion struct {
	nodeID   string
	out      outcome
	ctx      *executionContext
	span     trace.Span
	started  time.Time
	finished time.Time
}

// scheduler drives one run. All fields except done and sem are owned by
// the goroutine calling execute; node goroutines only send on done.
type scheduler struct {
	r    *Runner
	run  *Run
	cfg  *runConfig
	base *executionContext
	sem  *semaphore.Weighted

	// hookLogger reports retries, hook failures and history failures even
	// when the observability logger is off.
	hookLogger *slog.Logger

	remaining map[string]int
	ready     []string
	inFlight  int
	done      chan completion
}

func newScheduler(r *Runner, run *Run, cfg *runConfig, base *executionContext) *scheduler {
	s := &scheduler{
		r:          r,
		run:        run,
		cfg:        cfg,
		base:       base,
		hookLogger: cfg.logger,
		remaining:  make(map[string]int, len(r.order)),
		done:       make(chan completion, len(r.order)),
	}
	if s.hookLogger == nil {
		s.hookLogger = base.Logger()
	}
	if cfg.maxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.maxConcurrency))
	}
	return s
}

func (s *scheduler) execute() {
	for _, id := range s.r.order {
		s.remaining[id] = s.r.deps.Len(id)
	}
	for _, id := range s.r.order {
		if s.remaining[id] == 0 {
			s.admit(id)
		}
	}

	for {
		for len(s.ready) > 0 {
			id := s.ready[0]
			s.ready = s.ready[1:]
			s.launch(id)
		}
		if s.inFlight == 0 {
			return
		}
		c := <-s.done
		s.inFlight--
		s.finish(c)
	}
}

// admit decides enablement for a node whose dependencies have all
// completed. Disabled nodes are skipped; a failing predicate fails the node.
func (s *scheduler) admit(id string) {
	node := s.r.nodes[id]

	enabled, err := node.Enabled(s.run.store.value())
	if err != nil {
		s.run.setStatus(id, StatusRunning)
		ctx := s.base.withNode(s.base.Context, id, 0)
		out := outcome{err: err}
		if node.onError != nil {
			out.hookErr = node.callErrorHandler(ctx, err)
		}
		now := time.Now()
		s.finish(completion{nodeID: id, out: out, ctx: ctx, started: now, finished: now})
		return
	}

	if !enabled {
		s.run.setStatus(id, StatusSkipped)
		observability.LogNodeSkipped(s.cfg.logger, id)
		s.cfg.metrics.RecordNodeSkipped(s.base, id)
		now := time.Now()
		s.recordNode(id, StatusSkipped, 0, nil, nil, now, now)
		return
	}

	s.ready = append(s.ready, id)
}

// launch starts a node's work in its own goroutine.
func (s *scheduler) launch(id string) {
	node := s.r.nodes[id]
	s.run.setStatus(id, StatusRunning)
	s.inFlight++

	spanCtx, span := s.cfg.spans.StartNodeSpan(s.base.Context, id)
	ctx := s.base.withNode(spanCtx, id, 1)
	observability.LogNodeStart(s.cfg.logger, id)

	hooks := runHooks{
		onAttempt: func(attempt int) {
			s.cfg.spans.AddSpanEvent(spanCtx, "node.attempt", attribute.Int("attempt", attempt))
		},
		onRetry: func(attempt int, err error) {
			observability.LogNodeRetry(s.hookLogger, id, attempt, err, node.retry.Delay)
			s.cfg.metrics.RecordNodeRetry(spanCtx, id)
		},
	}

	go func() {
		if s.sem != nil {
			// Background never cancels, so Acquire cannot fail.
			_ = s.sem.Acquire(context.Background(), 1)
			defer s.sem.Release(1)
		}
		started := time.Now()
		out := node.run(ctx, s.run.store.value(), hooks)
		s.done <- completion{
			nodeID:   id,
			out:      out,
			ctx:      ctx,
			span:     span,
			started:  started,
			finished: time.Now(),
		}
	}()
}

// finish applies a node's outcome: results, status, hooks, and dependents.
func (s *scheduler) finish(c completion) {
	id := c.nodeID
	node := s.r.nodes[id]
	duration := c.out.duration

	s.run.attempts[id] = c.out.attempts
	s.cfg.metrics.RecordNodeExecution(c.ctx, id, duration, c.out.attempts, c.out.err)
	if c.out.hookErr != nil {
		s.hookFailed(c.out.hookErr)
	}
	hookCtx := s.base.withNode(c.ctx.Context, id, c.out.attempts)

	if c.out.err != nil {
		nodeErr := &NodeError{NodeID: id, Err: c.out.err}
		s.run.errs = append(s.run.errs, nodeErr)
		s.run.setStatus(id, StatusFailed)
		observability.LogNodeError(s.cfg.logger, id, c.out.err, c.out.attempts)
		s.cfg.spans.EndSpanWithError(c.span, c.out.err)
		s.recordNode(id, StatusFailed, c.out.attempts, nil, c.out.err, c.started, c.finished)

		if hookErr := node.callCompletionHandler(hookCtx, CompletionEvent{
			NodeID:    id,
			Status:    StatusFailed,
			Err:       nodeErr,
			Context:   s.run.store.value(),
			Attempts:  c.out.attempts,
			Duration:  duration,
			Timestamp: c.finished,
		}); hookErr != nil {
			s.hookFailed(hookErr)
		}
		return
	}

	snap := s.run.store.update(map[string]any{id: c.out.result})
	s.run.setStatus(id, StatusCompleted)
	observability.LogNodeComplete(s.cfg.logger, id, float64(duration.Microseconds())/1000.0, c.out.attempts)
	s.cfg.spans.EndSpanWithError(c.span, nil)
	s.recordNode(id, StatusCompleted, c.out.attempts, c.out.result, nil, c.started, c.finished)

	if hookErr := node.callCompletionHandler(hookCtx, CompletionEvent{
		NodeID:    id,
		Status:    StatusCompleted,
		Result:    c.out.result,
		Context:   snap,
		Attempts:  c.out.attempts,
		Duration:  duration,
		Timestamp: c.finished,
	}); hookErr != nil {
		s.hookFailed(hookErr)
	}

	for _, dep := range s.r.dependents[id] {
		s.remaining[dep]--
		if s.remaining[dep] == 0 {
			s.admit(dep)
		}
	}
}

func (s *scheduler) hookFailed(err *HookError) {
	s.run.hookErrs = append(s.run.hookErrs, err)
	observability.LogHookError(s.hookLogger, err.NodeID, err.Hook, err.Err)
}

func (s *scheduler) recordNode(id string, status Status, attempts int, result any, nodeErr error, started, finished time.Time) {
	if s.cfg.history == nil {
		return
	}
	rec := history.NodeRecord{
		RunID:      s.run.id,
		NodeID:     id,
		Status:     status.String(),
		Attempts:   attempts,
		Result:     encodeResult(result),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if nodeErr != nil {
		rec.Error = nodeErr.Error()
	}
	if err := s.cfg.history.RecordNode(rec); err != nil {
		observability.LogHistoryError(s.hookLogger, id, err)
	}
}

func (s *scheduler) recordRun() {
	if s.cfg.history == nil {
		return
	}
	rec := history.RunRecord{
		RunID:      s.run.id,
		GraphName:  s.run.graphName,
		StartedAt:  s.run.started,
		FinishedAt: s.run.finished,
		Completed:  s.run.Count(StatusCompleted),
		Failed:     s.run.Count(StatusFailed),
		Skipped:    s.run.Count(StatusSkipped),
		Unreached:  s.run.Count(StatusPending),
		Snapshot:   encodeResult(s.run.Snapshot().Map()),
	}
	if err := s.cfg.history.RecordRun(rec); err != nil {
		observability.LogHistoryError(s.hookLogger, "", err)
	}
}

func (s *scheduler) notifyRunComplete() {
	if s.r.onComplete == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			s.hookFailed(&HookError{
				Hook: HookOnRunComplete,
				Err:  &PanicError{Value: p, Stack: string(debug.Stack())},
			})
		}
	}()
	s.r.onComplete(s.run.Snapshot(), s.run.Errors())
}

// encodeResult returns v as JSON, or nil if v is nil or not encodable.
func encodeResult(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
