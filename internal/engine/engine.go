package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/conductor/internal/catalog"
	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/runner"
	"github.com/seantiz/conductor/internal/store"
)

// DefaultMaxConcurrent is the number of test processes allowed to run at
// once when Options does not say otherwise.
const DefaultMaxConcurrent = 2

// Options tunes an Engine.
type Options struct {
	// MaxConcurrent caps simultaneously running executions. Values <= 0 use
	// DefaultMaxConcurrent.
	MaxConcurrent int

	// KeepAliveInterval is the idle keep-alive period on every stream.
	// Zero uses DefaultKeepAliveInterval; negative disables keep-alives.
	KeepAliveInterval time.Duration
}

// SubmitRequest asks the engine to run one scenario against one environment.
// The caller picks ExecutionID and must open its stream before submitting.
type SubmitRequest struct {
	ExecutionID   string `json:"executionId"`
	ProjectID     string `json:"projectId"`
	ScenarioID    string `json:"scenarioId"`
	EnvironmentID string `json:"environmentId"`
}

// StopResult reports what a stop request did.
type StopResult struct {
	Stopped bool   `json:"stopped"`
	Where   string `json:"where,omitempty"`
}

// Places a stopped execution was found in.
const (
	StoppedInQueue   = "queue"
	StoppedInRunning = "running"
)

// Engine admits, queues, runs and finalizes executions.
//
// One mutex guards the execution registry, the running set and the admission
// queue as a single unit, so capacity checks and queue pops are indivisible.
// Test processes run outside the lock; only their output and exit re-enter it.
type Engine struct {
	catalog catalog.Provider
	history store.HistoryStore
	runners *runner.Registry
	logger  *slog.Logger
	hub     *Hub
	now     func() time.Time

	maxConcurrent int

	mu       sync.Mutex
	registry *registry
	running  map[string]runner.Process
	queue    admissionQueue
	closing  bool

	wg sync.WaitGroup
}

// NewEngine creates an execution engine.
func NewEngine(opts Options, cat catalog.Provider, history store.HistoryStore, runners *runner.Registry, logger *slog.Logger) *Engine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	keepAlive := opts.KeepAliveInterval
	if keepAlive == 0 {
		keepAlive = DefaultKeepAliveInterval
	}

	return &Engine{
		catalog:       cat,
		history:       history,
		runners:       runners,
		logger:        logger,
		hub:           NewHub(keepAlive),
		now:           func() time.Time { return time.Now().UTC() },
		maxConcurrent: opts.MaxConcurrent,
		registry:      newRegistry(),
		running:       make(map[string]runner.Process),
	}
}

// Hub returns the engine's event hub.
func (e *Engine) Hub() *Hub {
	return e.hub
}

// Submit validates req against the catalog and admits the execution. With no
// observer attached the execution is cancelled on the spot; with a free slot
// it starts immediately; otherwise it is queued. The returned execution is a
// snapshot taken at admission.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*model.Execution, error) {
	if req.ExecutionID == "" {
		return nil, ErrMissingExecutionID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	desc, err := e.catalog.Resolve(req.ProjectID, req.ScenarioID, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing {
		return nil, ErrShuttingDown
	}

	ex := model.NewExecution(req.ExecutionID, desc, e.now())
	if err := e.registry.create(ex); err != nil {
		return nil, err
	}
	e.logger.Info("execution submitted",
		"execution_id", ex.ExecutionID,
		"project_id", ex.ProjectID,
		"scenario_id", ex.ScenarioID,
		"environment_id", ex.EnvironmentID,
	)

	switch {
	case !e.hub.Has(ex.ExecutionID):
		e.logger.Warn("no stream attached, cancelling execution", "execution_id", ex.ExecutionID)
		e.mustTransitionLocked(ex.ExecutionID, model.StatusCancelled)

	case len(e.running) < e.maxConcurrent:
		e.startLocked(ex)

	default:
		e.mustTransitionLocked(ex.ExecutionID, model.StatusQueued)
		e.queue.enqueue(ex.ExecutionID)
		e.hub.Publish(ex.ExecutionID, QueuePosEvent(e.queue.position(ex.ExecutionID)))
	}

	e.publishStatsLocked()
	return ex.Clone(), nil
}

// Stop cancels a queued or running execution. Unknown and terminal ids are
// a no-op reported as not stopped.
func (e *Engine) Stop(id string) StopResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ex, ok := e.registry.get(id)
	if !ok || ex.Status.IsTerminal() {
		return StopResult{}
	}

	if e.queue.remove(id) {
		e.mustTransitionLocked(id, model.StatusCancelled)
		e.hub.Publish(id, CancelledEvent())
		e.hub.Publish(id, EndEvent(OutcomeCancelled))
		e.hub.Close(id)
		e.notifyPositionsLocked()
		e.publishStatsLocked()
		return StopResult{Stopped: true, Where: StoppedInQueue}
	}

	proc, ok := e.running[id]
	if !ok {
		return StopResult{}
	}
	e.mustTransitionLocked(id, model.StatusCancelled)
	e.hub.Publish(id, CancelledEvent())
	e.terminate(id, proc)
	return StopResult{Stopped: true, Where: StoppedInRunning}
}

// Get returns a snapshot of execution id.
func (e *Engine) Get(id string) (*model.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ex, ok := e.registry.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	return ex.Clone(), nil
}

// Stats returns the current capacity snapshot.
func (e *Engine) Stats() model.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

// OpenStream attaches an observer to id, superseding any previous one. The
// new subscription first receives a stats snapshot. A queued execution also
// gets its position; an execution that already finished gets its final
// status and END marker and the stream is closed.
func (e *Engine) OpenStream(id string) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := e.hub.Attach(id)
	e.hub.Publish(id, StatsEvent(e.statsLocked()))

	ex, ok := e.registry.get(id)
	if !ok {
		return sub
	}
	switch {
	case ex.Status == model.StatusQueued:
		e.hub.Publish(id, QueuePosEvent(e.queue.position(id)))
	case ex.Status == model.StatusRunning:
		e.hub.Publish(id, StatusEvent(ex.Status))
	case ex.Status.IsTerminal():
		e.hub.Publish(id, StatusEvent(ex.Status))
		e.hub.Publish(id, EndEvent(outcomeOf(ex)))
		e.hub.Close(id)
	}
	return sub
}

// CloseStream detaches sub from id. The execution keeps running.
func (e *Engine) CloseStream(id string, sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hub.Detach(id, sub) {
		e.logger.Debug("stream detached", "execution_id", id)
	}
	e.publishStatsLocked()
}

// Shutdown stops accepting submissions, cancels everything queued or running
// and waits for test processes to exit or ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	for _, id := range e.queue.snapshot() {
		e.queue.remove(id)
		e.mustTransitionLocked(id, model.StatusCancelled)
		e.hub.Publish(id, CancelledEvent())
		e.hub.Publish(id, EndEvent(OutcomeCancelled))
		e.hub.Close(id)
	}
	for id, proc := range e.running {
		ex, _ := e.registry.get(id)
		if ex != nil && !ex.Status.IsTerminal() {
			e.mustTransitionLocked(id, model.StatusCancelled)
			e.hub.Publish(id, CancelledEvent())
		}
		e.terminate(id, proc)
	}
	e.publishStatsLocked()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for test processes: %w", ctx.Err())
	}
}

// Wait blocks until every launched test process has been finalized.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// startLocked moves ex to RUNNING and spawns its process. A spawn failure
// becomes an immediate FAILED with exit code -1 and the error as log output.
func (e *Engine) startLocked(ex *model.Execution) {
	id := ex.ExecutionID
	e.mustTransitionLocked(id, model.StatusRunning)

	proc, err := e.launch(ex)
	if err != nil {
		e.logger.Error("failed to start test process", "execution_id", id, "error", err)
		e.hub.Publish(id, LogEvent(fmt.Sprintf("failed to start test process: %v\n", err)))
		e.finishLocked(id, -1)
		return
	}

	e.running[id] = proc
	e.logger.Info("test process started", "execution_id", id, "pid", proc.PID(), "file", ex.File)

	e.wg.Go(func() {
		code, err := proc.Wait()
		if err != nil {
			e.logger.Warn("test process wait failed", "execution_id", id, "error", err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		e.finishLocked(id, code)
		e.drainLocked()
	})
}

// finishLocked finalizes an execution whose process exited (or never
// started): it releases the slot, records the outcome unless the execution
// was already cancelled, sends END and closes the stream.
func (e *Engine) finishLocked(id string, code int) {
	delete(e.running, id)

	ex, ok := e.registry.get(id)
	if !ok {
		return
	}

	outcome := OutcomeCancelled
	if ex.Status != model.StatusCancelled {
		ex.ExitCode = &code
		to := model.StatusSuccess
		if code != 0 {
			to = model.StatusFailed
		}
		if err := e.transitionLocked(id, to); err != nil {
			e.logger.Warn("exit not recorded", "execution_id", id, "exit_code", code, "error", err)
		}
		outcome = ExitOutcome(code)
	}
	e.logger.Info("test process exited", "execution_id", id, "exit_code", code, "status", ex.Status)

	e.hub.Publish(id, EndEvent(outcome))
	e.hub.Close(id)
	e.publishStatsLocked()
}

// drainLocked starts queued executions while slots are free. A dequeued
// execution whose observer went away is cancelled without taking a slot.
func (e *Engine) drainLocked() {
	if e.closing {
		return
	}
	for len(e.running) < e.maxConcurrent {
		id, ok := e.queue.pop()
		if !ok {
			break
		}
		e.notifyPositionsLocked()

		ex, _ := e.registry.get(id)
		if !e.hub.Has(id) {
			e.logger.Info("queued execution lost its stream, cancelling", "execution_id", id)
			e.mustTransitionLocked(id, model.StatusCancelled)
			continue
		}
		e.startLocked(ex)
	}
	e.publishStatsLocked()
}

func (e *Engine) notifyPositionsLocked() {
	for i, id := range e.queue.snapshot() {
		e.hub.Publish(id, QueuePosEvent(i+1))
	}
}

func (e *Engine) statsLocked() model.Stats {
	return model.Stats{
		Running:       len(e.running),
		MaxConcurrent: e.maxConcurrent,
		Queued:        e.queue.len(),
	}
}

func (e *Engine) publishStatsLocked() {
	stats := e.statsLocked()
	runningExecutions.Set(float64(stats.Running))
	queuedExecutions.Set(float64(stats.Queued))
	e.hub.BroadcastStats(stats)
}

// mustTransitionLocked applies a transition the engine itself guarantees is
// legal. A failure here is logged, never propagated.
func (e *Engine) mustTransitionLocked(id string, to model.Status) {
	if err := e.transitionLocked(id, to); err != nil {
		e.logger.Error("unexpected transition failure", "execution_id", id, "to", to, "error", err)
	}
}

// outcomeOf renders the END outcome of a terminal execution.
func outcomeOf(ex *model.Execution) string {
	if ex.Status == model.StatusCancelled || ex.ExitCode == nil {
		return OutcomeCancelled
	}
	return ExitOutcome(*ex.ExitCode)
}
