package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/seantiz/conductor/internal/model"
)

// historyTimeout bounds a single history append.
const historyTimeout = 5 * time.Second

// registry holds every execution created during the process lifetime. Ids are
// never released, so a finished id cannot be submitted again. It is guarded
// by the engine mutex.
type registry struct {
	executions map[string]*model.Execution
}

func newRegistry() *registry {
	return &registry{executions: make(map[string]*model.Execution)}
}

func (r *registry) create(ex *model.Execution) error {
	if _, ok := r.executions[ex.ExecutionID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, ex.ExecutionID)
	}
	r.executions[ex.ExecutionID] = ex
	return nil
}

func (r *registry) get(id string) (*model.Execution, bool) {
	ex, ok := r.executions[id]
	return ex, ok
}

// transitionLocked moves execution id to status to, stamps its timestamps,
// publishes the STATUS event and, for terminal statuses, appends the history
// record. Callers must hold e.mu.
func (e *Engine) transitionLocked(id string, to model.Status) error {
	ex, ok := e.registry.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	from := ex.Status
	if !model.ValidTransition(from, to) {
		e.logger.Debug("ignoring status transition", "execution_id", id, "from", from, "to", to)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	now := e.now()
	ex.Status = to
	ex.UpdatedAt = now

	switch {
	case to == model.StatusRunning:
		ex.StartedAt = &now
	case to.IsTerminal():
		ex.FinishedAt = &now
		// Measured from submission, so time spent queued counts.
		d := now.Sub(ex.CreatedAt).Milliseconds()
		ex.DurationMS = &d
	}

	e.logger.Info("execution status changed",
		"execution_id", id,
		"from", from,
		"to", to,
	)
	e.hub.Publish(id, StatusEvent(to))

	if to.IsTerminal() {
		executionsTotal.WithLabelValues(string(to)).Inc()
		if ex.StartedAt != nil {
			executionDuration.Observe(now.Sub(*ex.StartedAt).Seconds())
		}
		e.appendHistory(ex)
	}
	return nil
}

// appendHistory persists the terminal snapshot of ex. A failed write is
// logged and does not affect the execution's in-memory status.
func (e *Engine) appendHistory(ex *model.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := e.history.Append(ctx, ex.Record()); err != nil {
		e.logger.Error("failed to append history record",
			"execution_id", ex.ExecutionID,
			"status", ex.Status,
			"error", err,
		)
	}
}
