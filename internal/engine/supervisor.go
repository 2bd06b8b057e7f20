package engine

import (
	"fmt"

	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/runner"
)

// Environment variables injected into every test process.
const (
	EnvProjectID   = "PROJECT_ID"
	EnvEnvID       = "ENV_ID"
	EnvEnvName     = "ENV_NAME"
	EnvBaseURL     = "BASE_URL"
	EnvExecutionID = "EXECUTION_ID"
	EnvScenarioID  = "SCENARIO_ID"
)

// launch spawns the test process for ex. Output chunks are forwarded to the
// execution's observer verbatim, stdout and stderr alike.
func (e *Engine) launch(ex *model.Execution) (runner.Process, error) {
	rn, err := e.runners.Resolve(ex.Runner)
	if err != nil {
		return nil, err
	}

	id := ex.ExecutionID
	spec := runner.Spec{
		ExecutionID: id,
		TargetFile:  ex.File,
		Env: map[string]string{
			EnvProjectID:   ex.ProjectID,
			EnvEnvID:       ex.EnvironmentID,
			EnvEnvName:     ex.EnvironmentName,
			EnvBaseURL:     ex.BaseURL,
			EnvExecutionID: id,
			EnvScenarioID:  ex.ScenarioID,
		},
		Output: func(chunk string) {
			e.hub.Publish(id, LogEvent(chunk))
		},
	}

	proc, err := rn.Start(spec)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", rn.Info().Command, err)
	}
	return proc, nil
}

// terminate signals proc without waiting for it to exit.
func (e *Engine) terminate(id string, proc runner.Process) {
	if proc == nil {
		return
	}
	if err := proc.Terminate(); err != nil {
		e.logger.Warn("failed to terminate test process", "execution_id", id, "pid", proc.PID(), "error", err)
	}
}
