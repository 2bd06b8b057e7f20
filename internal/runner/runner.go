package runner

// Runner is the interface every test command launcher implements.
type Runner interface {
	// Start launches the command for spec. It returns once the process has
	// been spawned; output is delivered asynchronously through spec.Output.
	Start(spec Spec) (Process, error)

	// Info describes the runner for listing.
	Info() Info
}

// Process is a spawned test command.
type Process interface {
	// Wait blocks until the process exits and all of its output has been
	// delivered. err is non-nil only when the exit status could not be
	// determined; code is -1 in that case and when the process was killed
	// by a signal.
	Wait() (code int, err error)

	// Terminate asks the process to exit gracefully. It does not wait.
	Terminate() error

	// PID returns the operating-system process id, or 0 if unknown.
	PID() int
}

// Spec describes one launch.
type Spec struct {
	ExecutionID string
	TargetFile  string

	// Env is layered on top of the service's own environment.
	Env map[string]string

	// Output receives stdout and stderr chunks verbatim, undifferentiated.
	// It may be called from multiple goroutines.
	Output func(chunk string)
}

// Info describes a registered runner.
type Info struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}
