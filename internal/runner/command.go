package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the read buffer for each output pipe.
const chunkSize = 4096

// DefaultDrainTimeout bounds how long Wait keeps reading output after the
// test command exits. Background children that inherited the pipes would
// otherwise hold the execution open until they exit.
const DefaultDrainTimeout = 2 * time.Second

// Command runs an external command line with the target file appended as
// its last argument, e.g. "npx playwright test" + " tests/login.spec.ts".
type Command struct {
	commandLine  string
	argv         []string
	dir          string
	drainTimeout time.Duration
}

// NewCommand parses commandLine with shell quoting rules. dir is the working
// directory of spawned processes; empty means the service's own.
func NewCommand(commandLine, dir string) (*Command, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", commandLine, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("command is empty")
	}
	return &Command{
		commandLine:  commandLine,
		argv:         argv,
		dir:          dir,
		drainTimeout: DefaultDrainTimeout,
	}, nil
}

// Info implements Runner.
func (c *Command) Info() Info {
	return Info{Command: c.commandLine}
}

// Start implements Runner. Stdout and stderr are pumped concurrently; the
// relative order of chunks across the two streams is not preserved. The
// process leads its own process group so Terminate reaches its children.
func (c *Command) Start(spec Spec) (Process, error) {
	args := append([]string{}, c.argv[1:]...)
	if spec.TargetFile != "" {
		args = append(args, spec.TargetFile)
	}

	cmd := exec.Command(c.argv[0], args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), envList(spec.Env)...)
	setProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("start command: %w", err)
	}
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	output := spec.Output
	if output == nil {
		output = func(string) {}
	}

	p := &commandProcess{
		cmd:          cmd,
		readers:      []*os.File{stdoutR, stderrR},
		drainTimeout: c.drainTimeout,
	}
	p.pumps.Go(func() error { return pump(stdoutR, output) })
	p.pumps.Go(func() error { return pump(stderrR, output) })
	return p, nil
}

type commandProcess struct {
	cmd          *exec.Cmd
	readers      []*os.File
	drainTimeout time.Duration
	pumps        errgroup.Group

	once sync.Once
	code int
	err  error
}

func (p *commandProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait reaps the process, then gives the pumps up to drainTimeout to reach
// EOF before the pipes are closed under them.
func (p *commandProcess) Wait() (int, error) {
	p.once.Do(func() {
		waitErr := p.cmd.Wait()
		pumpErr := p.drain()

		var exitErr *exec.ExitError
		switch {
		case waitErr == nil:
			p.code = 0
		case errors.As(waitErr, &exitErr):
			p.code = exitErr.ExitCode()
		default:
			p.code = -1
			p.err = fmt.Errorf("wait: %w", waitErr)
		}
		if p.err == nil && pumpErr != nil {
			p.err = fmt.Errorf("read output: %w", pumpErr)
		}
	})
	return p.code, p.err
}

func (p *commandProcess) drain() error {
	done := make(chan error, 1)
	go func() { done <- p.pumps.Wait() }()

	select {
	case err := <-done:
		closeAll(p.readers...)
		return err
	case <-time.After(p.drainTimeout):
	}

	// A leftover child still holds the pipes open.
	closeAll(p.readers...)
	if err := <-done; err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func (p *commandProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := signalTerminate(p.cmd.Process); err != nil {
		return fmt.Errorf("signal process %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// pump forwards r to output chunk by chunk until EOF.
func pump(r io.Reader, output func(string)) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			output(string(buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// String returns the command line for logging.
func (c *Command) String() string {
	return strings.Join(c.argv, " ")
}
