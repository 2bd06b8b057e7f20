// testserver starts a conductor API server with a scripted runner and an
// in-memory catalog, for frontend development without Playwright installed.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/seantiz/conductor/internal/api"
	"github.com/seantiz/conductor/internal/catalog"
	"github.com/seantiz/conductor/internal/engine"
	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/runner"
	"github.com/seantiz/conductor/internal/store"
)

// scriptedRunner replays canned output line by line. Scenarios whose file
// contains "fail" exit with code 1.
type scriptedRunner struct {
	delay    time.Duration
	logLines []string
}

func (s *scriptedRunner) Start(spec runner.Spec) (runner.Process, error) {
	code := 0
	if strings.Contains(spec.TargetFile, "fail") {
		code = 1
	}
	return &scriptedProcess{
		runner: s,
		spec:   spec,
		code:   code,
		stop:   make(chan struct{}),
	}, nil
}

func (s *scriptedRunner) Info() runner.Info {
	return runner.Info{Command: "scripted"}
}

type scriptedProcess struct {
	runner *scriptedRunner
	spec   runner.Spec
	code   int
	stop   chan struct{}
	once   sync.Once
}

func (p *scriptedProcess) Wait() (int, error) {
	p.spec.Output(fmt.Sprintf("[%s] %s against %s\n", p.spec.ExecutionID, p.spec.TargetFile, p.spec.Env[engine.EnvBaseURL]))
	for _, line := range p.runner.logLines {
		select {
		case <-p.stop:
			p.spec.Output("terminated\n")
			return 143, nil
		case <-time.After(p.runner.delay):
		}
		p.spec.Output(line + "\n")
	}
	return p.code, nil
}

func (p *scriptedProcess) Terminate() error {
	p.once.Do(func() { close(p.stop) })
	return nil
}

func (p *scriptedProcess) PID() int { return 0 }

func main() {
	addr := ":3000"
	if v := os.Getenv("CONDUCTOR_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:", store.DefaultCapacity)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := runner.NewRegistry("scripted")
	reg.Register("scripted", &scriptedRunner{
		delay:    500 * time.Millisecond,
		logLines: []string{"Running 3 tests using 1 worker", "  ✓ opens the page", "  ✓ fills the form", "  ✓ submits"},
	})

	cat := catalog.NewStatic(model.Project{
		ID:   "demo",
		Name: "DEMO",
		Environments: []model.Environment{
			{ID: "local", Name: "Local", BaseURL: "http://localhost:8080"},
			{ID: "staging", Name: "Staging", BaseURL: "https://staging.example.com"},
		},
		Scenarios: []model.Scenario{
			{ID: "login", Name: "Login", File: "tests/login.spec.ts", Tags: []string{"smoke"}},
			{ID: "checkout", Name: "Checkout", File: "tests/checkout.spec.ts", Tags: []string{"regression"}},
			{ID: "broken", Name: "Always fails", File: "tests/fail.spec.ts"},
		},
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	eng := engine.NewEngine(engine.Options{MaxConcurrent: 2}, cat, db, reg, logger)
	srv := api.NewServer(addr, eng, db, cat, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
