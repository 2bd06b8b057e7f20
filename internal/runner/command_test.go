package runner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers output chunks from concurrent pumps.
type collector struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *collector) write(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(chunk)
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "target.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestNewCommandParsesQuotes(t *testing.T) {
	c, err := NewCommand(`npx playwright test --reporter "line"`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"npx", "playwright", "test", "--reporter", "line"}, c.argv)
	assert.Equal(t, `npx playwright test --reporter "line"`, c.Info().Command)
}

func TestNewCommandRejectsEmpty(t *testing.T) {
	_, err := NewCommand("   ", "")
	assert.Error(t, err)

	_, err = NewCommand(`npx "unterminated`, "")
	assert.Error(t, err)
}

func TestCommandCapturesBothStreams(t *testing.T) {
	script := writeScript(t, "echo to-stdout\necho to-stderr >&2\nexit 3\n")
	c, err := NewCommand("sh", "")
	require.NoError(t, err)

	var out collector
	p, err := c.Start(Spec{ExecutionID: "e1", TargetFile: script, Output: out.write})
	require.NoError(t, err)
	assert.NotZero(t, p.PID())

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, out.String(), "to-stdout")
	assert.Contains(t, out.String(), "to-stderr")
}

func TestCommandInjectsEnvironment(t *testing.T) {
	script := writeScript(t, `echo "$PROJECT_ID/$ENV_ID/$BASE_URL"`+"\n")
	c, err := NewCommand("sh", "")
	require.NoError(t, err)

	var out collector
	p, err := c.Start(Spec{
		TargetFile: script,
		Env:        map[string]string{"PROJECT_ID": "shop", "ENV_ID": "dev", "BASE_URL": "http://dev"},
		Output:     out.write,
	})
	require.NoError(t, err)

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "shop/dev/http://dev\n", out.String())
}

func TestCommandTerminate(t *testing.T) {
	script := writeScript(t, "trap 'exit 143' TERM\nwhile true; do sleep 0.05; done\n")
	c, err := NewCommand("sh", "")
	require.NoError(t, err)

	p, err := c.Start(Spec{TargetFile: script})
	require.NoError(t, err)

	// Give the shell time to install its trap.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Terminate())

	done := make(chan int, 1)
	go func() {
		code, _ := p.Wait()
		done <- code
	}()

	select {
	case code := <-done:
		assert.NotEqual(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}

	// Terminating an exited process is not an error.
	assert.NoError(t, p.Terminate())
}

func TestCommandSpawnFailure(t *testing.T) {
	c, err := NewCommand("/nonexistent/conductor-test-binary", "")
	require.NoError(t, err)

	_, err = c.Start(Spec{TargetFile: "x.spec.ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start command")
}

func TestEnvListSorted(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}
