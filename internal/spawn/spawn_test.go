package spawn

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	if IsChild() {
		Main()
	}
	os.Exit(m.Run())
}

func wait(t *testing.T, pid int) unix.WaitStatus {
	t.Helper()
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return ws
	}
}

func TestDecodeRejectsEmptyCommand(t *testing.T) {
	_, err := decode(`{"name":"","argv":[]}`)
	assert.Error(t, err)

	_, err = decode(`not json`)
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{Name: "ls", Argv: []string{"ls", "-l"}, Stdout: DevNull, Interrupt: Ignore, Stop: Ignore}
	raw, err := cfg.encode()
	require.NoError(t, err)

	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)
}

func TestDispositionString(t *testing.T) {
	assert.Equal(t, "default", Default.String())
	assert.Equal(t, "ignore", Ignore.String())
	assert.Equal(t, "Disposition(7)", Disposition(7).String())
}

func TestStartEmptyCommand(t *testing.T) {
	_, err := Start(Config{})
	assert.Error(t, err)
}

func TestStartExitCode(t *testing.T) {
	pid, err := Start(Config{Name: "false", Argv: []string{"false"}})
	require.NoError(t, err)

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 1, ws.ExitStatus())
}

func TestStartOutputRedirect(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(out, []byte("previous contents that must be truncated\n"), 0644))

	pid, err := Start(Config{Name: "echo", Argv: []string{"echo", "hello", "world"}, Stdout: out})
	require.NoError(t, err)

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 0, ws.ExitStatus())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(data))
}

func TestStartInputAndOutputRedirect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("b\na\nc\n"), 0644))

	pid, err := Start(Config{Name: "sort", Argv: []string{"sort"}, Stdin: in, Stdout: out})
	require.NoError(t, err)

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 0, ws.ExitStatus())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(data))
}

func TestStartDevNullInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")

	pid, err := Start(Config{Name: "wc", Argv: []string{"wc", "-c"}, Stdin: DevNull, Stdout: out})
	require.NoError(t, err)
	wait(t, pid)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0", strings.TrimSpace(string(data)))
}

func TestStartMissingInputExitsNonZero(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")

	pid, err := Start(Config{Name: "cat", Argv: []string{"cat"}, Stdin: missing})
	require.NoError(t, err, "open failures belong to the child, not to Start")

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 1, ws.ExitStatus())
}

func TestStartUnwritableOutputExitsNonZero(t *testing.T) {
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "out.txt")

	pid, err := Start(Config{Name: "echo", Argv: []string{"echo", "x"}, Stdout: out})
	require.NoError(t, err)

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 1, ws.ExitStatus())
}

func TestStartUnknownProgramExitsNonZero(t *testing.T) {
	pid, err := Start(Config{Name: "smallsh-no-such-program", Argv: []string{"smallsh-no-such-program"}})
	require.NoError(t, err, "exec failures belong to the child, not to Start")

	ws := wait(t, pid)
	require.True(t, ws.Exited())
	assert.Equal(t, 1, ws.ExitStatus())
}

func TestStartStripsHelperEnvironment(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env.txt")

	pid, err := Start(Config{Name: "env", Argv: []string{"env"}, Stdout: out})
	require.NoError(t, err)
	wait(t, pid)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), EnvKey+"=")
}

// ignoredSignals reads the SigIgn mask of pid once it has become comm.
func ignoredSignals(t *testing.T, pid int, comm string) uint64 {
	t.Helper()

	procDir := filepath.Join("/proc", strconv.Itoa(pid))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(procDir, "comm"))
		return err == nil && strings.TrimSpace(string(data)) == comm
	}, 5*time.Second, 10*time.Millisecond)

	f, err := os.Open(filepath.Join(procDir, "status"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "SigIgn:"); ok {
			mask, err := strconv.ParseUint(strings.TrimSpace(v), 16, 64)
			require.NoError(t, err)
			return mask
		}
	}
	t.Fatalf("no SigIgn line for %d", pid)
	return 0
}

func isIgnored(mask uint64, sig unix.Signal) bool {
	return mask&(1<<(uint(sig)-1)) != 0
}

func TestSignalDispositions(t *testing.T) {
	cases := map[string]struct {
		interrupt Disposition
	}{
		"foreground": {interrupt: Default},
		"background": {interrupt: Ignore},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pid, err := Start(Config{
				Name:      "sleep",
				Argv:      []string{"sleep", "30"},
				Stdin:     DevNull,
				Interrupt: tc.interrupt,
				Stop:      Ignore,
			})
			require.NoError(t, err)
			defer func() {
				_ = unix.Kill(pid, unix.SIGKILL)
				wait(t, pid)
			}()

			mask := ignoredSignals(t, pid, "sleep")
			assert.Equal(t, tc.interrupt == Ignore, isIgnored(mask, unix.SIGINT))
			assert.True(t, isIgnored(mask, unix.SIGTSTP))
		})
	}
}

func TestForegroundChildDiesOnInterrupt(t *testing.T) {
	pid, err := Start(Config{Name: "sleep", Argv: []string{"sleep", "30"}, Stdin: DevNull, Stop: Ignore})
	require.NoError(t, err)

	ignoredSignals(t, pid, "sleep")
	require.NoError(t, unix.Kill(pid, unix.SIGINT))

	ws := wait(t, pid)
	require.True(t, ws.Signaled())
	assert.Equal(t, unix.SIGINT, ws.Signal())
}
