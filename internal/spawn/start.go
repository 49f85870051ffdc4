package spawn

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
)

// Start launches the helper for cfg with the shell's own standard streams
// and returns the pid of the child. An error means no child exists; failures
// after the child was created surface as its exit status instead.
func Start(cfg Config) (int, error) {
	if cfg.Name == "" || len(cfg.Argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating shell executable: %w", err)
	}

	encoded, err := cfg.encode()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(self)
	cmd.Args = []string{cfg.Name}
	cmd.Env = append(os.Environ(), EnvKey+"="+encoded)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	logger.Printf("started %d: %s (stdin=%q stdout=%q int=%s stop=%s)",
		pid, shellquote.Join(cfg.Argv...), cfg.Stdin, cfg.Stdout, cfg.Interrupt, cfg.Stop)

	// The caller reaps the pid itself; drop the os.Process handle.
	_ = cmd.Process.Release()

	return pid, nil
}
