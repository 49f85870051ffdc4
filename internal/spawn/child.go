package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"golang.org/x/sys/unix"
)

// Main is the helper's entry point. It never returns: the process either
// becomes the requested program or exits with status 1.
func Main() {
	cfg, err := decode(os.Getenv(EnvKey))
	if err != nil {
		fail(err)
	}

	if err := cfg.Apply(); err != nil {
		fail(err)
	}

	err = cfg.exec()
	fail(fmt.Errorf("%s: %w", cfg.Name, err))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "smallsh: %v\n", err)
	os.Exit(1)
}

// Apply binds the redirections onto fd 0 and 1 and installs the signal
// dispositions in the calling process. Ignored dispositions survive the
// following exec; everything else reverts to the default action.
func (c *Config) Apply() error {
	if c.Stdin != "" {
		if err := redirect(c.Stdin, unix.O_RDONLY, 0, "input"); err != nil {
			return err
		}
	}
	if c.Stdout != "" {
		if err := redirect(c.Stdout, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 1, "output"); err != nil {
			return err
		}
	}

	setDisposition(unix.SIGINT, c.Interrupt)
	setDisposition(unix.SIGTSTP, c.Stop)
	return nil
}

func redirect(path string, flags, target int, what string) error {
	fd, err := unix.Open(path, flags|unix.O_CLOEXEC, 0644)
	if err != nil {
		return fmt.Errorf("cannot open %s for %s: %w", path, what, err)
	}
	if fd == target {
		// Landed on the target slot itself; only the close-on-exec flag
		// has to go.
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, 0); err != nil {
			return fmt.Errorf("cannot redirect %s: %w", what, err)
		}
		return nil
	}
	defer unix.Close(fd)

	if err := unix.Dup2(fd, target); err != nil {
		return fmt.Errorf("cannot redirect %s: %w", what, err)
	}
	return nil
}

func setDisposition(sig os.Signal, d Disposition) {
	if d == Ignore {
		signal.Ignore(sig)
		return
	}
	// A handled signal reverts to the default action across exec, even
	// when this process inherited it as ignored.
	signal.Notify(make(chan os.Signal, 1), sig)
}

func (c *Config) exec() error {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return err
	}
	return unix.Exec(path, c.Argv, childEnv())
}

func childEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, EnvKey+"=") {
			out = append(out, kv)
		}
	}
	return out
}
