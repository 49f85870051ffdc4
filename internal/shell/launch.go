package shell

import (
	"fmt"

	"smallsh/internal/spawn"
)

// resolve turns a parsed command into the child's spawn configuration.
// Background commands read and write /dev/null unless redirected and do not
// die on interrupt; SIGTSTP is ignored by every child.
func resolve(cmd *Command) spawn.Config {
	cfg := spawn.Config{
		Name:      cmd.Name,
		Argv:      append([]string(nil), cmd.Args...),
		Stdin:     cmd.InputRedirect,
		Stdout:    cmd.OutputRedirect,
		Interrupt: spawn.Default,
		Stop:      spawn.Ignore,
	}

	if cmd.Background {
		if cfg.Stdin == "" {
			cfg.Stdin = spawn.DevNull
		}
		if cfg.Stdout == "" {
			cfg.Stdout = spawn.DevNull
		}
		cfg.Interrupt = spawn.Ignore
	}

	return cfg
}

func (s *Shell) runExternal(cmd *Command) error {
	logger.Printf("launch %s", cmd)

	pid, err := s.start(resolve(cmd))
	if err != nil {
		return fmt.Errorf("spawn %s: %w", cmd.Name, err)
	}

	if cmd.Background {
		s.jobs.Add(pid)
		fmt.Fprintf(s.stdout, "background pid is %d\n", pid)
		return nil
	}

	status, err := s.jobs.WaitForeground(pid)
	if err != nil {
		return err
	}
	s.lastStatus = status
	return nil
}
