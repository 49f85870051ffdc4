package shell

import (
	"errors"
	"fmt"
	"os"
)

// errExit ends the read loop.
var errExit = errors.New("exit")

// executeBuiltin runs cmd in the shell's own process if it names a builtin.
// Redirections and & are ignored for builtins.
func (s *Shell) executeBuiltin(cmd *Command) (bool, error) {
	switch cmd.Name {
	case "cd":
		return true, s.changeDirectory(cmd.Args[1:])
	case "exit":
		return true, errExit
	case "status":
		fmt.Fprintln(s.stdout, s.lastStatus)
		return true, nil
	default:
		return false, nil
	}
}

func (s *Shell) changeDirectory(args []string) error {
	var dir string
	switch len(args) {
	case 0:
		dir = os.Getenv("HOME")
		if dir == "" {
			dir = s.config.HomeDir
		}
		if dir == "" {
			return errors.New("cd: HOME not set")
		}
	case 1:
		dir = args[0]
	default:
		return fmt.Errorf("cd: too many arguments")
	}

	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	return nil
}
