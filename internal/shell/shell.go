package shell

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"smallsh/internal/config"
	"smallsh/internal/history"
	"smallsh/internal/spawn"
)

// terminateGrace is how long exit cleanup waits after SIGTERM before it
// falls back to SIGKILL.
const terminateGrace = 2 * time.Second

var logger = log.New(io.Discard, "shell: ", log.LstdFlags)

// SetLogOutput enables debug logging to w, tagged with session.
func SetLogOutput(w io.Writer, session string) {
	logger.SetOutput(w)
	logger.SetPrefix(fmt.Sprintf("shell %s: ", session))
}

// LineReader supplies one line of input per call. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type Shell struct {
	config     *config.Config
	history    *history.History
	jobs       *Tracker
	mode       *ModeController
	lastStatus ExitStatus
	pid        int
	start      func(spawn.Config) (int, error)
	stdout     io.Writer
	stderr     io.Writer
}

// New creates a shell. hist may be nil to disable history recording.
func New(cfg *config.Config, hist *history.History) *Shell {
	return &Shell{
		config:  cfg,
		history: hist,
		jobs:    NewTracker(os.Stdout),
		mode:    NewModeController(fdWriter(os.Stdout.Fd())),
		pid:     os.Getpid(),
		start:   spawn.Start,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// Run is the read loop. It returns nil on exit or end of input and an error
// only when the shell cannot go on.
func (s *Shell) Run(reader LineReader) error {
	stop := s.mode.Watch()
	defer stop()

	if s.config.Banner != "" {
		color.New(color.Bold).Fprintln(s.stdout, s.config.Banner)
	}

	for {
		if err := s.jobs.Sweep(); err != nil {
			return err
		}

		reader.SetPrompt(s.config.Prompt)
		line, err := reader.Readline()
		switch {
		case err == readline.ErrInterrupt:
			continue
		case err == io.EOF:
			return s.shutdown()
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		s.record(line)

		if err := s.Execute(line); err != nil {
			var waitErr *WaitError
			switch {
			case errors.Is(err, errExit):
				return s.shutdown()
			case errors.As(err, &waitErr):
				return err
			default:
				s.report(err)
			}
		}
	}
}

// Execute expands, parses and runs one line.
func (s *Shell) Execute(line string) error {
	cmd, err := Parse(Expand(line, s.pid), s.mode.ForegroundOnly())
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}

	if ok, err := s.executeBuiltin(cmd); ok {
		return err
	}
	return s.runExternal(cmd)
}

// FilterInputRune is the readline hook for the prompt. The line editor's raw
// mode turns off terminal signals, so Ctrl-Z arrives as a rune and toggles
// the mode here instead of suspending the shell. Dropping the rune makes
// readline redraw the prompt and the pending line below the notice.
func (s *Shell) FilterInputRune(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		logger.Printf("foreground-only mode: %v", s.mode.ToggleRaw())
		return r, false
	}
	return r, true
}

func (s *Shell) shutdown() error {
	if s.config.ExitCleanup == config.CleanupOrphan {
		if pending := s.jobs.Pending(); len(pending) > 0 {
			logger.Printf("leaving %d background children running: %v", len(pending), pending)
		}
		return nil
	}
	return s.jobs.TerminateAll(terminateGrace)
}

func (s *Shell) record(line string) {
	if s.history == nil || strings.TrimSpace(line) == "" {
		return
	}
	if err := s.history.Add(line); err != nil {
		logger.Printf("saving history: %v", err)
	}
}

func (s *Shell) report(err error) {
	color.New(color.FgRed).Fprintf(s.stderr, "smallsh: %v\n", err)
}
