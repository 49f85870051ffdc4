package shell

import (
	"bytes"
	"io"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

var (
	enterForegroundOnly = []byte("\nEntering foreground-only mode (& is now ignored)\n")
	exitForegroundOnly  = []byte("\nExiting foreground-only mode\n")

	// A raw-mode terminal does not turn \n into \r\n.
	enterForegroundOnlyRaw = bytes.ReplaceAll(enterForegroundOnly, []byte("\n"), []byte("\r\n"))
	exitForegroundOnlyRaw  = bytes.ReplaceAll(exitForegroundOnly, []byte("\n"), []byte("\r\n"))
)

// fdWriter writes straight to a file descriptor: no buffering, no
// formatting, safe to call from the signal path.
type fdWriter int

func (w fdWriter) Write(p []byte) (int, error) {
	return unix.Write(int(w), p)
}

// ModeController owns the foreground-only flag. SIGTSTP toggles it;
// SIGINT is swallowed so that an interrupt never ends the shell itself.
type ModeController struct {
	foregroundOnly atomic.Bool
	notice         io.Writer
}

func NewModeController(notice io.Writer) *ModeController {
	return &ModeController{notice: notice}
}

func (m *ModeController) ForegroundOnly() bool {
	return m.foregroundOnly.Load()
}

// Toggle flips the mode, writes the fixed notice for the new state and
// returns it.
func (m *ModeController) Toggle() bool {
	return m.toggle(enterForegroundOnly, exitForegroundOnly)
}

// ToggleRaw is Toggle for a terminal the line editor holds in raw mode.
func (m *ModeController) ToggleRaw() bool {
	return m.toggle(enterForegroundOnlyRaw, exitForegroundOnlyRaw)
}

func (m *ModeController) toggle(enter, exit []byte) bool {
	for {
		old := m.foregroundOnly.Load()
		if m.foregroundOnly.CompareAndSwap(old, !old) {
			if old {
				m.notice.Write(exit)
			} else {
				m.notice.Write(enter)
			}
			return !old
		}
	}
}

// Watch starts consuming SIGTSTP and SIGINT. The returned function stops it.
func (m *ModeController) Watch() (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, unix.SIGTSTP, unix.SIGINT)

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				if sig == unix.SIGTSTP {
					logger.Printf("foreground-only mode: %v", m.Toggle())
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
