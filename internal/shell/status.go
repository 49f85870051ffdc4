package shell

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExitStatus is how a child terminated: with an exit code or by a signal,
// never both.
type ExitStatus struct {
	signaled bool
	value    int
}

func Exited(code uint8) ExitStatus {
	return ExitStatus{value: int(code)}
}

func Signaled(sig int) ExitStatus {
	return ExitStatus{signaled: true, value: sig}
}

func (s ExitStatus) IsSignaled() bool {
	return s.signaled
}

// Code is the exit code; zero for a signaled status.
func (s ExitStatus) Code() uint8 {
	if s.signaled {
		return 0
	}
	return uint8(s.value)
}

// Signal is the terminating signal number; zero for an exited status.
func (s ExitStatus) Signal() int {
	if !s.signaled {
		return 0
	}
	return s.value
}

// fmt.Stringer
func (s ExitStatus) String() string {
	if s.signaled {
		return fmt.Sprintf("terminated by signal %d", s.value)
	}
	return fmt.Sprintf("exit value %d", s.value)
}

func exitStatusOf(ws unix.WaitStatus) ExitStatus {
	if ws.Signaled() {
		return Signaled(int(ws.Signal()))
	}
	return Exited(uint8(ws.ExitStatus()))
}
