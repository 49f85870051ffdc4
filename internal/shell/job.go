package shell

import (
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// WaitError is a failure of the wait primitive itself. It means the shell's
// view of its children is broken and is fatal.
type WaitError struct {
	Pid int
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for pid %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

type waitFunc func(pid int, ws *unix.WaitStatus, options int) (int, error)

func wait4(pid int, ws *unix.WaitStatus, options int) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, options, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}

// Tracker owns the set of background pids. Each pid leaves the set exactly
// once, when a wait on it reports termination.
type Tracker struct {
	pids map[int]struct{}
	wait waitFunc
	kill func(pid int, sig unix.Signal) error
	out  io.Writer
}

func NewTracker(out io.Writer) *Tracker {
	return &Tracker{
		pids: make(map[int]struct{}),
		wait: wait4,
		kill: unix.Kill,
		out:  out,
	}
}

func (t *Tracker) Add(pid int) {
	t.pids[pid] = struct{}{}
}

// Pending lists the background pids not yet reaped, in ascending order.
func (t *Tracker) Pending() []int {
	pids := make([]int, 0, len(t.pids))
	for pid := range t.pids {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// WaitForeground blocks until pid terminates. A signal death is announced;
// an exit code is only returned.
func (t *Tracker) WaitForeground(pid int) (ExitStatus, error) {
	var ws unix.WaitStatus
	if _, err := t.wait(pid, &ws, 0); err != nil {
		return ExitStatus{}, &WaitError{Pid: pid, Err: err}
	}

	status := exitStatusOf(ws)
	logger.Printf("foreground %d: %s", pid, status)
	if status.IsSignaled() {
		fmt.Fprintln(t.out, status)
	}
	return status, nil
}

// Sweep reaps every finished background child without blocking.
func (t *Tracker) Sweep() error {
	for _, pid := range t.Pending() {
		var ws unix.WaitStatus
		wpid, err := t.wait(pid, &ws, unix.WNOHANG)
		if err != nil {
			return &WaitError{Pid: pid, Err: err}
		}
		if wpid == 0 {
			continue
		}
		t.reaped(pid, ws)
	}
	return nil
}

// TerminateAll sends SIGTERM to every background child, sweeps until grace
// runs out, then kills and reaps whatever is left.
func (t *Tracker) TerminateAll(grace time.Duration) error {
	for _, pid := range t.Pending() {
		if err := t.kill(pid, unix.SIGTERM); err != nil {
			logger.Printf("SIGTERM %d: %v", pid, err)
		}
	}

	deadline := time.Now().Add(grace)
	for len(t.pids) > 0 {
		if err := t.Sweep(); err != nil {
			return err
		}
		if len(t.pids) == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, pid := range t.Pending() {
		if err := t.kill(pid, unix.SIGKILL); err != nil {
			logger.Printf("SIGKILL %d: %v", pid, err)
		}
		var ws unix.WaitStatus
		if _, err := t.wait(pid, &ws, 0); err != nil {
			return &WaitError{Pid: pid, Err: err}
		}
		t.reaped(pid, ws)
	}
	return nil
}

func (t *Tracker) reaped(pid int, ws unix.WaitStatus) {
	delete(t.pids, pid)
	status := exitStatusOf(ws)
	logger.Printf("background %d: %s", pid, status)
	fmt.Fprintf(t.out, "background pid %d is done: %s\n", pid, status)
}
