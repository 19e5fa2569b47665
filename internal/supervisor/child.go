package supervisor

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// child wraps one spawned server process with the handles the controller
// needs: serialized stdin injection, a liveness check, wait-for-exit and
// forced kill.
type child struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdinMu   sync.Mutex // serializes all writers to the child's stdin
	waitDone  chan struct{}
	exited    atomic.Bool
	waitErr   error // valid once waitDone is closed
	startedAt time.Time
}

// spawn starts the process described by argv and returns the handle together
// with the child's stdout stream for the log pump. The caller must invoke
// reap once the stream has been drained; waitDone is closed there.
func spawn(argv []string) (*child, io.ReadCloser, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, nil, errors.New("empty command line")
	}
	// ok: command line is built from a validated descriptor
	// #nosec G204
	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	c := &child{
		cmd:       cmd,
		stdin:     stdin,
		waitDone:  make(chan struct{}),
		startedAt: time.Now(),
	}
	return c, stdout, nil
}

// reap waits for the process to exit, records the result and closes
// waitDone. Wait closes the stdout pipe when it returns, so reap must not
// run until all reads from the stream have completed. Call exactly once.
func (c *child) reap() {
	c.waitErr = c.cmd.Wait()
	c.exited.Store(true)
	close(c.waitDone)
}

func (c *child) pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// alive reports whether the process has been started and not yet reaped.
func (c *child) alive() bool {
	return c.cmd.Process != nil && !c.exited.Load()
}

// writeLine writes line plus a newline terminator to the child's stdin and
// flushes. The stdin lock guarantees no two writers' bytes interleave.
func (c *child) writeLine(line string) error {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	bw := bufio.NewWriter(c.stdin)
	if _, err := bw.WriteString(line + "\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// kill forcibly terminates the process. No grace, no negotiation; the
// reaper goroutine still observes the exit and closes waitDone.
func (c *child) kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}
