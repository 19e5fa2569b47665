package supervisor

import (
	"bufio"
	"context"
	"io"

	"github.com/smoothcloud/serverstarter/internal/history"
	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/metrics"
)

// supervise is the per-server task: it spawns the OS process, registers the
// descriptor and process handle, pumps console output until the stream is
// exhausted, waits for the exit and cleans up on every path. Cancellation
// via ctx is cooperative: it accelerates the transition to cleanup but never
// bypasses it, and it does not by itself terminate the OS process.
func (s *Supervisor) supervise(ctx context.Context, id string, srv *instance.Server, argv []string) {
	defer s.wg.Done()
	log := s.log.With("id", id, "server", srv.Name)

	c, stdout, err := spawn(argv)
	if err != nil {
		log.Error("spawning server process failed", "error", err)
		s.Cleanup(id)
		return
	}

	s.mu.Lock()
	e := s.entries[id]
	if e != nil {
		e.srv = srv
		e.proc = c
	}
	s.mu.Unlock()
	if e == nil {
		// Registry entry disappeared before the spawn finished; there is
		// nothing left to supervise, so reap the orphan.
		log.Warn("registry entry vanished during spawn, killing process")
		_ = c.kill()
		c.reap()
		return
	}

	log.Info("server process started", "pid", c.pid())
	metrics.IncStart(srv.Name)
	metrics.SetRunning(s.runningCount())
	s.emit(history.Event{Type: history.EventStarted, ServerID: id, ServerName: srv.Name, PID: c.pid(), Port: srv.Port, Proxy: srv.Proxy})

	s.pump(ctx, id, srv, stdout, e.mirror)

	// Reap only once the pump is done with the stream.
	c.reap()
	if c.waitErr != nil {
		log.Info("server process exited", "error", c.waitErr)
	} else {
		log.Info("server process exited")
	}
	if ctx.Err() == nil {
		// Natural exit; a stop-initiated exit is reported by Stop itself.
		s.emit(history.Event{Type: history.EventStopped, ServerID: id, ServerName: srv.Name, PID: c.pid(), Port: srv.Port, Proxy: srv.Proxy, Detail: "exited"})
	} else {
		log.Debug("supervision cancelled")
	}

	s.Cleanup(id)
}

// pump drains the child's stdout line by line into the id's log buffer,
// prefixing each line with the server name. It returns when the stream is
// exhausted, the task is cancelled, or the log buffer has been removed by a
// concurrent cleanup. In that last case remaining output is dropped silently
// and no fresh buffer is created for the dead id.
func (s *Supervisor) pump(ctx context.Context, id string, srv *instance.Server, r io.Reader, mirror io.Writer) {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			buf := s.buffer(id)
			if buf == nil {
				return
			}
			formatted := "[" + srv.Name + "]" + line
			buf.append(formatted)
			if mirror != nil {
				_, _ = mirror.Write([]byte(formatted + "\n"))
			}
			metrics.AddConsoleLines(srv.Name, 1)
		case <-ctx.Done():
			return
		}
	}
}
