package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smoothcloud/serverstarter/internal/history"
	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/logger"
	"github.com/smoothcloud/serverstarter/internal/metrics"
)

// DefaultStopTimeout bounds how long Stop waits for a server to exit after
// the shutdown command before falling back to a forced kill.
const DefaultStopTimeout = 10 * time.Second

var (
	// ErrNoLogs is returned by Logs when no buffer exists for the id.
	ErrNoLogs = errors.New("no logs available")
	// ErrUnknownServer is returned by Status for ids the registry has never
	// seen or has already cleaned up.
	ErrUnknownServer = errors.New("unknown server")
)

// Supervisor owns the full lifecycle of spawned server processes: starting
// them from a descriptor, pumping their console output, injecting commands
// and terminating them gracefully or by force.
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*entry

	log      *slog.Logger
	sinks    []history.Sink
	console  logger.Config
	argvFor  func(*instance.Server) []string
	stopWait time.Duration

	wg sync.WaitGroup // outstanding supervise tasks, drained by Shutdown
}

// entry is the per-id registry record. The four facets the controller
// tracks (descriptor, process handle, task handle, log buffer) live in one
// record so cleanup removes them as a unit and partially-visible state
// cannot occur.
type entry struct {
	srv    *instance.Server   // set once the spawn is confirmed
	proc   *child             // set once the spawn succeeds
	cancel context.CancelFunc // set when start is accepted
	logs   *logBuffer         // exists from start acceptance until cleanup
	mirror io.WriteCloser     // optional rotating console mirror
}

// Status is an externally consumable snapshot of one supervised server.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Proxy     bool      `json:"proxy"`
	StartedAt time.Time `json:"started_at"`
	LogLines  int       `json:"log_lines"`
}

func New() *Supervisor {
	return &Supervisor{
		entries:  make(map[string]*entry),
		log:      slog.Default(),
		argvFor:  func(s *instance.Server) []string { return s.Argv() },
		stopWait: DefaultStopTimeout,
	}
}

// SetLogger injects the event logger the controller reports transitions to.
func (s *Supervisor) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

// SetHistorySinks configures external lifecycle-event sinks (SQLite,
// PostgreSQL, ClickHouse). Passing no sinks clears the list.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

// SetConsoleLog enables mirroring each server's captured console output into
// a rotating file under cfg.Dir.
func (s *Supervisor) SetConsoleLog(cfg logger.Config) {
	s.console = cfg
}

// SetArgvBuilder overrides how a descriptor is turned into the spawned argv.
// Used by tests to substitute a scriptable stand-in for the real server
// command line.
func (s *Supervisor) SetArgvBuilder(f func(*instance.Server) []string) {
	if f != nil {
		s.argvFor = f
	}
}

// Start spawns a supervised process for the descriptor under the given id.
// It is a no-op when the id is already present in the registry. Start
// returns as soon as the supervising task has been submitted; spawn
// failures are handled inside the task and never surface here.
func (s *Supervisor) Start(id string, srv *instance.Server) {
	s.mu.Lock()
	if _, ok := s.entries[id]; ok {
		s.mu.Unlock()
		s.log.Debug("start ignored, server already registered", "id", id, "server", srv.Name)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{cancel: cancel, logs: &logBuffer{}}
	if w, err := s.console.ConsoleWriter(srv.Name); err != nil {
		s.log.Warn("console mirror disabled", "server", srv.Name, "error", err)
	} else {
		e.mirror = w
	}
	s.entries[id] = e
	s.mu.Unlock()

	// The argv builder is caller-supplied and must not run under s.mu.
	argv := s.argvFor(srv)
	s.log.Debug("building command", "server", srv.Name, "command", strings.Join(argv, " "))

	s.wg.Add(1)
	go s.supervise(ctx, id, srv, argv)
}

// Stop terminates the server for id. The supervising task is cancelled
// first (cooperative); then, if the process is alive, the protocol shutdown
// command is written to its stdin and Stop waits up to the stop timeout for
// a voluntary exit before killing the process outright. Write and wait
// failures are logged and swallowed; state cleanup always follows.
func (s *Supervisor) Stop(id string) {
	s.mu.RLock()
	e := s.entries[id]
	var (
		cancel context.CancelFunc
		proc   *child
		srv    *instance.Server
	)
	if e != nil {
		cancel, proc, srv = e.cancel, e.proc, e.srv
	}
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	if proc == nil || !proc.alive() {
		s.log.Info("no active process", "id", id)
		return
	}

	name := ""
	stopCmd := "stop"
	if srv != nil {
		name = srv.Name
		stopCmd = srv.StopCommand()
	}

	// The protocol command carries its own newline and one extra trailing
	// newline: "stop\n\n" (or "end\n\n" for proxies). Changing these bytes
	// breaks shutdown for deployed server software.
	if err := proc.writeLine(stopCmd + "\n"); err != nil {
		s.log.Error("failed to send stop command", "id", id, "error", err)
		s.Cleanup(id)
		return
	}

	select {
	case <-proc.waitDone:
		s.log.Info("server terminated gracefully", "id", id, "server", name)
		metrics.IncGracefulStop(name)
		s.emit(history.Event{Type: history.EventStopped, ServerID: id, ServerName: name, PID: proc.pid(), Port: port(srv), Proxy: isProxy(srv)})
	case <-time.After(s.stopWait):
		s.log.Warn("server did not terminate within timeout, forcing", "id", id, "server", name)
		if err := proc.kill(); err != nil {
			s.log.Error("kill failed", "id", id, "error", err)
		}
		metrics.IncKill(name)
		s.emit(history.Event{Type: history.EventKilled, ServerID: id, ServerName: name, PID: proc.pid(), Port: port(srv), Proxy: isProxy(srv)})
		// Give the reaper a moment so cleanup below is not refused.
		select {
		case <-proc.waitDone:
		case <-time.After(200 * time.Millisecond):
		}
	}

	s.Cleanup(id)
}

// Execute writes command plus a newline terminator to the server's stdin,
// exactly once, under the per-process stdin lock. It is a logged no-op when
// the process is missing or dead. A write failure is the one error this
// package surfaces to callers.
func (s *Supervisor) Execute(id, command string) error {
	s.mu.RLock()
	var proc *child
	if e := s.entries[id]; e != nil {
		proc = e.proc
	}
	s.mu.RUnlock()
	if proc == nil || !proc.alive() {
		s.log.Info("skipping command for non-alive server", "id", id)
		return nil
	}

	// Re-fetch the handle and re-check liveness: a concurrent stop or
	// cleanup may have removed or killed the process since the check above.
	s.mu.RLock()
	proc = nil
	if e := s.entries[id]; e != nil {
		proc = e.proc
	}
	s.mu.RUnlock()
	if proc == nil || !proc.alive() {
		s.log.Info("server no longer alive", "id", id)
		return nil
	}

	if err := proc.writeLine(command); err != nil {
		s.log.Error("error writing to server stdin", "id", id, "error", err)
		return fmt.Errorf("execute command on %s: %w", id, err)
	}
	return nil
}

// Logs returns a snapshot of the captured console lines for id in arrival
// order. ErrNoLogs is returned when no buffer exists for the id.
func (s *Supervisor) Logs(id string) ([]string, error) {
	s.mu.RLock()
	e := s.entries[id]
	s.mu.RUnlock()
	if e == nil || e.logs == nil {
		return nil, ErrNoLogs
	}
	return e.logs.snapshot(), nil
}

// Status reports the current snapshot for one id.
func (s *Supervisor) Status(id string) (Status, error) {
	s.mu.RLock()
	e := s.entries[id]
	if e == nil {
		s.mu.RUnlock()
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownServer, id)
	}
	st := s.statusOf(id, e)
	s.mu.RUnlock()
	return st, nil
}

// StatusAll reports snapshots for every registered id, in no particular
// order.
func (s *Supervisor) StatusAll() []Status {
	s.mu.RLock()
	out := make([]Status, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, s.statusOf(id, e))
	}
	s.mu.RUnlock()
	return out
}

// statusOf reads the entry's facets; the supervise task writes srv and proc
// under s.mu, so the caller must hold s.mu.
func (s *Supervisor) statusOf(id string, e *entry) Status {
	st := Status{ID: id}
	if e.srv != nil {
		st.Name = e.srv.Name
		st.Port = e.srv.Port
		st.Proxy = e.srv.Proxy
	}
	if e.proc != nil {
		st.Running = e.proc.alive()
		st.PID = e.proc.pid()
		st.StartedAt = e.proc.startedAt
	}
	if e.logs != nil {
		st.LogLines = e.logs.len()
	}
	return st
}

// Cleanup removes all registry state for id as a unit. It refuses to run,
// with a warning, while the process handle still reports alive; callers
// must make sure the process has actually exited first.
func (s *Supervisor) Cleanup(id string) {
	s.mu.Lock()
	e := s.entries[id]
	if e == nil {
		s.mu.Unlock()
		return
	}
	if e.proc != nil && e.proc.alive() {
		s.mu.Unlock()
		s.log.Warn("refusing cleanup for live server process", "id", id)
		return
	}
	delete(s.entries, id)
	s.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	if e.mirror != nil {
		_ = e.mirror.Close()
	}
	metrics.SetRunning(s.runningCount())
	s.log.Info("server state cleaned", "id", id)
}

// Shutdown stops every supervised server and waits for all supervise tasks
// to finish.
func (s *Supervisor) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.Stop(id)
	}
	s.wg.Wait()
}

func (s *Supervisor) runningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.proc != nil && e.proc.alive() {
			n++
		}
	}
	return n
}

func (s *Supervisor) buffer(id string) *logBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.entries[id]; e != nil {
		return e.logs
	}
	return nil
}

// emit fans a lifecycle event out to the configured history sinks. Sink
// failures never affect supervision.
func (s *Supervisor) emit(e history.Event) {
	s.mu.RLock()
	sinks := append([]history.Sink(nil), s.sinks...)
	s.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	e.OccurredAt = time.Now().UTC()
	for _, sk := range sinks {
		if err := sk.Send(context.Background(), e); err != nil {
			s.log.Debug("history sink send failed", "event", string(e.Type), "error", err)
		}
	}
}

func port(srv *instance.Server) int {
	if srv == nil {
		return 0
	}
	return srv.Port
}

func isProxy(srv *instance.Server) bool {
	return srv != nil && srv.Proxy
}
