package supervisor

import "sync"

// logBuffer is the append-only console history for one server instance.
// There is exactly one writer (the log pump) and any number of concurrent
// readers; the lock keeps partially-written lines from ever being visible.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *logBuffer) append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// snapshot returns a copy of the buffered lines in arrival order.
func (b *logBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *logBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
