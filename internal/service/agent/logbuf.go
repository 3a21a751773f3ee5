package agent

import "sync"

const maxLogLines = 500

// LogBuffer is a fixed-capacity rolling line buffer. Once full, appending
// drops the oldest line.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) > maxLogLines {
		b.lines = append(b.lines[:0], b.lines[len(b.lines)-maxLogLines:]...)
	}
}

func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)

	return out
}
