package logio

import (
	"bytes"
	"sync"
)

// Writer adapts a printf-style log function, such as testing.T.Logf or an
// engine trace function, into an io.Writer that logs one call per line.
type Writer struct {
	Logf func(string, ...interface{})

	// Prefix is prepended to every logged line.
	Prefix string

	mu      sync.Mutex
	partial []byte
}

// Write logs every completed line in p, holding back any trailing partial
// line until a later Write or Sync. Safe for concurrent use.
func (lw *Writer) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	rest := p
	for {
		line, tail, found := bytes.Cut(rest, []byte{'\n'})
		if !found {
			lw.partial = append(lw.partial, rest...)
			return len(p), nil
		}
		if len(lw.partial) > 0 {
			line = append(lw.partial, line...)
			lw.partial = lw.partial[:0]
		}
		lw.Logf("%s%s", lw.Prefix, line)
		rest = tail
	}
}

// Sync logs any held partial line.
func (lw *Writer) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.partial) > 0 {
		lw.Logf("%s%s", lw.Prefix, lw.partial)
		lw.partial = lw.partial[:0]
	}
	return nil
}

// Close calls Sync.
func (lw *Writer) Close() error { return lw.Sync() }
