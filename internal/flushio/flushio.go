// Package flushio provides flushable writers for engine output streams.
package flushio

import (
	"bufio"
	"io"
)

// WriteFlusher is a flush-able io.Writer.
type WriteFlusher interface {
	io.Writer
	Flush() error
}

var discard WriteFlusher = nopFlusher{io.Discard}

// NewWriteFlusher creates a flushable writer: in-memory buffers and
// io.Discard get a noop Flush, existing WriteFlushers are returned as-is,
// anything else is wrapped in a bufio.Writer.
func NewWriteFlusher(w io.Writer) WriteFlusher {
	if w == nil || w == io.Discard {
		return discard
	}
	if wf, is := w.(WriteFlusher); is {
		return wf
	}

	// bytes.Buffer, strings.Builder
	type buffer interface {
		io.Writer
		Len() int
		Grow(n int)
		Reset()
	}
	if _, isBuffer := w.(buffer); isBuffer {
		return nopFlusher{w}
	}

	return bufio.NewWriter(w)
}

type nopFlusher struct{ io.Writer }

func (nf nopFlusher) Flush() error { return nil }

// Tee combines any number of writers into a single WriteFlusher that writes
// into and flushes all of them. Nil writers are skipped.
func Tee(ws ...io.Writer) WriteFlusher {
	var wfs writeFlushers
	for _, w := range ws {
		if w == nil {
			continue
		}
		switch wf := NewWriteFlusher(w).(type) {
		case writeFlushers:
			wfs = append(wfs, wf...)
		default:
			if wf != discard {
				wfs = append(wfs, wf)
			}
		}
	}
	switch len(wfs) {
	case 0:
		return discard
	case 1:
		return wfs[0]
	default:
		return wfs
	}
}

type writeFlushers []WriteFlusher

func (wfs writeFlushers) Write(p []byte) (n int, err error) {
	for _, wf := range wfs {
		n, err = wf.Write(p)
		if err != nil {
			return n, err
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}

func (wfs writeFlushers) Flush() (err error) {
	for _, wf := range wfs {
		if ferr := wf.Flush(); err == nil {
			err = ferr
		}
	}
	return err
}
