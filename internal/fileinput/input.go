// Package fileinput reads source lines from a queue of named streams.
package fileinput

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Location names a line in an Input stream.
type Location struct {
	Name string
	Line int
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }

// Line is one source line along with where it came from.
type Line struct {
	Location
	Text string
}

func (il Line) String() string { return fmt.Sprintf("%v %q", il.Location, il.Text) }

// Input implements sequential line reading through a Queue of one or more
// input streams. Streams implementing io.Closer are closed once exhausted.
type Input struct {
	Queue []io.Reader

	cur  io.Reader
	scan *bufio.Scanner
	loc  Location
}

// Open returns an Input over the named files, opened lazily in order.
func Open(names ...string) *Input {
	var in Input
	for _, name := range names {
		in.Queue = append(in.Queue, &lazyFile{name: name})
	}
	return &in
}

// ReadLine returns the next line, moving on through the queue as each stream
// runs dry. It returns io.EOF once every stream is exhausted.
func (in *Input) ReadLine() (Line, error) {
	for {
		if in.scan == nil && !in.nextIn() {
			return Line{}, io.EOF
		}
		if in.scan.Scan() {
			in.loc.Line++
			return Line{Location: in.loc, Text: in.scan.Text()}, nil
		}
		if err := in.scan.Err(); err != nil {
			in.closeCur()
			return Line{Location: in.loc}, fmt.Errorf("%v: %w", in.loc.Name, err)
		}
		in.closeCur()
	}
}

// Close closes any stream still open, including queued ones.
func (in *Input) Close() (err error) {
	in.closeCur()
	for _, r := range in.Queue {
		if cl, ok := r.(io.Closer); ok {
			if cerr := cl.Close(); err == nil {
				err = cerr
			}
		}
	}
	in.Queue = nil
	return err
}

func (in *Input) closeCur() {
	if cl, ok := in.cur.(io.Closer); ok {
		cl.Close()
	}
	in.cur = nil
	in.scan = nil
}

func (in *Input) nextIn() bool {
	if len(in.Queue) == 0 {
		return false
	}
	r := in.Queue[0]
	in.Queue = in.Queue[1:]
	in.cur = r
	in.scan = bufio.NewScanner(r)
	in.loc = Location{Name: nameOf(r)}
	return true
}

func nameOf(obj interface{}) string {
	if nom, ok := obj.(interface{ Name() string }); ok {
		return nom.Name()
	}
	return fmt.Sprintf("<unnamed %T>", obj)
}

// NamedReader attaches a name to a reader for Location reporting.
func NamedReader(name string, r io.Reader) io.Reader {
	return namedReader{r, name}
}

type namedReader struct {
	io.Reader
	name string
}

func (nr namedReader) Name() string { return nr.name }

type lazyFile struct {
	name string
	f    *os.File
	err  error
}

func (lf *lazyFile) Name() string { return lf.name }

func (lf *lazyFile) Read(p []byte) (int, error) {
	if lf.f == nil && lf.err == nil {
		lf.f, lf.err = os.Open(lf.name)
	}
	if lf.err != nil {
		return 0, lf.err
	}
	return lf.f.Read(p)
}

func (lf *lazyFile) Close() error {
	if lf.f == nil {
		return nil
	}
	return lf.f.Close()
}
