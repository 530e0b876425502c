package fileinput_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jcorbin/forthline/internal/fileinput"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, in *fileinput.Input) (lines []string) {
	for {
		line, err := in.ReadLine()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line.String())
	}
}

func TestInput_Queue(t *testing.T) {
	in := fileinput.Input{Queue: []io.Reader{
		fileinput.NamedReader("a.fs", strings.NewReader("1 2 +\n.\n")),
		fileinput.NamedReader("b.fs", strings.NewReader(": sq dup * ;")),
		strings.NewReader("3 sq ."),
	}}
	defer in.Close()

	assert.Equal(t, []string{
		`a.fs:1 "1 2 +"`,
		`a.fs:2 "."`,
		`b.fs:1 ": sq dup * ;"`,
		`<unnamed *strings.Reader>:1 "3 sq ."`,
	}, readAll(t, &in))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.fs")
	require.NoError(t, os.WriteFile(path, []byte("variable x\n5 x !\n"), 0o600))

	in := fileinput.Open(path)
	defer in.Close()
	assert.Equal(t, []string{
		path + `:1 "variable x"`,
		path + `:2 "5 x !"`,
	}, readAll(t, in))
}

func TestOpen_missing(t *testing.T) {
	in := fileinput.Open(filepath.Join(t.TempDir(), "nope.fs"))
	defer in.Close()
	_, err := in.ReadLine()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
