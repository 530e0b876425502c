package flushio_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jcorbin/forthline/internal/flushio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriteFlusher_buffers(t *testing.T) {
	var buf bytes.Buffer
	wf := flushio.NewWriteFlusher(&buf)
	_, err := io.WriteString(wf, "1 2 + . ok")
	require.NoError(t, err)
	assert.Equal(t, "1 2 + . ok", buf.String(), "buffers are written through")
	assert.NoError(t, wf.Flush())
}

func TestNewWriteFlusher_file(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.txt")
	f, err := os.Create(name)
	require.NoError(t, err)
	defer f.Close()

	wf := flushio.NewWriteFlusher(f)
	_, err = io.WriteString(wf, "hello")
	require.NoError(t, err)

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Empty(t, b, "file writes are buffered until flush")

	require.NoError(t, wf.Flush())
	b, err = os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestTee(t *testing.T) {
	var a bytes.Buffer
	var b strings.Builder
	wf := flushio.Tee(&a, nil, io.Discard, flushio.Tee(&b))
	_, err := io.WriteString(wf, "3 ok\n")
	require.NoError(t, err)
	require.NoError(t, wf.Flush())
	assert.Equal(t, "3 ok\n", a.String())
	assert.Equal(t, "3 ok\n", b.String())

	none := flushio.Tee()
	_, err = io.WriteString(none, "dropped")
	assert.NoError(t, err)
}
