package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/forthline"
	"github.com/jcorbin/forthline/internal/config"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.String()
}

type cliResult struct {
	out, errOut string
	err         error
}

// runCLI runs the root command in a scratch directory, so that no stray
// forthline.yaml is picked up.
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{out: out.String(), errOut: errOut.String(), err: err}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	a := writeFile(t, dir, "a.fth", ": sq dup * ;\n3 sq .\n")
	b := writeFile(t, dir, "b.fth", "1 2 + .\n.\" hi\" cr\n")

	res := runCLI(t, "", "run", "--parallel", "2", a, b)
	require.NoError(t, res.err, res.errOut)
	assert.Equal(t, "9 3 hi\n", res.out)
	assert.Empty(t, res.errOut)
}

func TestRun_stdin(t *testing.T) {
	chdir(t, t.TempDir())
	res := runCLI(t, "10 0 do i . loop\n", "run")
	require.NoError(t, res.err)
	assert.Equal(t, "0 1 2 3 4 5 6 7 8 9 ", res.out)
}

func TestRun_failure(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	src := writeFile(t, dir, "bad.fth", "1 .\ndrop\n2 .\n")

	res := runCLI(t, "", "run", src)
	require.ErrorIs(t, res.err, ErrFailed)
	assert.Equal(t, "1 ", res.out)
	assert.Contains(t, res.errOut, "ERROR: "+src+":2: drop: data stack underflow")

	res = runCLI(t, "", "run", "--keep-going", src)
	require.ErrorIs(t, res.err, ErrFailed)
	assert.Equal(t, "1 2 ", res.out)
}

func TestRun_tee(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	tee := filepath.Join(dir, "out.txt")

	res := runCLI(t, "42 .\n", "run", "--tee", tee)
	require.NoError(t, res.err)
	assert.Equal(t, "42 ", res.out)

	data, err := os.ReadFile(tee)
	require.NoError(t, err)
	assert.Equal(t, "42 ", string(data))
}

func TestRun_stepLimit(t *testing.T) {
	chdir(t, t.TempDir())
	res := runCLI(t, "begin 0 until\n", "run", "--step-limit", "100")
	require.ErrorIs(t, res.err, ErrFailed)
	assert.Contains(t, res.errOut, forthline.ErrStepLimit.Error())
}

func TestREPL(t *testing.T) {
	chdir(t, t.TempDir())
	res := runCLI(t, strings.Join([]string{
		"1 2 + .",
		": sq",
		"  dup * ;",
		"4 sq",
		".stack",
		".s",
		"drop drop",
		".memory",
		".quit",
		"99 .",
	}, "\n"), "repl")
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "3 ok", lines[0])
	assert.Equal(t, "compiled", lines[1])
	assert.Equal(t, "ok", lines[2])
	assert.Equal(t, "ok", lines[3])
	assert.Equal(t, "<1> 16", lines[4])
	assert.Equal(t, "<1> 16 ok", lines[5])
	assert.Equal(t, "drop: data stack underflow", lines[6])
	assert.Contains(t, res.out, "graphics")
	assert.NotContains(t, res.out, "99 ok")
}

func TestREPL_suspend(t *testing.T) {
	chdir(t, t.TempDir())
	res := runCLI(t, "1 . 10 ms 2 .\n", "repl")
	require.NoError(t, res.err)
	assert.Equal(t, "1 (suspended)\n1 2 ok\n", res.out)
}

func TestREPL_transcriptHistory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	db := filepath.Join(dir, "state", "transcript.db")

	res := runCLI(t, "3 4 * .\nnope\n", "repl", "--transcript", db)
	require.NoError(t, res.err)

	res = runCLI(t, "", "history", "--transcript", db)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "3 4 * .")
	assert.Contains(t, res.out, "12 ok")
	assert.Contains(t, res.out, "(2 lines)")

	res = runCLI(t, "", "history", "--sessions", "--transcript", db)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "repl")
}

func TestHistory_unconfigured(t *testing.T) {
	chdir(t, t.TempDir())
	res := runCLI(t, "", "history")
	assert.ErrorIs(t, res.err, ErrNoTranscript)
}

func TestWords(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	lib := writeFile(t, dir, "lib.fth", ": cube dup dup * * ;\nplus is +\n")

	res := runCLI(t, "", "words", "--load", lib)
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, ": cube dup dup * * ;")
	assert.Contains(t, res.out, "is +")
	assert.Contains(t, res.out, "native")
	assert.Contains(t, res.out, "control")
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "forthline v"+Version+"\n", res.out)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, config.DefaultFile, "memory_capacity: 0\n")

	res := runCLI(t, "", "run")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "memory_capacity")
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "w.fth", "1 .\n")

	cfg := &config.Config{MemoryCapacity: config.DefaultMemoryCapacity}
	sess := newSession(cfg, &syncBuffer{})
	var out, errOut syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchFile(ctx, sess, src, &out, &errOut) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1 ok")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(src, []byte("2 .\ndrop\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "2 1 errors")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, errOut.String(), "data stack underflow")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestEngineLogf(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng := forthline.New(forthline.WithLogf(engineLogf(logger, "engine", "test")))
	eng.ReadLine(context.Background(), "1 2 +")

	assert.Contains(t, buf.String(), `msg="1 2 +"`)
	assert.Contains(t, buf.String(), `mark=>`)
	assert.Contains(t, buf.String(), `engine=test`)

	quiet := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	before := buf.String()
	engineLogf(quiet)("%v %v", ">", "ignored")
	assert.Equal(t, before, buf.String())
}

func TestPlainOutput(t *testing.T) {
	assert.Equal(t, "3 ", plainOutput(forthline.Result{Output: "3 ok"}))
	assert.Equal(t, "", plainOutput(forthline.Result{Output: "", Compiling: true}))
	err := errors.New("boom")
	assert.Equal(t, "1 ", plainOutput(forthline.Result{Output: "1 boom", Err: err}))

	st := NewStyles(false)
	assert.Equal(t, "3 ok", st.styleOutput(forthline.Result{Output: "3 ok"}))
	assert.Equal(t, "1 boom", st.styleOutput(forthline.Result{Output: "1 boom", Err: err}))
}

func TestIsDotCommand(t *testing.T) {
	assert.True(t, isDotCommand(".quit"))
	assert.True(t, isDotCommand("  .WORDS "))
	assert.False(t, isDotCommand(".s"))
	assert.False(t, isDotCommand(". 1"))
	assert.False(t, isDotCommand(""))
	assert.Equal(t, "<2> 1 \"a\"", stackText([]forthline.Value{forthline.Int(1), forthline.Str("a")}))
}
