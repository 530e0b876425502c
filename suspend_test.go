package forthline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (rr *resultRecorder) record(r Result) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.results = append(rr.results, r)
}

func (rr *resultRecorder) get() []Result {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]Result(nil), rr.results...)
}

func TestSuspend_resumesWhereItLeftOff(t *testing.T) {
	ctx := context.Background()
	var sched manualScheduler
	var rec resultRecorder
	e := New(WithScheduler(&sched), WithResultHandler(rec.record), WithLogf(t.Logf))

	r := e.ReadLine(ctx, "1 . 10 ms 2 .")
	require.NoError(t, r.Err)
	assert.True(t, r.Suspended)
	assert.Equal(t, "1 ", r.Output)
	assert.Equal(t, Suspended, e.State())
	assert.True(t, e.Suspended())
	require.Equal(t, 1, sched.len())
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, sched.delays)

	busy := e.ReadLine(ctx, "3")
	assert.ErrorIs(t, busy.Err, ErrSuspended)
	assert.Empty(t, e.Stack(), "refused line must not run")

	assert.Equal(t, 1, sched.fire())
	results := rec.get()
	require.Len(t, results, 1)
	assert.False(t, results[0].Suspended)
	assert.NoError(t, results[0].Err)

	plain := New().ReadLine(ctx, "1 . 2 .")
	assert.Equal(t, plain.Output, results[0].Output, "resumed output matches an unpaused line")
	assert.Equal(t, LineDone, e.State())
}

func TestSuspend_insideLoop(t *testing.T) {
	ctx := context.Background()
	var sched manualScheduler
	var rec resultRecorder
	e := New(WithScheduler(&sched), WithResultHandler(rec.record))

	require.NoError(t, e.ReadLine(ctx, ": tick 3 0 do i . 1 ms loop ;").Err)
	r := e.ReadLine(ctx, "tick")
	require.True(t, r.Suspended)
	assert.Equal(t, "0 ", r.Output)
	assert.Equal(t, Ints(0), e.ReturnStack(), "loop index kept while suspended")

	fired := 0
	for sched.len() > 0 {
		fired += sched.fire()
		require.Less(t, fired, 10, "too many resumes")
	}
	assert.Equal(t, 3, fired)

	results := rec.get()
	require.Len(t, results, 3)
	assert.True(t, results[0].Suspended)
	assert.Equal(t, "0 1 ", results[0].Output)
	assert.True(t, results[1].Suspended)
	last := results[2]
	assert.False(t, last.Suspended)
	assert.Equal(t, "0 1 2 ok", last.Output)
	assert.Empty(t, e.ReturnStack())
}

func TestSuspend_resumeIsSingleFire(t *testing.T) {
	ctx := context.Background()
	var rec resultRecorder
	var resumes []func()
	e := New(WithResultHandler(rec.record))
	e.dict.Add("pause", native("pause", func(c *Context) error {
		c.Suspend(func(resume func()) { resumes = append(resumes, resume) })
		return nil
	}), false)

	r := e.ReadLine(ctx, "1 pause 2")
	require.True(t, r.Suspended)
	require.Len(t, resumes, 1)

	resumes[0]()
	resumes[0]()
	results := rec.get()
	require.Len(t, results, 1)
	assert.Equal(t, Ints(1, 2), results[0].Stack)

	r = e.ReadLine(ctx, "3 pause 4")
	require.True(t, r.Suspended)
	require.Len(t, resumes, 2)
	resumes[0]()
	assert.Len(t, rec.get(), 1, "stale resume must not continue a later suspension")
	resumes[1]()
	assert.Equal(t, Ints(1, 2, 3, 4), e.Stack())
}

func TestSuspend_explicitResume(t *testing.T) {
	ctx := context.Background()
	var sched manualScheduler
	var rec resultRecorder
	e := New(WithScheduler(&sched), WithResultHandler(rec.record))

	_, err := e.Resume(ctx)
	assert.ErrorIs(t, err, ErrNotSuspended)

	require.True(t, e.ReadLine(ctx, "5 ms 7").Suspended)
	r, err := e.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Output)
	assert.Equal(t, Ints(7), r.Stack)

	assert.Equal(t, 1, sched.fire())
	assert.Empty(t, rec.get(), "timer after explicit resume is ignored")
	assert.Equal(t, Ints(7), e.Stack())
}

func TestSuspend_nilArm(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.dict.Add("wait-event", native("wait-event", func(c *Context) error {
		c.Suspend(nil)
		return nil
	}), false)

	require.True(t, e.ReadLine(ctx, "wait-event 1").Suspended)
	assert.True(t, e.Suspended())
	r, err := e.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ints(1), r.Stack)
}

func TestSuspend_realTimer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := New()

	r := e.ReadLine(ctx, "1 ms 5")
	require.NoError(t, r.Err)
	r, err := e.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, r.Suspended)
	assert.Equal(t, Ints(5), r.Stack)

	results := e.ReadLines(ctx, []string{"1 2 ms", "3"})
	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].Output)
	assert.Equal(t, Ints(5, 1, 3), e.Stack())
}

func TestSuspend_waitCancelled(t *testing.T) {
	var sched manualScheduler
	e := New(WithScheduler(&sched))
	require.True(t, e.ReadLine(context.Background(), "1 ms").Suspended)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, e.Suspended())
}

func TestReadLine_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New()
	r := e.ReadLine(ctx, "1 2 +")
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Empty(t, e.Stack())
	assert.NoError(t, e.ReadLine(context.Background(), "1").Err)
}
