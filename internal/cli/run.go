package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/forthline"
	"github.com/jcorbin/forthline/internal/fileinput"
	"github.com/jcorbin/forthline/internal/flushio"
	"github.com/jcorbin/forthline/internal/logio"
	"github.com/jcorbin/forthline/internal/panicerr"
	"github.com/jcorbin/forthline/internal/transcript"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Parallel  int
	KeepGoing bool
	Tee       string
}

// ErrFailed is returned by run when any source line failed; the failures
// themselves have already been reported.
var ErrFailed = errors.New("evaluation failed")

// NewRunCommand creates the batch evaluation command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Evaluate source files",
		Long: `Evaluate each file in a fresh engine, printing what its lines output.
With no files, or "-", standard input is read. Files are evaluated
concurrently with --parallel; their output is still printed in argument order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, args, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 1, "number of files to evaluate at once")
	cmd.Flags().BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "continue past failing lines")
	cmd.Flags().StringVar(&opts.Tee, "tee", "", "also write output to this file")
	return cmd
}

func runFiles(cmd *cobra.Command, names []string, opts *RunOptions) error {
	ctx := cmd.Context()
	sess := getSession(ctx)
	if len(names) == 0 {
		names = []string{"-"}
	}

	store, err := sess.openTranscript()
	if err != nil {
		return err
	}
	defer store.Close()

	var tee io.Writer
	if opts.Tee != "" {
		f, err := os.Create(opts.Tee)
		if err != nil {
			return err
		}
		defer f.Close()
		tee = f
	}
	out := flushio.Tee(cmd.OutOrStdout(), tee)
	log := logio.NewLogger(cmd.ErrOrStderr())

	outputs := make([]bytes.Buffer, len(names))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.Parallel, 1))
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			ev := &evaluator{
				sess:      sess,
				name:      name,
				out:       &outputs[i],
				log:       log,
				store:     store,
				keepGoing: opts.KeepGoing,
			}
			return panicerr.Recover(name, func() error {
				return ev.evalFile(egctx, cmd.InOrStdin())
			})
		})
	}
	err = eg.Wait()

	for i := range outputs {
		if _, werr := outputs[i].WriteTo(out); werr != nil && err == nil {
			err = werr
		}
	}
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if err == nil && log.ExitCode() != 0 {
		err = ErrFailed
	}
	return err
}

// evaluator runs one source through a fresh engine.
type evaluator struct {
	sess      *session
	name      string
	eng       *forthline.Engine
	out       io.Writer
	log       *logio.Logger
	store     *transcript.Store
	keepGoing bool
}

func (ev *evaluator) evalFile(ctx context.Context, stdin io.Reader) error {
	var in *fileinput.Input
	if ev.name == "-" {
		in = &fileinput.Input{Queue: []io.Reader{fileinput.NamedReader("<stdin>", stdin)}}
	} else {
		in = fileinput.Open(ev.name)
	}
	defer in.Close()

	var rec *transcript.Session
	if ev.store != nil {
		var err error
		if rec, err = ev.store.Begin(ctx, ev.name); err != nil {
			return err
		}
	}

	eng := ev.eng
	if eng == nil {
		eng = ev.sess.newEngine(ev.name)
	}
	for {
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ev.log.Errorf("%v", err)
			return nil
		}

		res := ev.evalLine(ctx, eng, line.Text)
		if rec != nil {
			if err := rec.Record(ctx, entryOf(res)); err != nil {
				return err
			}
		}
		fmt.Fprint(ev.out, plainOutput(res))
		if res.Err != nil {
			ev.log.Errorf("%v: %v", line.Location, res.Err)
			if !ev.keepGoing || ctx.Err() != nil {
				return nil
			}
		}
	}

	if eng.State() == forthline.Compiling {
		ev.log.Errorf("%v: unterminated definition", ev.name)
	}
	return nil
}

func (ev *evaluator) evalLine(ctx context.Context, eng *forthline.Engine, text string) forthline.Result {
	lctx, cancel := ev.sess.lineContext(ctx)
	defer cancel()

	res := eng.ReadLine(lctx, text)
	if res.Suspended && res.Err == nil {
		var err error
		if res, err = eng.Wait(lctx); err != nil {
			if r, rerr := eng.Resume(lctx); rerr == nil {
				return r
			}
			res.Line, res.Err = text, err
		}
	}
	return res
}

func entryOf(res forthline.Result) transcript.Entry {
	ent := transcript.Entry{
		Text:      res.Line,
		Output:    res.Output,
		Stack:     stackText(res.Stack),
		Suspended: res.Suspended,
	}
	if res.Err != nil {
		ent.Err = res.Err.Error()
	}
	return ent
}

// plainOutput strips the status suffix from a line's output, leaving only
// what its words wrote.
func plainOutput(res forthline.Result) string {
	switch {
	case res.Err != nil:
		return strings.TrimSuffix(res.Output, res.Err.Error())
	case res.Compiling:
		return res.Output
	}
	return strings.TrimSuffix(res.Output, "ok")
}
