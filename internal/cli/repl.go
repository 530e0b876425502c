package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jcorbin/forthline"
	"github.com/jcorbin/forthline/internal/transcript"
)

// NewREPLCommand creates the interactive command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive interpreter",
		Long: `Read lines from the terminal and interpret them, answering "ok" after
each successful line. Lines starting with "." are REPL commands; type .help
to list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
}

// lineReader is the part of readline.Instance the REPL uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// scanReader reads lines from a non-terminal input.
type scanReader struct{ *bufio.Scanner }

func (sr scanReader) Readline() (string, error) {
	if sr.Scan() {
		return sr.Text(), nil
	}
	if err := sr.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (scanReader) SetPrompt(string) {}
func (scanReader) Close() error     { return nil }

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var dotCommands = []string{".stack", ".words", ".memory", ".dump", ".forget", ".resume", ".help", ".quit", ".exit"}

// isDotCommand distinguishes REPL commands from words like . and .s
func isDotCommand(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, name := range dotCommands {
		if strings.EqualFold(fields[0], name) {
			return true
		}
	}
	return false
}

func runREPL(cmd *cobra.Command) error {
	ctx := cmd.Context()
	sess := getSession(ctx)
	eng := sess.newEngine("repl")

	store, err := sess.openTranscript()
	if err != nil {
		return err
	}
	defer store.Close()

	r := &repl{
		eng:    eng,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		styles: sess.styles,
		prompt: sess.cfg.Prompt,
		sess:   sess,
	}
	if store != nil {
		if r.rec, err = store.Begin(ctx, "repl"); err != nil {
			return err
		}
	}

	in := cmd.InOrStdin()
	if !isTerminal(in) {
		r.styles = NewStyles(false)
		r.prompt = ""
		return r.loop(ctx, scanReader{bufio.NewScanner(in)})
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(dotCommands)+1)
	for _, name := range dotCommands {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItemDynamic(func(string) []string { return eng.Words() }))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt,
		HistoryFile:     sess.cfg.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	fmt.Fprintln(r.out, "forthline "+Version+"; type .help for commands, .quit to exit")
	return r.loop(ctx, rl)
}

type repl struct {
	eng    *forthline.Engine
	out    io.Writer
	errOut io.Writer
	styles Styles
	prompt string
	sess   *session
	rec    *transcript.Session
}

func (r *repl) loop(ctx context.Context, in lineReader) error {
	defer in.Close()
	for {
		if r.eng.State() == forthline.Compiling {
			in.SetPrompt(strings.Repeat(" ", len(r.prompt)))
		} else {
			in.SetPrompt(r.prompt)
		}

		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if isDotCommand(line) {
			if quit := r.dotCommand(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
			continue
		}
		if err := r.eval(ctx, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// eval interprets one line, waiting out any suspension it causes.
func (r *repl) eval(ctx context.Context, line string) error {
	lctx, cancel := r.sess.lineContext(ctx)
	defer cancel()

	res := r.eng.ReadLine(lctx, line)
	if res.Suspended && res.Err == nil {
		renderResult(r.out, r.styles, res)
		var err error
		if res, err = r.eng.Wait(lctx); err != nil {
			fmt.Fprintln(r.errOut, r.styles.Error.Render(err.Error()))
			if _, rerr := r.eng.Resume(lctx); rerr != nil && !errors.Is(rerr, forthline.ErrNotSuspended) {
				return rerr
			}
			return nil
		}
	}
	renderResult(r.out, r.styles, res)
	return r.record(ctx, res)
}

func (r *repl) record(ctx context.Context, res forthline.Result) error {
	if r.rec == nil {
		return nil
	}
	return r.rec.Record(ctx, entryOf(res))
}

func (r *repl) dotCommand(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprint(r.out, replHelp)
	case ".stack":
		fmt.Fprintln(r.out, stackText(r.eng.Stack()))
		if rs := r.eng.ReturnStack(); len(rs) > 0 {
			fmt.Fprintln(r.out, "return "+stackText(rs))
		}
	case ".words":
		renderWords(r.out, r.eng.Resolved())
	case ".memory":
		renderMemory(r.out, r.eng.Bindings())
	case ".dump":
		if err := r.eng.Dump(r.out); err != nil {
			fmt.Fprintln(r.errOut, r.styles.Error.Render(err.Error()))
		}
	case ".forget":
		fmt.Fprintf(r.out, "forgot %d words\n", r.eng.Forget())
	case ".resume":
		res, err := r.eng.Resume(ctx)
		if err != nil {
			fmt.Fprintln(r.errOut, r.styles.Error.Render(err.Error()))
			break
		}
		renderResult(r.out, r.styles, res)
	default:
		fmt.Fprintf(r.errOut, "unknown command: %s (type .help for commands)\n", fields[0])
	}
	return false
}

const replHelp = `Commands:
  .stack    Show the data and return stacks
  .words    List dictionary words
  .memory   List memory bindings
  .dump     Describe the whole engine state
  .forget   Drop every non-permanent word
  .resume   Resume a suspended line now
  .help     Show this help message
  .quit     Exit the REPL
`
