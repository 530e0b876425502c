package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jcorbin/forthline/internal/logio"
)

// WatchDebounce is how long watch waits for writes to settle.
const WatchDebounce = 100 * time.Millisecond

// NewWatchCommand creates the command that re-evaluates a file on change.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch file",
		Short: "Re-evaluate a file whenever it changes",
		Long: `Evaluate a file in a fresh engine, then again each time it is written,
until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchFile(cmd.Context(), getSession(cmd.Context()), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// watchFile evaluates path once, then on every write or create event for it,
// until ctx is done. The containing directory is watched so that editors
// that replace files are followed.
func watchFile(ctx context.Context, sess *session, path string, out, errOut io.Writer) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	evals := make(chan struct{}, 1)
	evaluate := func() {
		fmt.Fprintf(out, "# %s\n", path)
		log := logio.NewLogger(errOut)
		ev := &evaluator{sess: sess, name: path, out: out, log: log, keepGoing: true}
		if err := ev.evalFile(ctx, nil); err != nil {
			log.ErrorIf(err)
		}
		if log.ExitCode() == 0 {
			fmt.Fprintln(out, sess.styles.OK.Render("ok"))
		} else {
			fmt.Fprintln(out, sess.styles.Error.Render(fmt.Sprintf("%d errors", log.Errors())))
		}
	}
	evaluate()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-evals:
			evaluate()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != path {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounce, func() {
				select {
				case evals <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				evaluate()
				continue
			}
			sess.logger.Warn("watcher error", "error", err)
		}
	}
}
