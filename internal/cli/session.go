package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcorbin/forthline"
	"github.com/jcorbin/forthline/internal/config"
	"github.com/jcorbin/forthline/internal/transcript"
)

// session carries what every command needs after configuration is loaded.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	styles Styles
}

type sessionKey struct{}

func newSession(cfg *config.Config, errOut io.Writer) *session {
	level := slog.LevelWarn
	if cfg.Trace {
		level = slog.LevelDebug
	}
	return &session{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		styles: NewStyles(cfg.Color),
	}
}

func getSession(ctx context.Context) *session {
	if sess, ok := ctx.Value(sessionKey{}).(*session); ok {
		return sess
	}
	cfg := &config.Config{
		MemoryCapacity: config.DefaultMemoryCapacity,
		StepLimit:      config.DefaultStepLimit,
		Prompt:         config.DefaultPrompt,
	}
	return newSession(cfg, os.Stderr)
}

// engineLogf adapts logger into an engine trace function. Engine log lines
// lead with a one character mark that becomes the "mark" attribute.
func engineLogf(logger *slog.Logger, attrs ...any) func(mess string, args ...interface{}) {
	logger = logger.With(attrs...)
	return func(mess string, args ...interface{}) {
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		line := fmt.Sprintf(mess, args...)
		if len(line) > 2 && line[1] == ' ' {
			logger.Debug(line[2:], "mark", line[:1])
			return
		}
		logger.Debug(line)
	}
}

// newEngine builds an engine from the loaded configuration.
func (sess *session) newEngine(name string, opts ...forthline.Option) *forthline.Engine {
	return forthline.New(
		forthline.WithMemoryCapacity(sess.cfg.MemoryCapacity),
		forthline.WithStepLimit(sess.cfg.StepLimit),
		forthline.WithLogf(engineLogf(sess.logger, "engine", name)),
		forthline.Options(opts...),
	)
}

// openTranscript opens the configured transcript store, or returns nil when
// none is configured.
func (sess *session) openTranscript() (*transcript.Store, error) {
	path := sess.cfg.Transcript
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create transcript directory: %w", err)
		}
	}
	return transcript.Open(path)
}

// lineContext bounds one line's evaluation by the configured timeout.
func (sess *session) lineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if sess.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, sess.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}
