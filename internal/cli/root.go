// Package cli provides the forthline command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcorbin/forthline/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd creates the root command; running it without a subcommand
// starts the REPL.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "forthline",
		Short: "A small Forth-like interpreter",
		Long: `forthline interprets a stack-based, Forth-like language one line at a
time: interactively, from files, or continuously as a file changes.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			sess := newSession(cfg, cmd.ErrOrStderr())
			if cfg.File != "" {
				sess.logger.Debug("using config file", "path", cfg.File)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, sessionKey{}, sess))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+")")
	flags.Int("memory-capacity", config.DefaultMemoryCapacity, "memory size in cells")
	flags.Int("step-limit", config.DefaultStepLimit, "maximum execution steps per line (0 for no limit)")
	flags.Duration("timeout", 0, "maximum time per line, including suspension (0 for no limit)")
	flags.String("prompt", config.DefaultPrompt, "REPL prompt")
	flags.String("history-file", "", "REPL history file")
	flags.String("transcript", "", "sqlite database recording every evaluated line")
	flags.Bool("trace", false, "log engine activity to stderr")
	flags.Bool("color", true, "style ok and error markers")

	rootCmd.AddCommand(NewREPLCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewWordsCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewVersionCommand(Version))
	return rootCmd
}

// Execute runs the root command, returning a process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
