package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcorbin/forthline/internal/logio"
)

// NewWordsCommand creates the command that lists the dictionary.
func NewWordsCommand() *cobra.Command {
	var load []string
	cmd := &cobra.Command{
		Use:   "words",
		Short: "List dictionary words",
		Long: `List every word of a fresh engine's dictionary with its kind and, for
compiled words, its decompiled definition. Files given with --load are
evaluated first, so their definitions are listed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess := getSession(ctx)
			eng := sess.newEngine("words")
			for _, name := range load {
				ev := &evaluator{sess: sess, name: name, eng: eng, out: cmd.ErrOrStderr(), log: logio.NewLogger(cmd.ErrOrStderr())}
				if err := ev.evalFile(ctx, cmd.InOrStdin()); err != nil {
					return err
				}
				if ev.log.ExitCode() != 0 {
					return fmt.Errorf("loading %s: %w", name, ErrFailed)
				}
			}
			renderWords(cmd.OutOrStdout(), eng.Resolved())
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&load, "load", "l", nil, "evaluate this file before listing")
	return cmd
}
