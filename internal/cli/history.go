package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrNoTranscript is returned by history when no transcript is configured.
var ErrNoTranscript = errors.New("no transcript configured; set --transcript or transcript in forthline.yaml")

// NewHistoryCommand creates the transcript query command.
func NewHistoryCommand() *cobra.Command {
	var (
		sessions bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show recorded lines from the transcript",
		Long: `Show the lines recorded for a session, the most recent one by default.
With --sessions, list recent sessions instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := getSession(ctx).openTranscript()
			if err != nil {
				return err
			}
			if store == nil {
				return ErrNoTranscript
			}
			defer store.Close()

			if sessions {
				list, err := store.Sessions(ctx, limit)
				if err != nil {
					return err
				}
				renderSessions(cmd.OutOrStdout(), list)
				return nil
			}

			var id string
			if len(args) > 0 {
				id = args[0]
			}
			entries, err := store.Lines(ctx, id)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list sessions instead of lines")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions to list")
	return cmd
}
