package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"quizmaster-service/internal/app"
)

// NewExportCmd writes one participant's results of a session as CSV.
func NewExportCmd(configPath *string) *cobra.Command {
	var sessionID, participantID, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a participant's session results as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildService(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.service.Export(ctx, sessionID, participantID)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return app.WriteCSV(w, rows)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&participantID, "participant", "", "participant id, every result when empty")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
