package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export every event as CSV",
	Long:  `Write every stored event in backup CSV format to --out, or to stdout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		app, err := newApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		var w io.Writer = cmd.OutOrStdout()
		if backupOut != "" {
			f, err := os.Create(backupOut)
			if err != nil {
				return errors.Wrap(err, "failed to create backup file")
			}
			defer f.Close()
			w = f
		}

		count, err := app.events.ExportCSV(ctx, w)
		if err != nil {
			return err
		}

		if backupOut != "" {
			log.Info().Str("path", backupOut).Int("events", count).Msg("Backup written")
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(backupCmd)
}
