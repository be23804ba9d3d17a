package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/djeeyo/nmreggae/internal/database"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	importFile  string
	importApply bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import events from a CSV file",
	Long: `Parse a CSV file the same way the admin upload does. Without --apply
only the accepted rows are reported; with --apply every stored event is
replaced by the file content.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "CSV file to import")
	importCmd.Flags().BoolVar(&importApply, "apply", false, "replace the stored events with the file content")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	f, err := os.Open(importFile)
	if err != nil {
		return errors.Wrap(err, "failed to open CSV file")
	}
	defer f.Close()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := database.Migrate(app.db); err != nil {
		return err
	}

	ctx, done := app.tracer.StartBackground(ctx, "cli.import")
	defer func() { done(err) }()

	out := cmd.OutOrStdout()
	if !importApply {
		result, err := app.events.PreviewCSV(ctx, f)
		if err != nil {
			return err
		}
		printImport(cmd, result)
		fmt.Fprintln(out, "dry run, nothing stored; pass --apply to replace the stored events")
		return nil
	}

	result, err := app.events.ReplaceFromCSV(ctx, f)
	if err != nil {
		return err
	}
	printImport(cmd, result)
	fmt.Fprintf(out, "replaced %d previous events with %d events\n", result.Previous, result.Count)
	if result.SnapshotPath != "" {
		fmt.Fprintf(out, "previous events saved to %s\n", result.SnapshotPath)
	}
	return nil
}

func printImport(cmd *cobra.Command, result *services.ImportResult) {
	out := cmd.OutOrStdout()
	for _, event := range result.Events {
		fmt.Fprintf(out, "%s  %-10s %-20s %s\n", event.Date.Format("2006-01-02"), event.DayOfWeek, event.City, event.EventName)
	}
	fmt.Fprintf(out, "%d accepted, %d skipped\n", result.Count, result.Skipped)
}
