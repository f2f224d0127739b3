package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type syncReport struct {
	Added    []string `json:"added" yaml:"added"`
	Deleted  []string `json:"deleted" yaml:"deleted"`
	Failed   []string `json:"failed" yaml:"failed"`
	Duration string   `json:"duration" yaml:"duration"`
}

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the catalog with the upload directory",
		Long: `Walk the upload directory, index images that have no catalog row and
remove rows whose file is gone. Stale thumbnails of removed files are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			result, err := a.reconciler.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("synchronization failed: %w", err)
			}

			report := syncReport{
				Added:    result.Added,
				Deleted:  result.Deleted,
				Failed:   result.Failed,
				Duration: result.Duration.Round(time.Millisecond).String(),
			}
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "Synchronization completed in %s: %d added, %d deleted, %d failed\n",
					report.Duration, len(report.Added), len(report.Deleted), len(report.Failed))
				writeList(w, "Failed", report.Failed)
			})
		},
	}

	addOutputFlag(cmd)
	return cmd
}
