package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type importReport struct {
	Album    string   `json:"album_name" yaml:"album_name"`
	Inserted []string `json:"inserted" yaml:"inserted"`
	Skipped  []string `json:"skipped" yaml:"skipped"`
	Failed   []string `json:"failed" yaml:"failed"`
}

func newImportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import a ZIP archive as an album",
		Long: `Extract a ZIP archive into the upload directory and index its images.

The album is named after the archive unless --name is given. An existing
album of the same name is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("%s is not a regular file", args[0])
			}

			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			result, err := a.importer.Import(cmd.Context(), args[0], name)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			report := importReport(result)
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "Imported album %s: %d inserted, %d skipped, %d failed\n",
					report.Album, len(report.Inserted), len(report.Skipped), len(report.Failed))
				writeList(w, "Skipped", report.Skipped)
				writeList(w, "Failed", report.Failed)
			})
		},
	}

	cmd.Flags().String("name", "", "album name (default is the archive name)")
	addOutputFlag(cmd)
	return cmd
}
