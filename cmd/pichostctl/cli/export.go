package cli

import (
	"fmt"
	"io"
	"os"

	"pichost/internal/export"

	"github.com/spf13/cobra"
)

type exportReport struct {
	File  string `json:"file" yaml:"file"`
	Bytes int    `json:"bytes" yaml:"bytes"`
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <album>",
		Short: "Export the public links of an album to XLSX",
		Long: `Write the public links of an album, or of one article with --article,
to an XLSX workbook.

With --type in_row every link gets its own column; with --type in_cell the
links of an article are joined into one cell using --separator. Use
--out - to write the workbook to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, _ := cmd.Flags().GetString("article")
			exportType, _ := cmd.Flags().GetString("type")
			separator, _ := cmd.Flags().GetString("separator")
			out, _ := cmd.Flags().GetString("out")

			req := export.Request{
				Album:     args[0],
				Article:   article,
				Type:      export.Type(exportType),
				Separator: separator,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			data, err := export.Export(cmd.Context(), a.catalog, req)
			if err != nil {
				return err
			}

			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = req.FileName()
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			report := exportReport{File: out, Bytes: len(data)}
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s (%d bytes)\n", report.File, report.Bytes)
			})
		},
	}

	cmd.Flags().String("article", "", "export a single article")
	cmd.Flags().String("type", string(export.TypeInRow), "layout (in_row, in_cell)")
	cmd.Flags().String("separator", export.DefaultSeparator, "link separator for in_cell")
	cmd.Flags().String("out", "", "output file (default is links_<album>[_<article>].xlsx, - for stdout)")
	addOutputFlag(cmd)
	return cmd
}
