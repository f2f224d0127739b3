package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"pichost/internal/database"
	"pichost/internal/startup"

	"github.com/spf13/cobra"
)

type migrateReport struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	database.CopyResult `yaml:",inline"`
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the catalog between SQLite and PostgreSQL",
		Long: `Copy every catalog row from one database to another, keeping creation
times and visibility. Rows already present in the target are skipped, so an
interrupted migration can be run again.

Either side is a SQLite file path or a postgres:// URL. The target schema is
created when missing.`,
		Example: "  pichostctl migrate --from ./data/pichost.db --to postgres://pichost:secret@db:5432/pichost",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			if from == to {
				return errors.New("--from and --to name the same database")
			}

			fromOpts := catalogOptions(from)
			if fromOpts.Engine() == database.EngineSQLite {
				// Opening a missing file would create an empty catalog.
				if _, err := os.Stat(from); err != nil {
					return fmt.Errorf("source catalog: %w", err)
				}
			}

			src, err := database.Open(cmd.Context(), fromOpts)
			if err != nil {
				return fmt.Errorf("failed to open source catalog: %w", err)
			}
			defer func() { _ = src.Close() }()

			dst, err := database.Open(cmd.Context(), catalogOptions(to))
			if err != nil {
				return fmt.Errorf("failed to open target catalog: %w", err)
			}
			defer func() { _ = dst.Close() }()

			result, err := database.Copy(cmd.Context(), src, dst)
			if err != nil {
				return err
			}

			report := migrateReport{From: startup.RedactURL(from), To: startup.RedactURL(to), CopyResult: result}
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "Copied %d rows from %s to %s (%d already present)\n",
					report.Copied, report.From, report.To, report.Skipped)
			})
		},
	}

	cmd.Flags().String("from", "", "source catalog (SQLite path or postgres:// URL)")
	cmd.Flags().String("to", "", "target catalog (SQLite path or postgres:// URL)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	addOutputFlag(cmd)
	return cmd
}

// catalogOptions treats target as a PostgreSQL URL when it has a postgres
// scheme and as a SQLite file path otherwise.
func catalogOptions(target string) database.Options {
	return database.Options{URL: target, SQLitePath: target}
}
