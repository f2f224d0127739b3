package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newThumbnailsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "Thumbnail cache maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clean <album>",
		Short: "Remove every cached thumbnail of an album",
		Long: `Remove the cached thumbnails of an album. They are regenerated from the
originals on the next request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.InvalidateAlbum(args[0]); err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Thumbnails for album %s cleaned up\n", args[0])
			return nil
		},
	})

	return cmd
}
