package cli

import (
	"fmt"
	"io"

	"pichost/internal/albums"

	"github.com/spf13/cobra"
)

type deleteReport struct {
	Album       string `json:"album_name" yaml:"album_name"`
	Article     string `json:"article_number,omitempty" yaml:"article_number,omitempty"`
	RowsRemoved int64  `json:"rows_removed" yaml:"rows_removed"`
	DirRemoved  bool   `json:"dir_removed" yaml:"dir_removed"`
}

func newDeleteAlbumCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-album <album>",
		Short: "Delete an album with its files and thumbnails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			album := args[0]
			return runDelete(cmd, a, fmt.Sprintf("Delete album %q and all of its files?", album),
				func() (albums.Removal, error) {
					return a.albums.DeleteAlbum(cmd.Context(), album)
				})
		},
	}

	addDeleteFlags(cmd)
	return cmd
}

func newDeleteArticleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-article <album> <article>",
		Short: "Delete one article folder and resynchronize",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			album, article := args[0], args[1]
			return runDelete(cmd, a, fmt.Sprintf("Delete article %q of album %q?", article, album),
				func() (albums.Removal, error) {
					return a.albums.DeleteArticle(cmd.Context(), album, article)
				})
		},
	}

	addDeleteFlags(cmd)
	return cmd
}

func addDeleteFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	addOutputFlag(cmd)
}

func runDelete(cmd *cobra.Command, a *app, prompt string, remove func() (albums.Removal, error)) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), stdinIsTerminal(), prompt)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
			return nil
		}
	}

	if err := a.open(cmd.Context()); err != nil {
		return err
	}
	defer a.close()

	removal, err := remove()
	if err != nil {
		return err
	}

	report := deleteReport(removal)
	return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
		target := report.Album
		if report.Article != "" {
			target += "/" + report.Article
		}
		fmt.Fprintf(w, "Deleted %s: %d rows removed", target, report.RowsRemoved)
		if !report.DirRemoved {
			fmt.Fprint(w, " (no folder on disk)")
		}
		fmt.Fprintln(w)
	})
}
