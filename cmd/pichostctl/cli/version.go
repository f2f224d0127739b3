package cli

import (
	"fmt"
	"io"

	"pichost/internal/startup"

	"github.com/spf13/cobra"
)

type versionReport struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"build_time"`
	GoVersion string `json:"goVersion" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			info := startup.GetBuildInfo()
			report := versionReport{
				Version:   info.Version,
				Commit:    info.Commit,
				BuildTime: info.BuildTime,
				GoVersion: info.GoVersion,
				Platform:  info.OS + "/" + info.Arch,
			}
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "pichostctl %s (%s)\n", report.Version, report.Commit)
				fmt.Fprintf(w, "  built:    %s\n", report.BuildTime)
				fmt.Fprintf(w, "  go:       %s\n", report.GoVersion)
				fmt.Fprintf(w, "  platform: %s\n", report.Platform)
			})
		},
	}

	addOutputFlag(cmd)
	return cmd
}
