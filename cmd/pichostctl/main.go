package main

import (
	"fmt"
	"os"

	"pichost/cmd/pichostctl/cli"
	"pichost/internal/startup"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: startup.Version,
		Commit:  startup.Commit,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
