// tldrd is the Gitea PR auto-review daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LynnGuo666/Gitea-TLDR/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "tldrd",
		Short:         "AI code review daemon for Gitea pull requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tldrd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tldrd %s\n", version.Version)
		},
	}
}
