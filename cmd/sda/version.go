package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/santoshnarayanan/sda/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "sda %s\n", version.Version)
			fmt.Fprintf(w, "  commit:  %s\n", version.Commit)
			fmt.Fprintf(w, "  built:   %s\n", version.BuildTime)
			fmt.Fprintf(w, "  go:      %s\n", runtime.Version())
			fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
