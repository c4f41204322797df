package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"netbench/internal/gitinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			sha := gitinfo.ShortSHA()
			if sha == "" {
				sha = "unknown"
			}
			fmt.Printf("netbench git=%s go=%s os=%s/%s\n", sha, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
