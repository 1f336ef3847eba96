package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/extractor"
	"github.com/guiyumin/vsniff/internal/core/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and built-in rule count",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionLine(extractor.DefaultRegistry()))
	},
}

func versionLine(reg *extractor.Registry) string {
	site, generic := 0, 0
	for _, info := range reg.Rules() {
		if info.Generic {
			generic++
		} else {
			site++
		}
	}
	return fmt.Sprintf("vsniff %s (%d site rules, %d generic rules) %s %s/%s",
		version.Version, site, generic, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
