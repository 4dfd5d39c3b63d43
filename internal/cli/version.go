package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opensync-io/opensync/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		PrintVersion("opensync")
	},
}

// PrintVersion prints the build information for the named binary.
func PrintVersion(name string) {
	fmt.Printf("  %s %s\n", render(styleBrand, name), render(styleVersion, buildinfo.Version))
	fmt.Println(field("Commit", 7, buildinfo.CommitHash))
	fmt.Println(field("Built", 7, buildinfo.BuildDate))
	fmt.Println(field("OS/Arch", 7, runtime.GOOS+"/"+runtime.GOARCH))
	fmt.Println(field("Go", 7, runtime.Version()))
}
