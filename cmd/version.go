package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/kozaktomas/faceauth/internal/vision"
	"github.com/spf13/cobra"
)

// Set by -ldflags at build time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	Built     string   `json:"built"`
	GoVersion string   `json:"go_version"`
	Engines   []string `json:"engines"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the compiled-in face engines",
	Long: `Print build information. The engine list depends on build tags:
"remote" is always present and "dlib" needs -tags dlib.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			Commit:    CommitSHA,
			Built:     BuildDate,
			GoVersion: runtime.Version(),
			Engines:   vision.Available(),
		}
		if mustGetBool(cmd, "json") {
			return writeJSON(info)
		}
		fmt.Printf("faceauth %s (%s)\n", info.Version, info.GoVersion)
		fmt.Printf("  Commit:  %s\n", info.Commit)
		fmt.Printf("  Built:   %s\n", info.Built)
		fmt.Printf("  Engines: %s\n", strings.Join(info.Engines, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
