package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/agentlaunch-dev/agentlaunch/internal/version"
)

type VersionOutput struct {
	AlctlVersion string `json:"alctl_version"`
	GitCommit    string `json:"git_commit"`
	BuildDate    string `json:"build_date"`
	Release      bool   `json:"release"`
}

var jsonOutput bool

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Displays the version of alctl.`,
	Run: func(cmd *cobra.Command, args []string) {
		output := VersionOutput{
			AlctlVersion: version.Version,
			GitCommit:    version.GitCommit,
			BuildDate:    version.BuildDate,
			// Dev builds carry a non-semver version string.
			Release: semver.IsValid(version.EnsureVPrefix(version.Version)),
		}

		if jsonOutput {
			jsonBytes, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				fmt.Printf("Error marshaling JSON: %v\n", err)
				return
			}
			fmt.Println(string(jsonBytes))
			return
		}

		// Human-readable output
		fmt.Printf("alctl version %s\n", output.AlctlVersion)
		fmt.Printf("Git commit: %s\n", output.GitCommit)
		fmt.Printf("Build date: %s\n", output.BuildDate)
		if !output.Release {
			fmt.Println("(development build)")
		}
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}
