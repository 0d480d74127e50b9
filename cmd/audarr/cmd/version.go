package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audarr/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of audarr.",
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.GetInfo()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Println(info.JSON())
			return
		}
		fmt.Println(info.String())
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
