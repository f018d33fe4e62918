package cmd

import (
	"fmt"

	"device-reservation/internal/utils"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version",
	Annotations: map[string]string{"storage": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(utils.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
