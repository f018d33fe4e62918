package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"device-reservation/internal/access"

	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Inspect the host-only access policy",
	Long: `Show which addresses the server treats as the host machine. Rename, delete
and recover are only offered to these addresses.`,
	Annotations: map[string]string{"storage": "none"},
}

var accessListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List privileged addresses",
	Annotations: map[string]string{"storage": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		policy := access.NewPolicyFromConfig(&cfg.Access)

		addrs := policy.Addresses()
		sort.Strings(addrs)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ADDRESS")
		fmt.Fprintln(w, "-------")
		for _, a := range addrs {
			fmt.Fprintln(w, a)
		}
		w.Flush()
		fmt.Printf("\nTotal: %d\n", len(addrs))
	},
}

var accessCheckCmd = &cobra.Command{
	Use:         "check <address>",
	Short:       "Check whether an address is privileged",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"storage": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		policy := access.NewPolicyFromConfig(&cfg.Access)
		if err := policy.Authorize(args[0]); err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		fmt.Printf("%s is privileged\n", args[0])
	},
}

func init() {
	accessCmd.AddCommand(accessListCmd)
	accessCmd.AddCommand(accessCheckCmd)
	rootCmd.AddCommand(accessCmd)
}
