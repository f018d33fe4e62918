package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"device-reservation/internal/ledger"
	"device-reservation/internal/storage"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage devices",
	Long: `List, add, rename, delete, reserve and release devices. Commands run on
the host and are always privileged.`,
}

func parseDeviceID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintf(os.Stderr, "device_id must be a positive integer, got %q\n", arg)
		os.Exit(1)
	}
	return id
}

// getActiveUser returns the login name of the operator, used as the default
// reservation holder.
func getActiveUser() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if currentUser, err := user.Current(); err == nil {
		return currentUser.Username
	}
	return ""
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices with their status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		devices, err := newCore().engine.ListDevices(ctx)
		if err != nil {
			fail("Failed to list devices", err)
		}
		if len(devices) == 0 {
			fmt.Println("No devices found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUSER\tETA\tETA STATUS")
		for _, d := range devices {
			user, eta, etaStatus := ledger.Placeholder, ledger.Placeholder, ledger.Placeholder
			if d.CurrentUser != nil {
				user = *d.CurrentUser
			}
			if d.ETA != nil {
				eta = d.ETA.Format("2006-01-02 15:04")
			}
			if d.ETAStatus != "" {
				etaStatus = string(d.ETAStatus)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Status, user, eta, etaStatus)
		}
		w.Flush()
	},
}

var deviceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a device, reusing the smallest free ID",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := newCore().engine.Add(context.Background(), strings.Join(args, " "))
		if err != nil {
			fail("Failed to add device", err)
		}
		fmt.Printf("Device %d added\n", id)
	},
}

var deviceRenameCmd = &cobra.Command{
	Use:   "rename <device_id> <name>",
	Short: "Rename a device",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseDeviceID(args[0])
		if err := newCore().engine.Rename(context.Background(), id, strings.Join(args[1:], " ")); err != nil {
			fail("Failed to rename device", err, "device_id", id)
		}
		fmt.Printf("Device %d renamed\n", id)
	},
}

var deviceDeleteCmd = &cobra.Command{
	Use:   "delete <device_id>",
	Short: "Delete an available device. Its usage history is kept.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseDeviceID(args[0])
		if err := newCore().engine.Delete(context.Background(), id); err != nil {
			fail("Failed to delete device", err, "device_id", id)
		}
		fmt.Printf("Device %d deleted\n", id)
	},
}

var deviceRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Fill gaps in the device ID range with placeholder devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		created, err := newCore().engine.Recover(context.Background())
		if err != nil {
			fail("Failed to recover devices", err)
		}
		if len(created) == 0 {
			fmt.Println("No missing devices")
			return
		}
		fmt.Printf("Recovered %d device(s): %v\n", len(created), created)
	},
}

var deviceLockCmd = &cobra.Command{
	Use:   "lock <device_id>",
	Short: "Reserve a device",
	Long: `Reserve a device until --eta (YYYY-MM-DDTHH:MM) or for --for duration.
The user defaults to the current login name.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseDeviceID(args[0])
		userName, _ := cmd.Flags().GetString("user")
		eta, _ := cmd.Flags().GetString("eta")
		dur, _ := cmd.Flags().GetDuration("for")

		if userName == "" {
			userName = getActiveUser()
		}

		c := newCore()
		if eta == "" {
			if dur <= 0 {
				fmt.Fprintln(os.Stderr, "either --eta or --for is required")
				os.Exit(1)
			}
			// Round up so the reservation is at least dur long
			eta = c.engine.Now().Add(dur + time.Minute - 1).Format(storage.TimeLayout)
		}

		if err := c.engine.Lock(context.Background(), id, userName, eta); err != nil {
			fail("Failed to lock device", err, "device_id", id)
		}
		fmt.Printf("Device %d locked until %s\n", id, eta)
	},
}

var deviceUnlockCmd = &cobra.Command{
	Use:   "unlock <device_id>",
	Short: "Release a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseDeviceID(args[0])
		changed, err := newCore().engine.Unlock(context.Background(), id)
		if err != nil {
			fail("Failed to unlock device", err, "device_id", id)
		}
		if !changed {
			fmt.Printf("Device %d was not in use\n", id)
			return
		}
		fmt.Printf("Device %d released\n", id)
	},
}

func init() {
	deviceLockCmd.Flags().StringP("user", "u", "", "reservation holder (default: current user)")
	deviceLockCmd.Flags().StringP("eta", "e", "", "expected return time, YYYY-MM-DDTHH:MM")
	deviceLockCmd.Flags().Duration("for", 0, "reservation length, e.g. 2h")

	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceAddCmd)
	deviceCmd.AddCommand(deviceRenameCmd)
	deviceCmd.AddCommand(deviceDeleteCmd)
	deviceCmd.AddCommand(deviceRecoverCmd)
	deviceCmd.AddCommand(deviceLockCmd)
	deviceCmd.AddCommand(deviceUnlockCmd)
	rootCmd.AddCommand(deviceCmd)
}
