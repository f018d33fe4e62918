package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/storage"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export the usage log",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent reservations, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.HistoryLimit
		}

		entries, err := newCore().engine.RecentHistory(context.Background(), limit)
		if err != nil {
			fail("Failed to list history", err)
		}
		if len(entries) == 0 {
			fmt.Println("No reservations yet")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDEVICE\tNAME\tUSER\tSTART\tEND\tDURATION\tSTATUS")
		for i := range entries {
			e := &entries[i]
			end := ledger.Placeholder
			if e.EndTime != nil {
				end = e.EndTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.DeviceID, e.DeviceName, e.User,
				e.StartTime.Format("2006-01-02 15:04"), end,
				ledger.Duration(e), ledger.Status(e))
		}
		w.Flush()
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the usage log as CSV",
	Long: `Write the usage log as CSV to --output, or stdout. --start and --end
(YYYY-MM-DD) limit it to reservations starting on those dates, inclusive.
Without --output and with --sync the configured export file is rewritten.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		startArg, _ := cmd.Flags().GetString("start")
		endArg, _ := cmd.Flags().GetString("end")
		output, _ := cmd.Flags().GetString("output")
		syncFile, _ := cmd.Flags().GetBool("sync")

		c := newCore()

		if syncFile {
			if c.exporter == nil {
				fmt.Fprintln(os.Stderr, "export.path is not configured")
				os.Exit(1)
			}
			if err := c.exporter.Sync(ctx); err != nil {
				fail("Failed to write export file", err)
			}
			fmt.Printf("Export written to %s\n", c.exporter.Path())
			return
		}

		start, err := reservation.ParseDate(startArg, cfg.Location())
		if err != nil {
			fail("Invalid --start", err)
		}
		end, err := reservation.ParseDate(endArg, cfg.Location())
		if err != nil {
			fail("Invalid --end", err)
		}
		dr := storage.DateRange{Start: start, End: end}

		var w io.Writer = os.Stdout
		if output != "" {
			if output == "auto" {
				output = ledger.ExportFilename(dr)
			}
			f, err := os.Create(output)
			if err != nil {
				fail("Failed to create output", err, "file", output)
			}
			defer f.Close()
			w = f
		}

		if err := c.ledger.ExportCSV(ctx, dr, w); err != nil {
			fail("Failed to export log", err)
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
		}
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 0, "number of entries (default: history_limit)")

	historyExportCmd.Flags().String("start", "", "first start date, YYYY-MM-DD")
	historyExportCmd.Flags().String("end", "", "last start date, YYYY-MM-DD")
	historyExportCmd.Flags().StringP("output", "o", "", `output file, "auto" for the download file name`)
	historyExportCmd.Flags().Bool("sync", false, "rewrite the configured export file")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
