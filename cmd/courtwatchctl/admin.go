package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	adminCmd := &cobra.Command{Use: "admin", Short: "Operator commands"}

	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a refresh cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON("/v0/admin/cycle", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	adminCmd.AddCommand(cycleCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/v0/admin/stats")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	adminCmd.AddCommand(statsCmd)

	var olderThanDays int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune old notification records",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("/v0/admin/notifications/prune?olderThanDays=%d", olderThanDays), nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	pruneCmd.Flags().IntVarP(&olderThanDays, "older-than-days", "d", 90, "Delete records older than this many days")
	adminCmd.AddCommand(pruneCmd)

	rootCmd.AddCommand(adminCmd)
}
