package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	sourcesCmd := &cobra.Command{Use: "sources", Short: "Source operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/v0/sources")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sourcesCmd.AddCommand(listCmd)

	availabilityCmd := &cobra.Command{
		Use:   "availability SOURCE_ID",
		Short: "Show the cached availability snapshot for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/v0/sources/%s/availability", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sourcesCmd.AddCommand(availabilityCmd)

	rootCmd.AddCommand(sourcesCmd)
}
