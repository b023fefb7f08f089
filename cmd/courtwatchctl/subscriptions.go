package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	subsCmd := &cobra.Command{Use: "subscriptions", Short: "Subscription operations"}

	// create
	var payloadFile string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription from a JSON file (use - for stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if payloadFile == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(payloadFile)
			}
			if err != nil {
				return err
			}
			var payload map[string]interface{}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("invalid payload JSON: %w", err)
			}
			data, err := doPostJSON("/v0/subscriptions", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Path to subscription JSON (required)")
	_ = createCmd.MarkFlagRequired("file")
	subsCmd.AddCommand(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get SUBSCRIPTION_ID",
		Short: "Get subscription by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/v0/subscriptions/%s", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	subsCmd.AddCommand(getCmd)

	// list by owner
	listCmd := &cobra.Command{
		Use:   "list OWNER_ID",
		Short: "List an owner's subscriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/v0/owners/%s/subscriptions", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	subsCmd.AddCommand(listCmd)

	// lifecycle operations share a shape
	for _, op := range []string{"pause", "resume", "cancel"} {
		op := op
		opCmd := &cobra.Command{
			Use:   op + " SUBSCRIPTION_ID",
			Short: capitalize(op) + " a subscription",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := doPostJSON(fmt.Sprintf("/v0/subscriptions/%s/%s", args[0], op), nil)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, string(data))
				return nil
			},
		}
		subsCmd.AddCommand(opCmd)
	}

	// history
	historyCmd := &cobra.Command{
		Use:   "history SUBSCRIPTION_ID",
		Short: "Show recent notification records for a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/v0/subscriptions/%s/notifications", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	subsCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(subsCmd)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
