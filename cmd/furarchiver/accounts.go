package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// accountsCmd manages the owned accounts used when no usernames are given
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the owned accounts archived by default",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered owned accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		accounts, err := a.Store().OwnedAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No owned accounts registered.")
			return nil
		}
		for _, username := range accounts {
			fmt.Println(username)
		}
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register an owned account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		username := strings.ToLower(strings.TrimSpace(args[0]))
		if err := a.Store().AddOwnedAccount(ctx, username); err != nil {
			return err
		}
		fmt.Printf("Added %s\n", username)
		return nil
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove an owned account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		username := strings.ToLower(strings.TrimSpace(args[0]))
		if err := a.Store().RemoveOwnedAccount(ctx, username); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", username)
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}
