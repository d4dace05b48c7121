package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue, surface and history counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		status, err := client.Status()
		if err != nil {
			return err
		}
		return f.FormatStatus(cmd.OutOrStdout(), status)
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the surface pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		status, err := client.PoolStatus()
		if err != nil {
			return err
		}
		return f.FormatPool(cmd.OutOrStdout(), status)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "toastctl %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return err
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, poolCmd, versionCmd)
}
