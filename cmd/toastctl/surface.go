package main

import (
	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close SURFACE_ID",
	Short: "Dismiss the toast shown on a surface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Close(args[0])
	},
}

var closeNotificationCmd = &cobra.Command{
	Use:   "close-notification NOTIFICATION_ID",
	Short: "Retire a notification by id, queued or shown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.CloseNotification(args[0])
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign SURFACE_ID NOTIFICATION_ID",
	Short: "Show a queued notification on a specific surface",
	Long: `Bind a pending notification to a surface. Whatever the surface showed
before goes back to the queue, and an idle surface is shown again.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Assign(args[0], args[1])
	},
}

var readyCmd = &cobra.Command{
	Use:    "ready SURFACE_ID",
	Short:  "Report a surface's content as loaded",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.SurfaceReady(args[0])
	},
}

func init() {
	rootCmd.AddCommand(closeCmd, closeNotificationCmd, assignCmd, readyCmd)
}
