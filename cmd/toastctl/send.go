package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/toastd/internal/engine"
)

var sendOpts struct {
	duration time.Duration
	sticky   bool
	typ      string
}

var sendCmd = &cobra.Command{
	Use:   "send TITLE [BODY]",
	Short: "Queue a toast",
	Long: `Queue a toast and print its id.

Without --duration the configured default is used; --sticky keeps the toast
up until it is closed.

Examples:
  toastctl send "Build finished" "all 212 tests passed"
  toastctl send --type alert --duration 10s "Disk almost full"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationVarP(&sendOpts.duration, "duration", "d", 0,
		"How long the toast stays up (default from config, then daemon)")
	sendCmd.Flags().BoolVar(&sendOpts.sticky, "sticky", false,
		"Never auto-dismiss")
	sendCmd.Flags().StringVarP(&sendOpts.typ, "type", "t", "",
		"Notification type tag used for styling and sounds")
}

func runSend(cmd *cobra.Command, args []string) error {
	req, err := sendRequest(cmd, args)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	id, err := client.Create(req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
	return err
}

// sendRequest builds the create request from arguments, flags and config.
func sendRequest(cmd *cobra.Command, args []string) (engine.CreateRequest, error) {
	req := engine.CreateRequest{
		Title: args[0],
		Type:  cfg.Send.Type,
	}
	if len(args) > 1 {
		req.Body = args[1]
	}
	if sendOpts.typ != "" {
		req.Type = sendOpts.typ
	}

	switch {
	case sendOpts.sticky && cmd.Flags().Changed("duration"):
		return req, errors.New("--sticky and --duration are mutually exclusive")
	case sendOpts.sticky:
		req.Duration = -1
	case cmd.Flags().Changed("duration"):
		if sendOpts.duration <= 0 {
			return req, fmt.Errorf("duration must be positive, got %s", sendOpts.duration)
		}
		req.Duration = sendOpts.duration
	default:
		req.Duration = cfg.Send.Duration.Duration()
	}
	return req, nil
}
