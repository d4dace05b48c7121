package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/toastd/internal/core"
	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// selectOptions narrows and orders a notification listing.
type selectOptions struct {
	limit  int
	since  string
	typ    string
	filter string
	search string
	sort   string
	order  string
}

var (
	historyOpts selectOptions
	pendingOpts selectOptions
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List retired notifications",
	Long: `List notifications that were dismissed, expired, closed or purged,
oldest first. --limit keeps only the most recent entries.

Filter expressions are comma-separated conditions on title, body, type,
surface, duration, created and displayed, for example:

  toastctl history --filter "type=alert,created<1h"
  toastctl history --filter "body~=(?i)failed" --sort duration --order desc`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		notifications, err := client.History()
		if err != nil {
			return err
		}

		opts := historyOpts
		if !cmd.Flags().Changed("limit") {
			opts.limit = cfg.Output.Limit
		}
		selected, err := selectNotifications(notifications, opts)
		if err != nil {
			return err
		}
		return printNotifications(cmd, selected)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued and displayed notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		notifications, err := client.Pending()
		if err != nil {
			return err
		}
		selected, err := selectNotifications(notifications, pendingOpts)
		if err != nil {
			return err
		}
		return printNotifications(cmd, selected)
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID|INDEX",
	Short: "Show one notification from the queue or the history",
	Long: `Show a single notification. The argument is a notification id, a
unique id prefix of at least four characters, or the 1-based index shown
by "toastctl history".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		pending, err := client.Pending()
		if err != nil {
			return err
		}
		history, err := client.History()
		if err != nil {
			return err
		}

		n, err := lookup(pending, history, args[0])
		if err != nil {
			return err
		}
		return printNotifications(cmd, []model.Notification{*n})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, pendingCmd, showCmd)

	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Show only the last N entries (0 = all, default from config)")
	addSelectFlags(historyCmd, &historyOpts)

	pendingCmd.Flags().IntVarP(&pendingOpts.limit, "limit", "n", 0,
		"Show only the last N entries (0 = all)")
	addSelectFlags(pendingCmd, &pendingOpts)
}

func addSelectFlags(cmd *cobra.Command, opts *selectOptions) {
	cmd.Flags().StringVar(&opts.since, "since", "",
		"Only notifications created within this long (e.g. 30m, 2d, 1w)")
	cmd.Flags().StringVarP(&opts.typ, "type", "t", "",
		"Only notifications of this type")
	cmd.Flags().StringVar(&opts.filter, "filter", "",
		"Filter expression (e.g. \"type=alert,title~build\")")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "",
		"Only notifications whose title or body contains this text")
	cmd.Flags().StringVar(&opts.sort, "sort", "",
		"Sort by created, type, title or duration (default created)")
	cmd.Flags().StringVar(&opts.order, "order", "",
		"Sort order asc or desc (default asc)")
}

// selectNotifications applies filters, search and sort, then the limit.
func selectNotifications(notifications []model.Notification, opts selectOptions) ([]model.Notification, error) {
	since, err := core.ParseDuration(opts.since)
	if err != nil {
		return nil, err
	}
	expr, err := core.ParseFilter(opts.filter)
	if err != nil {
		return nil, err
	}
	field, err := core.ParseSortField(opts.sort)
	if err != nil {
		return nil, err
	}
	order, err := core.ParseSortOrder(opts.order)
	if err != nil {
		return nil, err
	}

	// Work on a copy so sorting never reorders the caller's slice.
	result := append([]model.Notification(nil), notifications...)
	result = core.Filter(result, core.FilterOptions{Since: since, Type: opts.typ})
	result = core.FilterWithExpr(result, expr)
	result = core.Search(result, opts.search)
	core.Sort(result, core.SortOptions{Field: field, Order: order})
	return lastN(result, opts.limit), nil
}

// lookup finds a notification by id or id prefix in the queue and then the
// history, or by its index in the history listing.
func lookup(pending, history []model.Notification, ref string) (*model.Notification, error) {
	if n := core.LookupByID(pending, ref); n != nil {
		return n, nil
	}
	if n := core.LookupByID(history, ref); n != nil {
		return n, nil
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		if n := core.LookupByIndex(history, idx); n != nil {
			return n, nil
		}
	}
	return nil, &engine.Error{Kind: engine.KindNotFound, Op: "show", Message: fmt.Sprintf("no notification matches %q", ref)}
}

func printNotifications(cmd *cobra.Command, notifications []model.Notification) error {
	f, err := newFormatter()
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), notifications)
}

// lastN returns the last n notifications, or all of them when n <= 0.
func lastN(notifications []model.Notification, n int) []model.Notification {
	if n <= 0 || n >= len(notifications) {
		return notifications
	}
	return notifications[len(notifications)-n:]
}
