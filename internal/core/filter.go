// Package core provides filtering, sorting, and lookup over notification lists.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/toastd/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // title, body, type, surface, duration, created, displayed
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex   *regexp.Regexp
	intVal  int
	timeVal time.Time
	boolVal bool
}

// FilterExpr is a set of conditions ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies simple criteria for filtering notifications.
type FilterOptions struct {
	Since time.Duration // Keep notifications created after now-since (0=all)
	Type  string        // Exact match on notification type
	Limit int           // Keep the last Limit results (0=unlimited)
}

var now = time.Now

// Filter filters notifications based on the provided options. Order is kept.
func Filter(notifications []model.Notification, opts FilterOptions) []model.Notification {
	cutoff := now().Add(-opts.Since)
	result := make([]model.Notification, 0, len(notifications))

	for _, n := range notifications {
		if opts.Since > 0 && n.CreatedAtTime().Before(cutoff) {
			continue
		}
		if opts.Type != "" && n.Type != opts.Type {
			continue
		}
		result = append(result, n)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}
	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	if days, found := strings.CutSuffix(s, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if weeks, found := strings.CutSuffix(s, "w"); found {
		n, err := strconv.Atoi(weeks)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
//
// Fields: title, body, type, surface, duration (seconds), created and
// displayed (relative ages such as 1h or 2d).
//
// Examples:
//   - "type=alert" - alert toasts only
//   - "title~build" - title contains "build"
//   - "duration>=10" - shown for at least ten seconds
//   - "created<1h" - created within the last hour
//   - "body~=(?i)failed" - body matches a regex
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}
		cond := FilterCondition{
			Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
			Operator: op,
			Value:    strings.TrimSpace(s[idx+len(op):]),
		}
		if err := cond.init(); err != nil {
			return FilterCondition{}, err
		}
		return cond, nil
	}
	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

func (c *FilterCondition) init() error {
	switch c.Field {
	case "title", "summary":
		c.Field = "title"
	case "body", "message":
		c.Field = "body"
	case "type", "notification_type":
		c.Field = "type"
	case "surface", "surface_id":
		c.Field = "surface"
	case "duration":
		v, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("invalid duration value: %s", c.Value)
		}
		c.intVal = v
	case "created", "created_at", "displayed", "timestamp":
		if c.Field == "created_at" {
			c.Field = "created"
		} else if c.Field == "timestamp" {
			c.Field = "displayed"
		}
		// With = and != displayed is a yes/no test; ordering operators
		// compare ages, so "<1h" reads as "younger than an hour".
		if c.Field == "displayed" && (c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual) {
			c.boolVal = parseBool(c.Value)
			return nil
		}
		d, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid age value: %w", err)
		}
		c.timeVal = now().Add(-d)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y", "t":
		return true
	default:
		return false
	}
}

// Match tests if a notification matches every condition.
func (f *FilterExpr) Match(n model.Notification) bool {
	for i := range f.Conditions {
		if !f.Conditions[i].Match(n) {
			return false
		}
	}
	return true
}

// Match tests if a notification matches this single condition.
func (c *FilterCondition) Match(n model.Notification) bool {
	switch c.Field {
	case "title":
		return c.matchString(n.Title)
	case "body":
		return c.matchString(n.Body)
	case "type":
		return c.matchString(n.Type)
	case "surface":
		return c.matchString(n.SurfaceID)
	case "duration":
		return c.matchInt(n.Duration)
	case "created":
		return c.matchAge(n.CreatedAtTime())
	case "displayed":
		if c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual {
			return c.matchBool(n.Displayed())
		}
		return n.Displayed() && c.matchAge(n.TimestampTime())
	default:
		return false
	}
}

func (c *FilterCondition) matchString(v string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.Value
	case FilterOpNotEqual:
		return v != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(v)
	default:
		return false
	}
}

func (c *FilterCondition) matchInt(v int) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.intVal
	case FilterOpNotEqual:
		return v != c.intVal
	case FilterOpGreater:
		return v > c.intVal
	case FilterOpLess:
		return v < c.intVal
	case FilterOpGreaterEq:
		return v >= c.intVal
	case FilterOpLessEq:
		return v <= c.intVal
	default:
		return false
	}
}

func (c *FilterCondition) matchBool(v bool) bool {
	if c.Operator == FilterOpNotEqual {
		return v != c.boolVal
	}
	return v == c.boolVal
}

// matchAge compares ages: "<" means younger than the value, so the time is after the cutoff.
func (c *FilterCondition) matchAge(t time.Time) bool {
	switch c.Operator {
	case FilterOpLess:
		return t.After(c.timeVal)
	case FilterOpLessEq:
		return !t.Before(c.timeVal)
	case FilterOpGreater:
		return t.Before(c.timeVal)
	case FilterOpGreaterEq:
		return !t.After(c.timeVal)
	default:
		return false
	}
}

// FilterWithExpr filters notifications using a filter expression.
func FilterWithExpr(notifications []model.Notification, expr *FilterExpr) []model.Notification {
	if expr == nil || len(expr.Conditions) == 0 {
		return notifications
	}
	result := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if expr.Match(n) {
			result = append(result, n)
		}
	}
	return result
}
