package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/toastd/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByCreated  SortField = "created"
	SortByType     SortField = "type"
	SortByTitle    SortField = "title"
	SortByDuration SortField = "duration"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns the engine's own order: oldest first.
func DefaultSortOptions() SortOptions {
	return SortOptions{Field: SortByCreated, Order: SortAsc}
}

// Sort sorts notifications in place. Ties keep their existing order.
func Sort(notifications []model.Notification, opts SortOptions) {
	if len(notifications) < 2 {
		return
	}

	key := func(a, b model.Notification) int {
		switch opts.Field {
		case SortByType:
			return strings.Compare(strings.ToLower(a.Type), strings.ToLower(b.Type))
		case SortByTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortByDuration:
			return a.Duration - b.Duration
		default:
			switch {
			case a.CreatedAt < b.CreatedAt:
				return -1
			case a.CreatedAt > b.CreatedAt:
				return 1
			}
			return 0
		}
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		c := key(notifications[i], notifications[j])
		if opts.Order == SortDesc {
			return c > 0
		}
		return c < 0
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "created", "created_at", "time", "c":
		return SortByCreated, nil
	case "type", "t":
		return SortByType, nil
	case "title", "summary":
		return SortByTitle, nil
	case "duration", "d":
		return SortByDuration, nil
	default:
		return "", fmt.Errorf("invalid sort field: %s (use created, type, title, or duration)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
