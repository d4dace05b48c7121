package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/toastd/internal/model"
)

// LookupByID finds a notification by id. A unique id prefix of at least four
// characters also matches. Returns nil if not found or ambiguous.
func LookupByID(notifications []model.Notification, id string) *model.Notification {
	var match *model.Notification
	for i := range notifications {
		if notifications[i].ID == id {
			return &notifications[i]
		}
		if len(id) >= 4 && strings.HasPrefix(notifications[i].ID, id) {
			if match != nil {
				return nil
			}
			match = &notifications[i]
		}
	}
	return match
}

// LookupByIndex finds a notification by its 1-based index.
func LookupByIndex(notifications []model.Notification, index int) *model.Notification {
	idx := index - 1
	if idx < 0 || idx >= len(notifications) {
		return nil
	}
	return &notifications[idx]
}

// Search finds notifications whose title or body contains term, ignoring case.
func Search(notifications []model.Notification, term string) []model.Notification {
	if term == "" {
		return notifications
	}

	term = strings.ToLower(term)
	var result []model.Notification
	for _, n := range notifications {
		if strings.Contains(strings.ToLower(n.Title), term) ||
			strings.Contains(strings.ToLower(n.Body), term) {
			result = append(result, n)
		}
	}
	return result
}

// UniqueTypes returns the sorted notification types present in the list.
func UniqueTypes(notifications []model.Notification) []string {
	seen := make(map[string]bool)
	var types []string
	for _, n := range notifications {
		if n.Type != "" && !seen[n.Type] {
			seen[n.Type] = true
			types = append(types, n.Type)
		}
	}
	sort.Strings(types)
	return types
}
