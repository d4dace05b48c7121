// Package model defines the core data structures for toastd.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Defaults applied by producers that leave fields unset.
const (
	DefaultType     = "new_message"
	DefaultDuration = 5 // seconds
)

// Notification is one pending, displayed or retired toast.
// It is also the payload pushed to a surface for rendering.
type Notification struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Body     string `json:"message" yaml:"message"`
	Duration int    `json:"duration" yaml:"duration"` // Seconds; 0 means the toast never auto-dismisses
	Type     string `json:"notification_type" yaml:"notification_type"`

	// SurfaceID is the surface currently (or last) assigned to display this notification.
	SurfaceID string `json:"surface_id,omitempty" yaml:"surface_id,omitempty"`

	// Timestamp is when the notification was first delivered to a surface (epoch seconds).
	// Zero means it has never been displayed; it is set at most once.
	Timestamp int64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// CreatedAt is when the producer created the notification (epoch seconds).
	CreatedAt int64 `json:"created_at" yaml:"created_at"`
}

// Validation errors.
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrInvalidID        = errors.New("id is not a valid ULID")
	ErrInvalidDuration  = errors.New("duration cannot be negative")
	ErrInvalidTimestamp = errors.New("timestamp cannot be negative")
)

// NewID generates a notification id.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// NewNotification creates a Notification with a generated ULID and default type and duration.
func NewNotification(title, body string) (*Notification, error) {
	now := time.Now()
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	return &Notification{
		ID:        id,
		Title:     title,
		Body:      body,
		Duration:  DefaultDuration,
		Type:      DefaultType,
		CreatedAt: now.Unix(),
	}, nil
}

// Validate checks that the notification is well formed.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if _, err := ulid.ParseStrict(n.ID); err != nil {
		return ErrInvalidID
	}
	if n.Duration < 0 {
		return ErrInvalidDuration
	}
	if n.Timestamp < 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Displayed reports whether the notification has been delivered to a surface.
func (n *Notification) Displayed() bool {
	return n.Timestamp > 0
}

// Assigned reports whether the notification is bound to a surface.
func (n *Notification) Assigned() bool {
	return n.SurfaceID != ""
}

// MarkDisplayed stamps the first-displayed time. It returns false and leaves
// the timestamp untouched when the notification was already displayed.
func (n *Notification) MarkDisplayed(at time.Time) bool {
	if n.Timestamp > 0 {
		return false
	}
	n.Timestamp = at.Unix()
	return true
}

// DisplayDuration returns the requested display time. Zero means no auto-dismiss.
func (n *Notification) DisplayDuration() time.Duration {
	return time.Duration(n.Duration) * time.Second
}

// TimestampTime returns the first-displayed time, or the zero time if never displayed.
func (n *Notification) TimestampTime() time.Time {
	if n.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(n.Timestamp, 0)
}

// CreatedAtTime returns the creation time as a time.Time.
func (n *Notification) CreatedAtTime() time.Time {
	return time.Unix(n.CreatedAt, 0)
}

// BodyTruncated returns the body on one line, cut to maxLen runes with "..."
// appended when it is longer. A maxLen of zero or less means no limit.
func (n *Notification) BodyTruncated(maxLen int) string {
	// Collapse whitespace and newlines to single spaces
	body := strings.Join(strings.Fields(n.Body), " ")

	r := []rune(body)
	if maxLen <= 0 || len(r) <= maxLen {
		return body
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// DurationSeconds converts a requested display time to whole seconds, rounding up.
func DurationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
