package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// PlainFormatter writes human readable text, styled when color is on.
type PlainFormatter struct {
	opts   FormatterOptions
	now    func() time.Time
	title  lipgloss.Style
	label  lipgloss.Style
	dim    lipgloss.Style
	accent lipgloss.Style
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{
		opts:   opts,
		now:    time.Now,
		title:  lipgloss.NewStyle(),
		label:  lipgloss.NewStyle(),
		dim:    lipgloss.NewStyle(),
		accent: lipgloss.NewStyle(),
	}
	if opts.Color {
		f.title = f.title.Bold(true)
		f.label = f.label.Foreground(lipgloss.Color("8"))
		f.dim = f.dim.Foreground(lipgloss.Color("8"))
		f.accent = f.accent.Foreground(lipgloss.Color("12"))
	}
	return f
}

// Format writes one entry per notification.
func (f *PlainFormatter) Format(w io.Writer, notifications []model.Notification) error {
	if len(notifications) == 0 {
		_, err := fmt.Fprintln(w, f.dim.Render("no notifications"))
		return err
	}
	for i := range notifications {
		if err := f.formatNotification(w, i+1, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatNotification(w io.Writer, index int, n *model.Notification) error {
	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(f.dim.Render(fmt.Sprintf("[%d]", index)) + " ")
	}
	sb.WriteString(f.accent.Render("<"+n.Type+">") + " ")
	sb.WriteString(f.title.Render(n.Title))

	when := "queued " + f.formatTime(n.CreatedAt)
	if n.Displayed() {
		when = "shown " + f.formatTime(n.Timestamp)
	}
	sb.WriteString(" " + f.dim.Render("("+when+")"))
	sb.WriteString("\n")

	if n.Body != "" {
		sb.WriteString("    " + n.BodyTruncated(f.opts.BodyMaxLen) + "\n")
	}

	meta := []string{f.label.Render("id:") + " " + n.ID}
	if n.Assigned() {
		meta = append(meta, f.label.Render("surface:")+" "+n.SurfaceID)
	}
	if n.Duration > 0 {
		meta = append(meta, f.label.Render("duration:")+" "+(time.Duration(n.Duration)*time.Second).String())
	} else {
		meta = append(meta, f.label.Render("duration:")+" sticky")
	}
	sb.WriteString("    " + strings.Join(meta, "  ") + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatTime renders an epoch-seconds timestamp.
func (f *PlainFormatter) formatTime(ts int64) string {
	if ts == 0 {
		return "never"
	}
	t := time.Unix(ts, 0)
	if f.opts.TimeFormat == "" || f.opts.TimeFormat == TimeRelative {
		return humanize.RelTime(t, f.now(), "ago", "from now")
	}
	return t.Format(f.opts.TimeFormat)
}

// FormatPool writes the pool summary.
func (f *PlainFormatter) FormatPool(w io.Writer, status engine.PoolStatus) error {
	rows := [][2]string{
		{"surfaces", fmt.Sprintf("%d / %d", status.TotalCount, status.MaxWindows)},
		{"pooled", fmt.Sprintf("%d", status.PooledCount)},
		{"reserved", fmt.Sprintf("%d", status.ReservedCount)},
	}
	if len(status.PooledIDs) > 0 {
		rows = append(rows, [2]string{"pooled ids", strings.Join(status.PooledIDs, ", ")})
	}
	return f.table(w, "Surface pool", rows)
}

// FormatStatus writes the engine summary.
func (f *PlainFormatter) FormatStatus(w io.Writer, status engine.Status) error {
	return f.table(w, "toastd", [][2]string{
		{"queued", humanize.Comma(int64(status.Queued))},
		{"assigned", humanize.Comma(int64(status.Assigned))},
		{"displayed", humanize.Comma(int64(status.Displayed))},
		{"active surfaces", fmt.Sprintf("%d", status.Active)},
		{"idle surfaces", fmt.Sprintf("%d", status.Idle)},
		{"reserved surfaces", fmt.Sprintf("%d", status.Reserved)},
		{"history", humanize.Comma(int64(status.History))},
	})
}

func (f *PlainFormatter) table(w io.Writer, header string, rows [][2]string) error {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	var sb strings.Builder
	sb.WriteString(f.title.Render(header) + "\n")
	for _, r := range rows {
		sb.WriteString("  " + f.label.Render(fmt.Sprintf("%-*s", width, r[0])) + "  " + r[1] + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
