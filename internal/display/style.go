package display

import (
	"log/slog"
	"os"

	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// defaultCSS styles toasts when no user stylesheet is configured.
const defaultCSS = `
.toast {
	padding: 4px;
}
.toast-title {
	font-weight: bold;
}
.toast-body {
	opacity: 0.85;
}
.toast-close {
	min-width: 16px;
	min-height: 16px;
	padding: 0;
}
.type-error .toast-title,
.type-alert .toast-title {
	color: @error_color;
}
`

// ApplyStyles loads the built-in toast CSS and, when path names a readable
// file, the user stylesheet on top of it. Must be called on the main loop
// after the application has started.
func ApplyStyles(path string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	display := gdk.DisplayGetDefault()
	if display == nil {
		logger.Warn("no display available, cannot apply styles")
		return
	}

	base := gtk.NewCSSProvider()
	base.LoadFromString(defaultCSS)
	gtk.StyleContextAddProviderForDisplay(display, base, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)

	if path == "" {
		return
	}
	css, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read stylesheet, using built-in style", "path", path, "error", err)
		return
	}
	user := gtk.NewCSSProvider()
	user.LoadFromString(string(css))
	gtk.StyleContextAddProviderForDisplay(display, user, gtk.STYLE_PROVIDER_PRIORITY_USER)
	logger.Info("loaded stylesheet", "path", path)
}
