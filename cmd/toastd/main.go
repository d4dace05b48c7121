// Package main is the entry point for the toastd notification daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/toastd/internal/audio"
	"github.com/jmylchreest/toastd/internal/config"
	"github.com/jmylchreest/toastd/internal/daemon"
	"github.com/jmylchreest/toastd/internal/dbus"
	"github.com/jmylchreest/toastd/internal/display"
	"github.com/jmylchreest/toastd/internal/engine"
)

const (
	appID   = "io.github.jmylchreest.toastd"
	appName = "toastd"

	shutdownTimeout = 5 * time.Second
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var opts struct {
	configPath string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "toastd",
	Short: "Toast notification daemon for Wayland desktops",
	Long: `toastd shows desktop notifications as stacked toast windows.

It owns org.freedesktop.Notifications on the session bus and exposes a
control interface (io.github.jmylchreest.toastd.Control) used by toastctl.
Configuration is read from ~/.config/toastd/toastd.toml and reloaded when
the file changes.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(setupLogger())
	},
}

func init() {
	rootCmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: ~/.config/toastd/toastd.toml)")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// runDaemon runs the GTK application until it quits. Engine operations block
// on the GTK main loop, so they are only ever called from other goroutines:
// D-Bus handlers, surface callbacks, timers and the config watcher.
func runDaemon(logger *slog.Logger) error {
	logger.Info("starting toastd", "version", version)

	configPath := opts.configPath
	if configPath == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		configPath = p
	}

	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app := adw.NewApplication(appID, 0)

	var (
		dbusServer    *dbus.NotificationServer
		audioManager  *audio.Manager
		configWatcher *daemon.ConfigWatcher
		service       atomic.Pointer[daemon.Service]
		running       atomic.Bool
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()

		// Close the toasts while the main loop still runs them.
		if svc := service.Load(); svc != nil {
			if err := svc.Shutdown(shutdownTimeout); err != nil {
				logger.Warn("error closing surfaces", "error", err)
			}
		}
		glib.IdleAdd(func() {
			app.Quit()
		})
	}()

	app.ConnectActivate(func() {
		if running.Load() {
			logger.Warn("application already running")
			return
		}
		running.Store(true)

		display.ApplyStyles(cfg.StylesheetPath(), logger)

		monitors := display.NewMonitors(cfg.Display.Monitor, logger)
		surfaces := display.NewSurfaces(&app.Application, monitors, logger)

		manager, err := engine.NewManager(engineCfg, surfaces, monitors, logger)
		if err != nil {
			logger.Error("failed to create engine", "error", err)
			app.Quit()
			return
		}

		audioManager = audio.NewManager(cfg, logger)
		if err := audioManager.Start(ctx); err != nil {
			logger.Warn("failed to start audio manager", "error", err)
		}

		dbusServer = dbus.NewNotificationServer(logger)
		dbusServer.SetServerInfo(dbus.ServerInfo{
			Name:        appName,
			Vendor:      "toastd",
			Version:     version,
			SpecVersion: "1.2",
		})

		notifier := daemon.NewInternalNotifier(logger)
		notifier.SetNotifyHandler(dbusServer.NotifyInternal)

		svc := daemon.NewService(manager, cfg, dbusServer, audioManager, notifier, logger)
		service.Store(svc)

		surfaces.SetCallbacks(display.Callbacks{
			Ready:     svc.SurfaceReady,
			Dismissed: svc.SurfaceDismissed,
			Destroyed: svc.SurfaceDestroyed,
		})
		dbusServer.SetNotifyHandler(svc.HandleNotify)
		dbusServer.SetCloseHandler(svc.HandleClose)
		dbusServer.SetControl(dbus.NewControl(manager, logger))

		if err := dbusServer.Start(); err != nil {
			logger.Error("failed to start D-Bus server", "error", err)
			app.Quit()
			return
		}

		if cfg.Behavior.HotReload {
			configWatcher = daemon.NewConfigWatcher(configPath, logger)
			// Runs on the watcher goroutine, never the main loop.
			configWatcher.SetReloadCallback(func(old, updated *config.DaemonConfig) {
				audioManager.UpdateConfig(updated)
				svc.ApplyConfig(old, updated)
			})
			configWatcher.SetErrorCallback(svc.ConfigError)
			if err := configWatcher.Start(ctx, cfg); err != nil {
				logger.Warn("failed to start config watcher", "error", err)
			}
		}

		logger.Info("toastd ready", "dbus_interface", dbus.DBusInterface, "control_interface", dbus.ControlInterface)

		// GTK apps quit when all windows are closed; keep a hidden one around.
		keepAliveWindow := gtk.NewWindow()
		keepAliveWindow.SetApplication(&app.Application)
		keepAliveWindow.SetDefaultSize(1, 1)
		keepAliveWindow.SetDecorated(false)
		keepAliveWindow.SetVisible(false)
	})

	app.ConnectShutdown(func() {
		logger.Info("application shutting down")
		if configWatcher != nil {
			_ = configWatcher.Stop()
		}
		if audioManager != nil {
			audioManager.Stop()
		}
		if dbusServer != nil {
			_ = dbusServer.Stop()
		}
		running.Store(false)
	})

	if status := app.Run(os.Args[:1]); status != 0 {
		return fmt.Errorf("application exited with status %d", status)
	}

	logger.Info("toastd stopped")
	return nil
}
