// Package main provides the entry point for the Box Annotator application.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"box-annotator/internal/app"
	"box-annotator/internal/backend"
	"box-annotator/internal/config"
	"box-annotator/internal/imaging"
	"box-annotator/ui/mainwindow"
	"box-annotator/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const (
	appTitle   = "Box Annotator"
	appVersion = "0.1.0"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting", "app", appTitle, "version", appVersion, "server", cfg.ServerURL)

	fyneApp := fyneapp.New()
	appPrefs := prefs.Load()
	cache := imaging.NewCache()

	client := backend.NewClient(cfg.ServerURL, cfg.HTTPTimeout(), logger, cfg.PrimaryModel)
	// Backend results apply inline: State locks its own data and widget
	// refreshes go through Fyne's internally synchronized canvas path.
	state := app.NewState(logger, client, nil)

	win := mainwindow.New(fyneApp, state, cfg, appPrefs, cache, logger)
	win.SetCloseIntercept(func() {
		if err := win.SavePreferences(); err != nil {
			logger.Warn("preferences save failed", "error", err)
		}
		win.Close()
	})

	state.LoadImages(context.Background())

	win.ShowAndRun()
}

// newLogger builds the process-wide structured logger. Output is JSON so the
// annotator's logs line up with the backend service's.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
