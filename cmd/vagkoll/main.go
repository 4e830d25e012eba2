package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bugsnag/bugsnag-go"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vagkoll/vagkoll"
)

func main() {
	bugsnag.Configure(bugsnag.Configuration{
		APIKey:          os.Getenv("BUGSNAG_API_KEY"),
		ProjectPackages: []string{"main", "github.com/vagkoll/vagkoll"},
	})

	configPtr := flag.String("config", "vagkoll.yml", "path to config file")
	verbosePtr := flag.Bool("verbose", false, "log debug stuff")
	showTablePtr := flag.Bool("show-table", false, "print the event table to the terminal")
	flag.Parse()

	if *verbosePtr {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := vagkoll.LoadConfig(*configPtr)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
	}
	if *showTablePtr {
		cfg.ShowTable = true
	}

	prefs, err := vagkoll.OpenPreferences(cfg.PrefsPath)
	if err != nil {
		logrus.WithError(err).Fatal("could not open preference store")
	}

	// Seed the baseline county selection on first run.
	if len(vagkoll.LoadMonitoredCounties(prefs)) == 0 && len(cfg.MonitoredCounties) > 0 {
		if err := vagkoll.SaveMonitoredCounties(prefs, cfg.MonitoredCounties); err != nil {
			logrus.WithError(err).Warn("could not seed monitored counties")
		}
	}

	loader := vagkoll.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout)
	engine := vagkoll.NewEngine(loader, cfg.PageSize)
	engine.Notifier = vagkoll.NewBellNotifier()
	engine.SoundEnabled = func() bool { return vagkoll.SoundEnabled(prefs) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Reset(ctx, cfg.Mode, vagkoll.LoadFilterState(prefs)); err != nil {
		// Retryable: the live stream and the next reset can still recover.
		logrus.WithError(err).Warn("initial snapshot load failed")
	}

	// Filter preference changes re-snapshot the engine.
	unwatch := prefs.Watch(func(key, value string) {
		switch key {
		case vagkoll.PrefMonitoredCounties, vagkoll.PrefQuickFilters:
			logrus.WithField("key", key).Info("🔄 filter preferences changed, resetting")
			if err := engine.Reset(ctx, cfg.Mode, vagkoll.LoadFilterState(prefs)); err != nil {
				logrus.WithError(err).Warn("reset after preference change failed")
			}
		}
	})
	defer unwatch()

	go watchConfig(ctx, *configPtr, prefs)
	go engine.RunSweeper(ctx)
	go runLive(ctx, engine, cfg)

	if cfg.ShowTable {
		go vagkoll.PrintViewForever(ctx, engine, cfg.RefreshRate)
	}

	server := &vagkoll.Server{Engine: engine, Loader: loader, Prefs: prefs}
	server.Start(cfg.ListenAddress)

	<-ctx.Done()
	logrus.Info("👋 shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
}

// runLive keeps a live stream attached. The engine itself never retries; the
// daemon owns the transport and reopens it after a disconnect. Re-delivered
// events on reconnect are harmless (upsert by externalId).
func runLive(ctx context.Context, engine *vagkoll.Engine, cfg *vagkoll.Config) {
	clientID := "vagkoll-" + uuid.NewString()[:8]
	for ctx.Err() == nil {
		stream, err := cfg.BuildStream(clientID)
		if err != nil {
			logrus.WithError(err).Error("bad stream config")
			return
		}
		if err := engine.RunLive(ctx, stream); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Info("reconnecting live stream in 5s")
		}
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
}

// watchConfig reloads the config file on change and pushes the monitored
// county baseline into the preference store, which in turn resets the engine.
func watchConfig(ctx context.Context, path string, prefs *vagkoll.SQLitePreferences) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logrus.WithError(err).Warn("config watcher unavailable")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		logrus.WithError(err).WithField("path", path).Debug("not watching config")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := vagkoll.LoadConfig(path)
			if err != nil {
				logrus.WithError(err).Warn("ignoring bad config change")
				continue
			}
			if len(cfg.MonitoredCounties) > 0 {
				if err := vagkoll.SaveMonitoredCounties(prefs, cfg.MonitoredCounties); err != nil {
					logrus.WithError(err).Warn("could not apply monitored counties")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Debug("config watcher error")
		}
	}
}
