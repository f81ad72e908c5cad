package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch watches the config file at path and calls onChange with the
// freshly loaded configuration after each write. It returns once the
// watcher is installed; watching stops when ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	logger.Info("watching config file for changes", slog.String("path", path))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Debug("config watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write != fsnotify.Write {
					continue
				}
				logger.Info("config file changed, reloading", slog.String("path", event.Name))
				cfg, err := Load(path)
				if err != nil {
					logger.Error("failed to reload config", slog.String("error", err.Error()))
					continue
				}
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}
