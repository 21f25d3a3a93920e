package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ============================================================================
// Config reload
// ============================================================================
// The config file's directory is watched (editors replace files by rename, so
// watching the file itself loses the inode). Bursts of writes are debounced,
// then the file is re-parsed and the tuning section re-seeds the live
// parameters. Other sections need a restart.
// ============================================================================

const configReloadDebounce = 500 * time.Millisecond

// reloadedConfig is what a reload is allowed to change at runtime.
type reloadedConfig struct {
	Params Params
	Level  LogLevel
}

// reloadConfig re-reads path and validates the runtime-adjustable sections.
func reloadConfig(path string) (reloadedConfig, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return reloadedConfig{}, err
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return reloadedConfig{}, err
	}
	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return reloadedConfig{}, fmt.Errorf("logging.level: %w", err)
	}
	return reloadedConfig{Params: cfg.Tuning, Level: level}, nil
}

// isConfigWrite reports whether ev may have changed the file at path.
func isConfigWrite(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// runConfigWatcher watches path and sends TuningReloaded after each settled
// change. levelVar may be nil when the log level was fixed on the command line.
func runConfigWatcher(ctx context.Context, path string, events chan<- Event, levelVar *slog.LevelVar, logger *slog.Logger) error {
	path, err := filepath.Abs(ExpandPath(path))
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watching config for changes", "path", path)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if !isConfigWrite(ev, path) {
				continue
			}
			logger.Debug("config file event", "op", ev.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(configReloadDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(configReloadDebounce)
			}
			debounceCh = debounce.C

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			logger.Warn("config watcher error", "error", err)

		case <-debounceCh:
			debounceCh = nil

			rc, err := reloadConfig(path)
			if err != nil {
				// Keep running with the current values.
				logger.Warn("config reload rejected", "path", path, "error", err)
				continue
			}
			if levelVar != nil {
				levelVar.Set(rc.Level.slogLevel())
			}

			select {
			case events <- TuningReloaded{Params: rc.Params}:
				logger.Info("config reloaded", "path", path)
			case <-ctx.Done():
				return nil
			}
		}
	}
}
