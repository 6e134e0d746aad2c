package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/observability"
)

// ChangeFunc receives each successfully reloaded configuration
type ChangeFunc func(cfg *Config)

// Watcher reloads a config file whenever it is written or replaced
type Watcher struct {
	path     string
	onChange ChangeFunc
	logger   logrus.FieldLogger

	mu      sync.RWMutex
	current *Config
}

// NewWatcher returns a watcher for path. current is the configuration already
// in effect.
func NewWatcher(path string, current *Config, onChange ChangeFunc, logger logrus.FieldLogger) *Watcher {
	if path == "" {
		path = DefaultPath
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   observability.OrDiscard(logger).WithField("config", path),
		current:  current,
	}
}

// Current returns the configuration last loaded
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload re-reads the file. On failure the current configuration is kept.
func (w *Watcher) Reload() (*Config, error) {
	cfg, err := Load(w.path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(cfg)
	}
	return cfg, nil
}

// Run watches the file's directory until ctx is done. Editors often replace
// files by rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, err := w.Reload(); err != nil {
				w.logger.WithError(err).Warn("config reload failed, keeping previous settings")
				continue
			}
			w.logger.Info("config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("config watcher error")
		}
	}
}
