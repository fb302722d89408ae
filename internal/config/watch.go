package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// Watcher hot-reloads one corpus's corpus-config.toml, notifying
// registered callbacks after every change (spec §4.7: "a running corpus
// storage can pick up view config / resolver changes without a restart").
//
// Adapted from internal/config/watcher.go's ConfigWatcher: same
// fsnotify.Watcher + zap.Logger + callback-list shape, retargeted from a
// whole YAML config directory to one TOML file.
type Watcher struct {
	mu        sync.RWMutex
	path      string
	current   *CorpusConfig
	callbacks []func(*CorpusConfig)
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher loads path once and starts watching it for further changes.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	cfg, err := LoadCorpusConfig(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, goerrors.NewStorageIO("creating corpus-config watcher", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, goerrors.NewStorageIO("watching corpus-config directory", err)
	}

	w := &Watcher{
		path:      path,
		current:   cfg,
		logger:    logger,
		fsWatcher: fsWatcher,
		stopCh:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *CorpusConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked (with the new config) after every
// successful reload.
func (w *Watcher) OnChange(cb func(*CorpusConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("corpus-config watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadCorpusConfig(w.path)
	if err != nil {
		w.logger.Warn("failed to reload corpus-config.toml", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*CorpusConfig){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("reloaded corpus-config.toml", zap.String("path", w.path))
	for _, cb := range callbacks {
		cb(cfg)
	}
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	close(w.stopCh)
	return w.fsWatcher.Close()
}
