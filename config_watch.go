// config_watch.go: live min-level reload from a watched config file
//
// Grounded on the teacher's config_loader.go DynamicConfigWatcher, which
// wires github.com/agilira/argus to watch a file and re-parse it on
// change. TTLog narrows the watched shape to a single field
// ({"min_level": "..."}) since that is the only setting spec.md allows to
// change at runtime outside the producer API itself.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// levelFileShape is the JSON shape WatchConfigFile understands: a single
// top-level "min_level" key holding any string ParseLevel accepts.
type levelFileShape struct {
	MinLevel string `json:"min_level"`
}

// ConfigWatcher hot-reloads a Handle's min-level filter from a watched
// JSON file, the same pattern the teacher's DynamicConfigWatcher uses for
// its own AtomicLevel.
type ConfigWatcher struct {
	configPath string
	handle     *Handle
	watcher    *argus.Watcher
	enabled    int32
	mu         sync.Mutex
}

func loadLevelFromFile(path string) (Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info, err
	}
	var shape levelFileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return Info, err
	}
	return ParseLevel(shape.MinLevel)
}

// WatchConfigFile creates (but does not start) a ConfigWatcher for path.
func (h *Handle) WatchConfigFile(path string) (*ConfigWatcher, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, wrapEngineError(err, ErrCodeInvalidConfig, "config file does not exist")
	}

	config := argus.Config{
		PollInterval:         500 * time.Millisecond,
		OptimizationStrategy: argus.OptimizationAuto,
		Audit: argus.AuditConfig{
			Enabled: false,
		},
		ErrorHandler: func(err error, errPath string) {
			handleError(wrapEngineError(err, ErrCodeInvalidConfig, fmt.Sprintf("config watcher error for %s", errPath)))
		},
	}

	watcher := argus.New(*config.WithDefaults())

	return &ConfigWatcher{
		configPath: path,
		handle:     h,
		watcher:    watcher,
	}, nil
}

// Start loads the file's current min_level, applies it, and begins
// watching for further changes.
func (w *ConfigWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if atomic.LoadInt32(&w.enabled) != 0 {
		return newEngineError(ErrCodeInvalidConfig, "config watcher already started")
	}

	if level, err := loadLevelFromFile(w.configPath); err == nil {
		w.handle.SetLevel(level)
	}

	if err := w.watcher.Watch(w.configPath, func(event argus.ChangeEvent) {
		level, err := loadLevelFromFile(event.Path)
		if err != nil {
			handleError(wrapEngineError(err, ErrCodeInvalidConfig, "failed to reload config from "+event.Path))
			return
		}
		w.handle.SetLevel(level)
	}); err != nil {
		return wrapEngineError(err, ErrCodeInvalidConfig, "failed to set up config file watcher")
	}

	if err := w.watcher.Start(); err != nil {
		return wrapEngineError(err, ErrCodeInvalidConfig, "failed to start config watcher")
	}
	atomic.StoreInt32(&w.enabled, 1)
	return nil
}

// Stop stops watching the configuration file.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if atomic.LoadInt32(&w.enabled) == 0 {
		return nil
	}
	if err := w.watcher.Stop(); err != nil {
		return wrapEngineError(err, ErrCodeInvalidConfig, "failed to stop config watcher")
	}
	atomic.StoreInt32(&w.enabled, 0)
	return nil
}

// IsRunning reports whether the watcher is currently active.
func (w *ConfigWatcher) IsRunning() bool {
	return atomic.LoadInt32(&w.enabled) != 0
}
