// Package reload provides configuration hot reload: a file watcher with
// debouncing, pre-flight validation of the new configuration, a config
// diff, and a coordinator that applies accepted changes through a
// callback.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
)

// DefaultDebounce is the quiet period after the last write before a
// change event is emitted. Editors and atomic-write tools produce
// bursts of filesystem events for one logical save.
const DefaultDebounce = 500 * time.Millisecond

// ConfigWatcher watches a configuration file and emits one change event
// per debounced burst of writes.
type ConfigWatcher struct {
	configPath string
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	changeCh   chan struct{}
	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	log        *logrus.Entry
}

// NewConfigWatcher creates a watcher for the given configuration file.
// A non-positive debounce selects DefaultDebounce.
func NewConfigWatcher(configPath string, debounce time.Duration) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &ConfigWatcher{
		configPath: configPath,
		debounce:   debounce,
		watcher:    watcher,
		changeCh:   make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		log: logger.WithFields(logrus.Fields{
			"component": "config-watcher",
			"path":      configPath,
		}),
	}, nil
}

// Start begins watching and returns the change channel. The parent
// directory is watched rather than the file itself so atomic writes
// (write to temp file, rename over the original) are seen.
func (cw *ConfigWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return nil, fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	cw.running = true
	go cw.processEvents(ctx)

	cw.log.Debugf("watching %s for configuration changes", dir)
	return cw.changeCh, nil
}

// Stop stops the watcher and closes the change channel.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return
	}
	close(cw.stopCh)
	cw.watcher.Close()
	close(cw.changeCh)
	cw.running = false
}

// processEvents collapses bursts of filesystem events into single change
// notifications.
func (cw *ConfigWatcher) processEvents(ctx context.Context) {
	var debounceTimer *time.Timer
	var timerCh <-chan time.Time

	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-cw.stopCh:
			stopTimer()
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.isConfigFileEvent(event) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				stopTimer()
				debounceTimer = time.NewTimer(cw.debounce)
				timerCh = debounceTimer.C
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.WithError(err).Warnf("file watcher error")

		case <-timerCh:
			select {
			case cw.changeCh <- struct{}{}:
			default:
				// A change is already pending; the pending reload will
				// pick up the latest file content anyway.
			}
			timerCh = nil
		}
	}
}

// isConfigFileEvent reports whether a filesystem event concerns the
// watched configuration file.
func (cw *ConfigWatcher) isConfigFileEvent(event fsnotify.Event) bool {
	return filepath.Clean(event.Name) == filepath.Clean(cw.configPath)
}
