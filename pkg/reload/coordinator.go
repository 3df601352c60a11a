package reload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/types"
	"github.com/supporttools/probe-doctor/pkg/util"
)

// ApplyFunc applies an accepted configuration change. It receives the
// validated new configuration and the diff against the running one. If
// it returns an error the running configuration stays in effect.
type ApplyFunc func(ctx context.Context, newConfig *types.ProbeDoctorConfig, diff *ConfigDiff) error

// Coordinator orchestrates hot reloads: watch, load, validate, diff,
// apply. A reload that fails at any step leaves the running
// configuration untouched; the probe never ingests under a half-applied
// config.
type Coordinator struct {
	configPath string
	current    *types.ProbeDoctorConfig
	apply      ApplyFunc
	validator  *ConfigValidator
	watcher    *ConfigWatcher

	mu         sync.Mutex
	inProgress bool
	log        *logrus.Entry
}

// NewCoordinator creates a reload coordinator for the given config file.
func NewCoordinator(configPath string, initial *types.ProbeDoctorConfig, apply ApplyFunc) (*Coordinator, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if initial == nil {
		return nil, fmt.Errorf("initial config cannot be nil")
	}
	if apply == nil {
		return nil, fmt.Errorf("apply callback cannot be nil")
	}

	return &Coordinator{
		configPath: configPath,
		current:    initial,
		apply:      apply,
		validator:  NewConfigValidator(),
		log:        logger.WithField("component", "reload"),
	}, nil
}

// Run watches the config file and triggers a reload on every debounced
// change until the context is cancelled. Failed reloads are logged and
// do not stop the watch loop.
func (c *Coordinator) Run(ctx context.Context) error {
	watcher, err := NewConfigWatcher(c.configPath, DefaultDebounce)
	if err != nil {
		return err
	}
	c.watcher = watcher

	changes, err := watcher.Start(ctx)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	c.log.Infof("configuration hot reload enabled for %s", c.configPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := c.TriggerReload(ctx); err != nil {
				c.log.WithError(err).Warnf("configuration reload failed, keeping current configuration")
			}
		}
	}
}

// TriggerReload attempts one reload from disk. Safe to call
// concurrently; overlapping calls are rejected rather than queued since
// the later reload would read the same file.
func (c *Coordinator) TriggerReload(ctx context.Context) error {
	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		return fmt.Errorf("reload already in progress")
	}
	c.inProgress = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inProgress = false
		c.mu.Unlock()
	}()

	return c.performReload(ctx)
}

func (c *Coordinator) performReload(ctx context.Context) error {
	start := time.Now()
	c.log.Info("configuration reload initiated")

	newConfig, err := util.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if result := c.validator.Validate(newConfig); !result.Valid {
		return fmt.Errorf("%s", FormatValidationErrors(result.Errors))
	}

	c.mu.Lock()
	diff := ComputeConfigDiff(c.current, newConfig)
	c.mu.Unlock()

	if !diff.HasChanges() {
		c.log.Info("configuration reload completed, no changes")
		return nil
	}

	if err := c.apply(ctx, newConfig, diff); err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	c.mu.Lock()
	c.current = newConfig
	c.mu.Unlock()

	c.log.Infof("configuration reload completed in %v: %s",
		time.Since(start).Round(time.Millisecond), diff.Summary())
	return nil
}

// CurrentConfig returns the configuration currently in effect.
func (c *Coordinator) CurrentConfig() *types.ProbeDoctorConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
