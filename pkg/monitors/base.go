// Package monitors provides common functionality for monitor
// implementations. BaseMonitor carries the lifecycle plumbing that every
// tailing monitor needs: the event channel, start/stop state, panic
// recovery around the run loop, and the default event template merged
// into every event.
package monitors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// RunFunc is the long-running body of a monitor. It blocks until the
// context is cancelled, emitting events through the BaseMonitor, and
// returns nil on clean shutdown or the fatal error that ended ingestion.
type RunFunc func(ctx context.Context) error

// Logger provides optional logging for monitors. When no logger is set,
// logging calls are silently ignored.
type Logger interface {
	// Infof logs an informational message with formatting.
	Infof(format string, args ...interface{})

	// Warnf logs a warning message with formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message with formatting.
	Errorf(format string, args ...interface{})
}

// BaseMonitor provides common functionality for monitor implementations.
// Concrete monitors embed it, set a run function, and call Emit from the
// run loop. Events are delivered strictly in emission order; Emit blocks
// rather than dropping so a slow sink never reorders or loses lines
// within a poll cycle.
type BaseMonitor struct {
	// Configuration (immutable after creation)
	name     string
	template *types.EventTemplate

	// Runtime state
	eventChan chan *types.Event
	stopChan  chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	stopped   bool
	lastErr   error

	runFunc RunFunc
	logger  Logger
}

// NewBaseMonitor creates a BaseMonitor with the given name and event
// template. The monitor is created stopped and must be started with
// Start().
func NewBaseMonitor(name string, template *types.EventTemplate) (*BaseMonitor, error) {
	if name == "" {
		return nil, fmt.Errorf("monitor name cannot be empty")
	}
	if template == nil {
		return nil, fmt.Errorf("event template cannot be nil")
	}

	return &BaseMonitor{
		name:      name,
		template:  template,
		eventChan: make(chan *types.Event, 16),
		stopChan:  make(chan struct{}),
	}, nil
}

// SetRunFunc sets the monitor's run loop. Must be called before Start().
func (b *BaseMonitor) SetRunFunc(runFunc RunFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("cannot change run function while monitor %q is running", b.name)
	}
	b.runFunc = runFunc
	return nil
}

// SetLogger sets an optional logger. Must be called before Start().
func (b *BaseMonitor) SetLogger(logger Logger) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("cannot change logger while monitor %q is running", b.name)
	}
	b.logger = logger
	return nil
}

// GetName returns the monitor's name.
func (b *BaseMonitor) GetName() string {
	return b.name
}

// Template returns the monitor's event template.
func (b *BaseMonitor) Template() *types.EventTemplate {
	return b.template
}

// IsRunning reports whether the monitor is currently running.
func (b *BaseMonitor) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Err returns the fatal error that terminated the run loop, if any.
func (b *BaseMonitor) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Start launches the run loop and returns the event channel. The channel
// is closed when the monitor stops, either via Stop() or because the run
// loop returned a fatal error.
func (b *BaseMonitor) Start() (<-chan *types.Event, error) {
	b.mu.Lock()

	if b.running {
		b.mu.Unlock()
		return nil, fmt.Errorf("monitor %q is already running", b.name)
	}
	if b.runFunc == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("run function must be set before starting monitor %q", b.name)
	}

	// Recreate channels when restarting a previously stopped monitor.
	if b.stopped {
		b.eventChan = make(chan *types.Event, 16)
		b.stopChan = make(chan struct{})
		b.stopped = false
	}
	b.lastErr = nil
	b.running = true

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	eventChan := b.eventChan
	stopChan := b.stopChan

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(eventChan)
		defer cancel()

		// Cancel the run context when Stop closes stopChan.
		go func() {
			<-stopChan
			cancel()
		}()

		err := b.invokeRun(ctx)
		if err != nil && ctx.Err() == nil {
			b.logErrorf("Monitor %q terminated: %v", b.name, err)
			b.mu.Lock()
			b.lastErr = err
			b.mu.Unlock()
		}

		// Mark the monitor stopping before the deferred close of the
		// event channel so a late Emit is rejected instead of sending
		// on a closed channel.
		b.closeStopChan(stopChan)
	}()

	b.mu.Unlock()

	b.logInfof("Starting monitor %q", b.name)
	return eventChan, nil
}

// invokeRun calls the run function with panic recovery so a bug in a
// monitor cannot take down the process.
func (b *BaseMonitor) invokeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor run loop panicked: %v", r)
		}
	}()
	return b.runFunc(ctx)
}

// Emit sends an event to the monitor's channel, blocking until the event
// is accepted or the monitor is stopping. Returns false if the monitor is
// stopping and the event was not delivered.
func (b *BaseMonitor) Emit(event *types.Event) bool {
	if event == nil {
		return false
	}

	b.mu.RLock()
	eventChan := b.eventChan
	stopChan := b.stopChan
	b.mu.RUnlock()

	// Check for stop on its own first. Once stopChan is closed a
	// two-case select with free buffer space has both cases ready and
	// picks at random, letting events slip through mid-shutdown.
	select {
	case <-stopChan:
		return false
	default:
	}

	select {
	case eventChan <- event:
		return true
	case <-stopChan:
		return false
	}
}

// Stop gracefully stops the monitor, blocking until the run loop has
// exited or a 30 second timeout elapses. Safe to call multiple times.
func (b *BaseMonitor) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	stopChan := b.stopChan
	b.mu.Unlock()

	b.logInfof("Stopping monitor %q", b.name)

	// Signal the run loop. The channel may already be closed when the
	// run loop died on its own.
	b.closeStopChan(stopChan)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timeout := time.NewTimer(30 * time.Second)
	defer timeout.Stop()

	select {
	case <-done:
		b.logInfof("Monitor %q stopped", b.name)
	case <-timeout.C:
		b.logWarnf("Monitor %q stop timeout after 30 seconds - forcing shutdown", b.name)
	}

	b.mu.Lock()
	b.running = false
	b.stopped = true
	b.mu.Unlock()
}

// NewEventTemplateFromConfig builds the default event template for a
// monitor from its configuration. Sensor logs that do not record the IP
// protocol get a protocol default injected here; setting the
// noLogProtocol option suppresses it.
func NewEventTemplateFromConfig(config types.MonitorConfig) (*types.EventTemplate, error) {
	defaults := make(map[string]string)

	noProto, _ := config.BoolOption("noLogProtocol")
	if !noProto {
		protocol := types.DefaultProtocol
		if p, ok := config.StringOption("protocol"); ok && p != "" {
			protocol = p
		}
		defaults["protocol"] = protocol
	}

	return types.NewEventTemplate(config.Name, defaults), nil
}

// closeStopChan closes the stop channel exactly once. Both Stop and the
// run goroutine signal shutdown, so the close is serialized under the
// monitor's mutex.
func (b *BaseMonitor) closeStopChan(stopChan chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-stopChan:
	default:
		close(stopChan)
	}
}

// Helper logging methods that tolerate a nil logger.

func (b *BaseMonitor) logInfof(format string, args ...interface{}) {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()
	if logger != nil {
		logger.Infof(format, args...)
	}
}

func (b *BaseMonitor) logWarnf(format string, args ...interface{}) {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()
	if logger != nil {
		logger.Warnf(format, args...)
	}
}

func (b *BaseMonitor) logErrorf(format string, args ...interface{}) {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()
	if logger != nil {
		logger.Errorf(format, args...)
	}
}
