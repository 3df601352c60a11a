// Package detector orchestrates monitors and exporters: it starts every
// configured monitor, fans their event channels into one stream, and
// dispatches each event to every exporter in arrival order.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/metrics"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// exporterName labels export metrics; exporters that implement it report
// a stable name, everything else is labeled "exporter".
type exporterName interface {
	Name() string
}

// monitorHandle pairs a running monitor with its forwarder state.
type monitorHandle struct {
	monitor types.Monitor
	name    string
}

// ProbeDetector manages monitors and exports their events.
type ProbeDetector struct {
	mu        sync.RWMutex
	config    *types.ProbeDoctorConfig
	monitors  []types.Monitor
	handles   []*monitorHandle
	exporters []types.Exporter
	eventChan chan *types.Event
	stats     *Statistics
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	log       *logrus.Entry
}

// NewProbeDetector creates a detector for the given monitors and
// exporters. The configuration must already be validated.
func NewProbeDetector(config *types.ProbeDoctorConfig, mons []types.Monitor, exporters []types.Exporter) (*ProbeDetector, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(mons) == 0 {
		return nil, fmt.Errorf("at least one monitor is required")
	}
	if len(exporters) == 0 {
		return nil, fmt.Errorf("at least one exporter is required")
	}

	return &ProbeDetector{
		config:    config,
		monitors:  mons,
		exporters: exporters,
		eventChan: make(chan *types.Event, 256),
		stats:     NewStatistics(),
		log:       logger.WithField("component", "detector"),
	}, nil
}

// GetStatistics returns a snapshot of the detector's counters.
func (pd *ProbeDetector) GetStatistics() Snapshot {
	return pd.stats.Copy()
}

// IsRunning reports whether the detector has been started and not stopped.
func (pd *ProbeDetector) IsRunning() bool {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	return pd.started
}

// Run starts the detector and blocks until the context is cancelled or
// every monitor has exited on its own (fatal ingestion failure). The
// second case returns an error: a probe with no live monitors is not
// silently idling.
func (pd *ProbeDetector) Run(ctx context.Context) error {
	allExited, err := pd.start(ctx)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		pd.stop()
		return nil
	case <-allExited:
		pd.stop()
		return fmt.Errorf("all monitors have exited, ingestion stopped")
	}
}

// start launches forwarders and the dispatch loop. The returned channel
// closes when every monitor's event channel has closed.
func (pd *ProbeDetector) start(ctx context.Context) (<-chan struct{}, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.started {
		return nil, fmt.Errorf("detector already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	pd.cancel = cancel

	pd.log.Info("starting probe detector")

	var forwarders sync.WaitGroup
	startedAny := false
	for _, monitor := range pd.monitors {
		handle := &monitorHandle{monitor: monitor, name: monitorName(monitor)}

		eventCh, err := monitor.Start()
		if err != nil {
			pd.log.WithError(err).Errorf("failed to start monitor %s", handle.name)
			pd.stats.IncrementMonitorsFailed()
			continue
		}

		pd.handles = append(pd.handles, handle)
		pd.stats.IncrementMonitorsStarted()
		startedAny = true
		pd.log.Infof("started monitor: %s", handle.name)

		forwarders.Add(1)
		pd.wg.Add(1)
		go func(h *monitorHandle, ch <-chan *types.Event) {
			defer pd.wg.Done()
			defer forwarders.Done()
			pd.forwardEvents(runCtx, h, ch)
		}(handle, eventCh)
	}

	if !startedAny {
		cancel()
		return nil, fmt.Errorf("no monitors could be started")
	}

	allExited := make(chan struct{})
	go func() {
		forwarders.Wait()
		close(allExited)
	}()

	pd.wg.Add(1)
	go func() {
		defer pd.wg.Done()
		pd.dispatchEvents(runCtx)
	}()

	pd.started = true
	return allExited, nil
}

// forwardEvents moves events from one monitor's channel into the shared
// stream. A closed channel means the monitor stopped; during shutdown
// that is expected, otherwise it is counted and reported.
func (pd *ProbeDetector) forwardEvents(ctx context.Context, h *monitorHandle, ch <-chan *types.Event) {
	for event := range ch {
		select {
		case pd.eventChan <- event:
		case <-ctx.Done():
			return
		}
	}

	if ctx.Err() == nil {
		pd.stats.IncrementMonitorsExited()
		pd.log.Errorf("monitor %s exited unexpectedly", h.name)
	}
}

// dispatchEvents delivers each event to every exporter, in arrival order.
func (pd *ProbeDetector) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-pd.eventChan:
			pd.stats.IncrementEventsReceived()
			pd.exportEvent(ctx, event)
		}
	}
}

// exportEvent sends one event to every exporter. Export failures are
// counted and logged but never block or reorder the stream.
func (pd *ProbeDetector) exportEvent(ctx context.Context, event *types.Event) {
	pd.mu.RLock()
	exporters := pd.exporters
	pd.mu.RUnlock()

	for _, exporter := range exporters {
		name := "exporter"
		if n, ok := exporter.(exporterName); ok {
			name = n.Name()
		}

		if err := exporter.ExportEvent(ctx, event); err != nil {
			pd.stats.IncrementExportsFailed()
			metrics.ExportsTotal.WithLabelValues(name, "error").Inc()
			pd.log.WithError(err).Warnf("export via %s failed for event from %s", name, event.Monitor)
			continue
		}
		pd.stats.IncrementExportsSucceeded()
		metrics.ExportsTotal.WithLabelValues(name, "success").Inc()
	}
}

// stop shuts down monitors and waits for in-flight goroutines.
func (pd *ProbeDetector) stop() {
	pd.mu.Lock()
	if !pd.started {
		pd.mu.Unlock()
		return
	}
	pd.started = false
	handles := pd.handles
	cancel := pd.cancel
	pd.mu.Unlock()

	pd.log.Info("stopping probe detector")

	for _, h := range handles {
		h.monitor.Stop()
	}
	cancel()

	done := make(chan struct{})
	go func() {
		pd.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		pd.log.Info("probe detector stopped")
	case <-time.After(30 * time.Second):
		pd.log.Warn("detector stop timeout after 30 seconds")
	}
}

// namer lets monitors report a stable name without widening the Monitor
// interface; BaseMonitor provides GetName.
type namer interface {
	GetName() string
}

func monitorName(m types.Monitor) string {
	if n, ok := m.(namer); ok {
		return n.GetName()
	}
	return "monitor"
}
