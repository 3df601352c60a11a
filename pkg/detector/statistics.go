// Package detector provides thread-safe statistics tracking for the
// probe detector.
package detector

import (
	"sync"
	"time"
)

// Statistics tracks operational counters for the probe detector. All
// methods are safe for concurrent use.
type Statistics struct {
	mu               sync.RWMutex
	monitorsStarted  int64 // Monitors successfully started
	monitorsFailed   int64 // Monitors that failed to start
	monitorsExited   int64 // Monitors that stopped on their own (fatal I/O)
	eventsReceived   int64 // Events received from monitors
	exportsSucceeded int64 // Successful export operations
	exportsFailed    int64 // Failed export operations
	startTime        time.Time
}

// NewStatistics creates a Statistics instance stamped with the current time.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// IncrementMonitorsStarted increments the monitors-started counter.
func (s *Statistics) IncrementMonitorsStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitorsStarted++
}

// IncrementMonitorsFailed increments the monitors-failed counter.
func (s *Statistics) IncrementMonitorsFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitorsFailed++
}

// IncrementMonitorsExited increments the monitors-exited counter.
func (s *Statistics) IncrementMonitorsExited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitorsExited++
}

// IncrementEventsReceived increments the events-received counter.
func (s *Statistics) IncrementEventsReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsReceived++
}

// IncrementExportsSucceeded increments the successful-exports counter.
func (s *Statistics) IncrementExportsSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exportsSucceeded++
}

// IncrementExportsFailed increments the failed-exports counter.
func (s *Statistics) IncrementExportsFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exportsFailed++
}

// GetMonitorsStarted returns the number of monitors successfully started.
func (s *Statistics) GetMonitorsStarted() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitorsStarted
}

// GetMonitorsFailed returns the number of monitors that failed to start.
func (s *Statistics) GetMonitorsFailed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitorsFailed
}

// GetMonitorsExited returns the number of monitors that stopped on their own.
func (s *Statistics) GetMonitorsExited() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitorsExited
}

// GetEventsReceived returns the number of events received from monitors.
func (s *Statistics) GetEventsReceived() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsReceived
}

// GetExportsSucceeded returns the number of successful export operations.
func (s *Statistics) GetExportsSucceeded() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportsSucceeded
}

// GetExportsFailed returns the number of failed export operations.
func (s *Statistics) GetExportsFailed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportsFailed
}

// Uptime returns how long the detector has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Snapshot is an immutable copy of the counters for reporting.
type Snapshot struct {
	MonitorsStarted  int64         `json:"monitorsStarted"`
	MonitorsFailed   int64         `json:"monitorsFailed"`
	MonitorsExited   int64         `json:"monitorsExited"`
	EventsReceived   int64         `json:"eventsReceived"`
	ExportsSucceeded int64         `json:"exportsSucceeded"`
	ExportsFailed    int64         `json:"exportsFailed"`
	Uptime           time.Duration `json:"uptime"`
}

// Copy returns a point-in-time snapshot of all counters.
func (s *Statistics) Copy() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		MonitorsStarted:  s.monitorsStarted,
		MonitorsFailed:   s.monitorsFailed,
		MonitorsExited:   s.monitorsExited,
		EventsReceived:   s.eventsReceived,
		ExportsSucceeded: s.exportsSucceeded,
		ExportsFailed:    s.exportsFailed,
		Uptime:           time.Since(s.startTime),
	}
}
