// Package monitors provides a pluggable monitor registry for Probe Doctor.
//
// The registry allows monitor implementations to self-register via func
// init() and provides thread-safe runtime discovery and instantiation.
// This keeps the wiring between configuration and concrete monitors loose:
// a monitor package only needs to be imported for its type to become
// available.
//
// Usage:
//
//	// Monitor registration (typically in the monitor package init())
//	func init() {
//		monitors.MustRegister(monitors.MonitorInfo{
//			Type:        "zeek-signature",
//			Factory:     NewSignatureMonitor,
//			Validator:   ValidateSignatureConfig,
//			Description: "Watches a Zeek signature log for healthcheck probe hits",
//		})
//	}
//
//	// Monitor creation at runtime
//	monitor, err := monitors.CreateMonitor(ctx, config)
package monitors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// MonitorFactory creates a new monitor instance from its configuration.
type MonitorFactory func(ctx context.Context, config types.MonitorConfig) (types.Monitor, error)

// MonitorValidator validates a monitor configuration before the monitor is
// built, enabling fail-fast validation at configuration parse time.
type MonitorValidator func(config types.MonitorConfig) error

// MonitorInfo contains metadata and factory functions for a monitor type.
type MonitorInfo struct {
	// Type is the unique identifier matching the "type" field in
	// MonitorConfig.
	Type string

	// Factory creates new instances of this monitor. It must be
	// thread-safe and stateless.
	Factory MonitorFactory

	// Validator validates configuration for this monitor. Optional.
	Validator MonitorValidator

	// Description is human-readable documentation for this monitor type.
	Description string
}

// Registry manages registration and creation of monitor instances.
// Registration happens at init time; creation at runtime. Both are
// thread-safe.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*MonitorInfo
}

// DefaultRegistry is the global monitor registry. Most callers use it
// through the package-level functions.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty monitor registry. Primarily useful for
// tests that need an isolated registry.
func NewRegistry() *Registry {
	return &Registry{
		monitors: make(map[string]*MonitorInfo),
	}
}

// ErrEmptyMonitorType is returned when registering a monitor with an empty type.
var ErrEmptyMonitorType = errors.New("monitor type cannot be empty")

// ErrNilFactory is returned when registering a monitor with a nil factory.
var ErrNilFactory = errors.New("monitor factory cannot be nil")

// ErrDuplicateMonitorType is returned when registering an already-registered type.
var ErrDuplicateMonitorType = errors.New("monitor type is already registered")

// Register adds a new monitor type to the registry.
func (r *Registry) Register(info MonitorInfo) error {
	if info.Type == "" {
		return ErrEmptyMonitorType
	}
	if info.Factory == nil {
		return fmt.Errorf("%w for type %q", ErrNilFactory, info.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.monitors[info.Type]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMonitorType, info.Type)
	}

	infoCopy := info
	r.monitors[info.Type] = &infoCopy
	return nil
}

// MustRegister adds a new monitor type and panics on error. Intended for
// init() functions where a registration failure is a programming error.
func (r *Registry) MustRegister(info MonitorInfo) {
	if err := r.Register(info); err != nil {
		panic(fmt.Sprintf("monitor registration failed: %v", err))
	}
}

// GetRegisteredTypes returns a sorted list of all registered monitor types.
func (r *Registry) GetRegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]string, 0, len(r.monitors))
	for monitorType := range r.monitors {
		list = append(list, monitorType)
	}
	sort.Strings(list)
	return list
}

// IsRegistered checks whether a monitor type is registered.
func (r *Registry) IsRegistered(monitorType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.monitors[monitorType]
	return exists
}

// GetMonitorInfo returns the registration info for a monitor type, or nil
// if the type is not registered. The returned value is a copy.
func (r *Registry) GetMonitorInfo(monitorType string) *MonitorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.monitors[monitorType]
	if !exists {
		return nil
	}
	infoCopy := *info
	return &infoCopy
}

// ValidateConfig validates a monitor configuration using the registered
// validator. Called before CreateMonitor for fail-fast validation.
func (r *Registry) ValidateConfig(config types.MonitorConfig) error {
	if config.Type == "" {
		return fmt.Errorf("monitor type is required")
	}

	r.mu.RLock()
	info, exists := r.monitors[config.Type]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("unknown monitor type %q, available types: %v",
			config.Type, r.GetRegisteredTypes())
	}

	if info.Validator != nil {
		if err := info.Validator(config); err != nil {
			return fmt.Errorf("validation failed for monitor %q: %w", config.Name, err)
		}
	}

	return nil
}

// CreateMonitor creates a new monitor instance of the configured type.
// The factory is called with panic recovery so a buggy monitor cannot
// crash startup.
func (r *Registry) CreateMonitor(ctx context.Context, config types.MonitorConfig) (types.Monitor, error) {
	if err := r.ValidateConfig(config); err != nil {
		return nil, err
	}

	r.mu.RLock()
	info := r.monitors[config.Type]
	r.mu.RUnlock()

	var monitor types.Monitor
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("monitor factory %q panicked: %v", config.Type, rec)
			}
		}()
		monitor, err = info.Factory(ctx, config)
	}()

	if err != nil {
		return nil, fmt.Errorf("failed to create monitor %q: %w", config.Name, err)
	}

	return monitor, nil
}

// CreateMonitorsFromConfigs creates monitor instances for every enabled
// configuration. If any creation fails, the error is returned and no
// further monitors are created.
func (r *Registry) CreateMonitorsFromConfigs(ctx context.Context, configs []types.MonitorConfig) ([]types.Monitor, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	created := make([]types.Monitor, 0, len(configs))
	for i, config := range configs {
		if !config.Enabled {
			continue
		}

		monitor, err := r.CreateMonitor(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create monitor %d (%s): %w", i, config.Name, err)
		}
		created = append(created, monitor)
	}

	return created, nil
}

// Package-level convenience functions operating on the DefaultRegistry.

// Register registers a monitor type with the default registry.
func Register(info MonitorInfo) error {
	return DefaultRegistry.Register(info)
}

// MustRegister registers a monitor type with the default registry and
// panics on error.
func MustRegister(info MonitorInfo) {
	DefaultRegistry.MustRegister(info)
}

// GetRegisteredTypes returns all monitor types in the default registry.
func GetRegisteredTypes() []string {
	return DefaultRegistry.GetRegisteredTypes()
}

// IsRegistered checks a monitor type against the default registry.
func IsRegistered(monitorType string) bool {
	return DefaultRegistry.IsRegistered(monitorType)
}

// ValidateConfig validates a monitor configuration using the default registry.
func ValidateConfig(config types.MonitorConfig) error {
	return DefaultRegistry.ValidateConfig(config)
}

// CreateMonitor creates a monitor instance using the default registry.
func CreateMonitor(ctx context.Context, config types.MonitorConfig) (types.Monitor, error) {
	return DefaultRegistry.CreateMonitor(ctx, config)
}

// CreateMonitorsFromConfigs creates monitors using the default registry.
func CreateMonitorsFromConfigs(ctx context.Context, configs []types.MonitorConfig) ([]types.Monitor, error) {
	return DefaultRegistry.CreateMonitorsFromConfigs(ctx, configs)
}
