// Package types defines configuration types for Probe Doctor.
package types

import (
	"fmt"
	"os"
	"time"
)

// Package-level defaults
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogOutput      = "stdout"
	DefaultPollInterval   = 3 * time.Second
	DefaultProtocol       = "tcp"
	DefaultHealthPort     = 8080
	DefaultHealthBind     = "0.0.0.0"
	DefaultPrometheusPort = 9464
	DefaultPrometheusPath = "/metrics"
	DefaultWebhookTimeout = 10 * time.Second
)

// MinPollInterval is the smallest accepted poll interval. Anything lower
// turns the tail loop into a busy wait against the filesystem.
const MinPollInterval = 100 * time.Millisecond

var (
	validLogLevels = map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	validLogFormats = map[string]bool{
		"json": true,
		"text": true,
	}

	validLogOutputs = map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
)

// MonitorRegistryValidator validates monitor types without creating an
// import cycle between the config and monitors packages. Implemented by
// monitors.Registry.
type MonitorRegistryValidator interface {
	// IsRegistered returns true if the given monitor type is registered.
	IsRegistered(monitorType string) bool

	// GetRegisteredTypes returns a sorted list of registered monitor types.
	GetRegisteredTypes() []string
}

// ProbeDoctorConfig is the top-level configuration structure.
type ProbeDoctorConfig struct {
	// Metadata contains the configuration name and labels.
	Metadata ConfigMetadata `json:"metadata" yaml:"metadata"`

	// Settings contains global configuration.
	Settings GlobalSettings `json:"settings" yaml:"settings"`

	// Monitors contains all monitor configurations.
	Monitors []MonitorConfig `json:"monitors" yaml:"monitors"`

	// Exporters contains exporter configurations.
	Exporters ExporterConfigs `json:"exporters" yaml:"exporters"`
}

// ConfigMetadata contains metadata about the configuration.
type ConfigMetadata struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// GlobalSettings contains global configuration settings.
type GlobalSettings struct {
	// SensorName identifies this probe instance in exported events and
	// metrics (usually the sensor hostname).
	SensorName string `json:"sensorName" yaml:"sensorName"`

	// Logging configuration
	LogLevel  string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	LogOutput string `json:"logOutput,omitempty" yaml:"logOutput,omitempty"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`

	// Health server configuration
	HealthEnabled bool   `json:"healthEnabled,omitempty" yaml:"healthEnabled,omitempty"`
	HealthBind    string `json:"healthBind,omitempty" yaml:"healthBind,omitempty"`
	HealthPort    int    `json:"healthPort,omitempty" yaml:"healthPort,omitempty"`

	// ReloadEnabled turns on hot reload of the config file. When the file
	// changes on disk the new configuration is validated and, if accepted,
	// the monitors and exporters are rebuilt without restarting the process.
	ReloadEnabled bool `json:"reloadEnabled,omitempty" yaml:"reloadEnabled,omitempty"`
}

// MonitorConfig describes one monitor instance.
type MonitorConfig struct {
	// Name is the unique instance name (e.g. "zeek-sig-dmz").
	Name string `json:"name" yaml:"name"`

	// Type selects the registered monitor implementation
	// (e.g. "zeek-signature").
	Type string `json:"type" yaml:"type"`

	// Enabled controls whether this monitor is started.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Config holds monitor-specific options. Recognized keys are defined
	// by each monitor implementation; the zeek-signature monitor expects
	// path, sigName and optionally interval, protocol, noLogProtocol.
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// ExporterConfigs contains the configuration of every exporter.
type ExporterConfigs struct {
	Log        *LogExporterConfig        `json:"log,omitempty" yaml:"log,omitempty"`
	HTTP       *HTTPExporterConfig       `json:"http,omitempty" yaml:"http,omitempty"`
	Prometheus *PrometheusExporterConfig `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
}

// LogExporterConfig configures the structured-log event sink.
type LogExporterConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// HTTPExporterConfig configures webhook delivery of events.
type HTTPExporterConfig struct {
	Enabled  bool            `json:"enabled" yaml:"enabled"`
	Webhooks []WebhookConfig `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// WebhookConfig describes one webhook endpoint.
type WebhookConfig struct {
	// Name identifies the webhook in logs and metrics.
	Name string `json:"name" yaml:"name"`

	// URL is the endpoint events are POSTed to.
	URL string `json:"url" yaml:"url"`

	// Token is an optional bearer token sent in the Authorization header.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// Timeout bounds each delivery attempt. Zero means the default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Validate checks a webhook configuration.
func (w *WebhookConfig) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("webhook name is required")
	}
	if w.URL == "" {
		return fmt.Errorf("webhook %q: url is required", w.Name)
	}
	if w.Timeout < 0 {
		return fmt.Errorf("webhook %q: timeout must not be negative", w.Name)
	}
	return nil
}

// PrometheusExporterConfig configures the metrics endpoint.
type PrometheusExporterConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Bind    string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *ProbeDoctorConfig) ApplyDefaults() error {
	if c.Metadata.Name == "" {
		c.Metadata.Name = "default"
	}

	if c.Settings.SensorName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			c.Settings.SensorName = "probe-doctor"
		} else {
			c.Settings.SensorName = hostname
		}
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = DefaultLogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = DefaultLogFormat
	}
	if c.Settings.LogOutput == "" {
		c.Settings.LogOutput = DefaultLogOutput
	}
	if c.Settings.HealthBind == "" {
		c.Settings.HealthBind = DefaultHealthBind
	}
	if c.Settings.HealthPort == 0 {
		c.Settings.HealthPort = DefaultHealthPort
	}

	if c.Exporters.Log == nil && c.Exporters.HTTP == nil && c.Exporters.Prometheus == nil {
		// No exporters configured at all: fall back to the log sink so
		// events are not silently dropped.
		c.Exporters.Log = &LogExporterConfig{Enabled: true}
	}
	if c.Exporters.Prometheus != nil && c.Exporters.Prometheus.Enabled {
		if c.Exporters.Prometheus.Bind == "" {
			c.Exporters.Prometheus.Bind = DefaultHealthBind
		}
		if c.Exporters.Prometheus.Port == 0 {
			c.Exporters.Prometheus.Port = DefaultPrometheusPort
		}
		if c.Exporters.Prometheus.Path == "" {
			c.Exporters.Prometheus.Path = DefaultPrometheusPath
		}
	}
	if c.Exporters.HTTP != nil && c.Exporters.HTTP.Enabled {
		for i := range c.Exporters.HTTP.Webhooks {
			if c.Exporters.HTTP.Webhooks[i].Timeout == 0 {
				c.Exporters.HTTP.Webhooks[i].Timeout = DefaultWebhookTimeout
			}
		}
	}

	return nil
}

// Validate checks the configuration for errors. Monitor type existence is
// validated separately through a MonitorRegistryValidator because the
// registry lives in another package.
func (c *ProbeDoctorConfig) Validate() error {
	if !validLogLevels[c.Settings.LogLevel] {
		return fmt.Errorf("invalid logLevel %q", c.Settings.LogLevel)
	}
	if !validLogFormats[c.Settings.LogFormat] {
		return fmt.Errorf("invalid logFormat %q", c.Settings.LogFormat)
	}
	if !validLogOutputs[c.Settings.LogOutput] {
		return fmt.Errorf("invalid logOutput %q", c.Settings.LogOutput)
	}
	if c.Settings.LogOutput == "file" && c.Settings.LogFile == "" {
		return fmt.Errorf("logFile is required when logOutput is 'file'")
	}
	if c.Settings.HealthPort < 0 || c.Settings.HealthPort > 65535 {
		return fmt.Errorf("invalid healthPort %d", c.Settings.HealthPort)
	}

	if len(c.Monitors) == 0 {
		return fmt.Errorf("at least one monitor must be configured")
	}

	seen := make(map[string]bool, len(c.Monitors))
	for i, m := range c.Monitors {
		if m.Name == "" {
			return fmt.Errorf("monitor %d: name is required", i)
		}
		if m.Type == "" {
			return fmt.Errorf("monitor %q: type is required", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate monitor name %q", m.Name)
		}
		seen[m.Name] = true
	}

	if c.Exporters.HTTP != nil && c.Exporters.HTTP.Enabled {
		if len(c.Exporters.HTTP.Webhooks) == 0 {
			return fmt.Errorf("http exporter enabled but no webhooks configured")
		}
		for i := range c.Exporters.HTTP.Webhooks {
			if err := c.Exporters.HTTP.Webhooks[i].Validate(); err != nil {
				return err
			}
		}
	}
	if c.Exporters.Prometheus != nil && c.Exporters.Prometheus.Enabled {
		p := c.Exporters.Prometheus
		if p.Port < 1 || p.Port > 65535 {
			return fmt.Errorf("invalid prometheus port %d", p.Port)
		}
	}

	return nil
}

// ValidateMonitorTypes verifies every enabled monitor references a
// registered type.
func (c *ProbeDoctorConfig) ValidateMonitorTypes(registry MonitorRegistryValidator) error {
	for _, m := range c.Monitors {
		if !m.Enabled {
			continue
		}
		if !registry.IsRegistered(m.Type) {
			return fmt.Errorf("monitor %q: unknown type %q, available types: %v",
				m.Name, m.Type, registry.GetRegisteredTypes())
		}
	}
	return nil
}

// StringOption returns a string-typed option from a monitor's Config map.
func (m *MonitorConfig) StringOption(key string) (string, bool) {
	if m.Config == nil {
		return "", false
	}
	v, ok := m.Config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// BoolOption returns a bool-typed option from a monitor's Config map.
func (m *MonitorConfig) BoolOption(key string) (bool, bool) {
	if m.Config == nil {
		return false, false
	}
	v, ok := m.Config[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// DurationOption returns a duration-typed option from a monitor's Config
// map. Accepts Go duration strings ("3s") or bare numbers of seconds, the
// form the YAML decoder produces for unquoted integers.
func (m *MonitorConfig) DurationOption(key string) (time.Duration, bool, error) {
	if m.Config == nil {
		return 0, false, nil
	}
	v, ok := m.Config[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, true, fmt.Errorf("option %q: %w", key, err)
		}
		return d, true, nil
	case int:
		return time.Duration(val) * time.Second, true, nil
	case float64:
		return time.Duration(val * float64(time.Second)), true, nil
	default:
		return 0, true, fmt.Errorf("option %q: unsupported type %T", key, v)
	}
}
