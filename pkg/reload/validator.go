package reload

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/supporttools/probe-doctor/pkg/monitors"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// ValidationError pinpoints a single configuration problem with a field
// path such as "monitors[0].config.path".
type ValidationError struct {
	Field   string
	Message string
}

// ValidationResult aggregates every problem found in one pass so the
// operator can fix a bad config in one edit instead of one error at a
// time.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ConfigValidator performs deep validation of a configuration before it
// is applied by a hot reload. It is stricter than the structural
// Validate on the config type: it also checks monitor types against the
// registry and runs each monitor's own validator.
type ConfigValidator struct {
	maxMonitors            int
	maxWebhooksPerExporter int
	registry               *monitors.Registry
}

// NewConfigValidator creates a validator with default limits, checking
// monitor types against the default registry.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxMonitors:            100,
		maxWebhooksPerExporter: 50,
		registry:               monitors.DefaultRegistry,
	}
}

// NewConfigValidatorWithRegistry creates a validator bound to a specific
// registry. Used by tests with an isolated registry.
func NewConfigValidatorWithRegistry(registry *monitors.Registry) *ConfigValidator {
	v := NewConfigValidator()
	v.registry = registry
	return v
}

// Validate checks a configuration and reports every problem found.
func (v *ConfigValidator) Validate(config *types.ProbeDoctorConfig) *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []ValidationError{}}

	if config == nil {
		v.addError(result, "config", "configuration cannot be nil")
		return result
	}

	v.validateSettings(&config.Settings, result)
	v.validateMonitors(config.Monitors, result)
	v.validateExporters(&config.Exporters, result)

	return result
}

func (v *ConfigValidator) validateSettings(settings *types.GlobalSettings, result *ValidationResult) {
	if settings.SensorName == "" {
		v.addError(result, "settings.sensorName", "sensor name is required")
	}
	if settings.LogOutput == "file" && settings.LogFile == "" {
		v.addError(result, "settings.logFile", "logFile is required when logOutput is 'file'")
	}
}

func (v *ConfigValidator) validateMonitors(configs []types.MonitorConfig, result *ValidationResult) {
	if len(configs) == 0 {
		v.addError(result, "monitors", "at least one monitor must be configured")
		return
	}
	if len(configs) > v.maxMonitors {
		v.addError(result, "monitors",
			fmt.Sprintf("too many monitors: %d (max %d)", len(configs), v.maxMonitors))
	}

	names := make(map[string]int, len(configs))
	for i, m := range configs {
		prefix := fmt.Sprintf("monitors[%d]", i)

		if m.Name == "" {
			v.addError(result, prefix+".name", "monitor name is required")
		} else if prev, dup := names[m.Name]; dup {
			v.addError(result, prefix+".name",
				fmt.Sprintf("duplicate monitor name %q (first defined at monitors[%d])", m.Name, prev))
		} else {
			names[m.Name] = i
		}

		if m.Type == "" {
			v.addError(result, prefix+".type", "monitor type is required")
			continue
		}
		if !v.registry.IsRegistered(m.Type) {
			v.addError(result, prefix+".type",
				fmt.Sprintf("unknown monitor type %q, available types: %v",
					m.Type, v.registry.GetRegisteredTypes()))
			continue
		}

		// The monitor's own validator knows its required options.
		if err := v.registry.ValidateConfig(m); err != nil {
			v.addError(result, prefix+".config", err.Error())
		}

		if path, ok := m.StringOption("path"); ok && !filepath.IsAbs(path) {
			v.addError(result, prefix+".config.path", "path must be absolute")
		}
	}
}

func (v *ConfigValidator) validateExporters(exporters *types.ExporterConfigs, result *ValidationResult) {
	enabled := false

	if exporters.Log != nil && exporters.Log.Enabled {
		enabled = true
	}

	if exporters.HTTP != nil && exporters.HTTP.Enabled {
		enabled = true
		v.validateHTTPExporter(exporters.HTTP, "exporters.http", result)
	}

	if exporters.Prometheus != nil && exporters.Prometheus.Enabled {
		enabled = true
		p := exporters.Prometheus
		if p.Port < 1 || p.Port > 65535 {
			v.addError(result, "exporters.prometheus.port",
				fmt.Sprintf("port %d out of range [1,65535]", p.Port))
		}
		if p.Path != "" && !strings.HasPrefix(p.Path, "/") {
			v.addError(result, "exporters.prometheus.path", "metrics path must start with '/'")
		}
	}

	if !enabled {
		v.addError(result, "exporters", "at least one exporter must be enabled")
	}
}

func (v *ConfigValidator) validateHTTPExporter(exporter *types.HTTPExporterConfig, prefix string, result *ValidationResult) {
	if len(exporter.Webhooks) == 0 {
		v.addError(result, prefix+".webhooks", "at least one webhook must be configured")
		return
	}
	if len(exporter.Webhooks) > v.maxWebhooksPerExporter {
		v.addError(result, prefix+".webhooks",
			fmt.Sprintf("too many webhooks: %d (max %d)", len(exporter.Webhooks), v.maxWebhooksPerExporter))
	}

	for i := range exporter.Webhooks {
		w := &exporter.Webhooks[i]
		webhookPrefix := fmt.Sprintf("%s.webhooks[%d]", prefix, i)

		if w.Name == "" {
			v.addError(result, webhookPrefix+".name", "webhook name is required")
		}
		if w.URL == "" {
			v.addError(result, webhookPrefix+".url", "webhook URL is required")
		} else if u, err := url.Parse(w.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			v.addError(result, webhookPrefix+".url", "webhook URL must be a valid http(s) URL")
		}
		if w.Timeout < 0 {
			v.addError(result, webhookPrefix+".timeout", "timeout must not be negative")
		}
	}
}

func (v *ConfigValidator) addError(result *ValidationResult, field, message string) {
	result.Valid = false
	result.Errors = append(result.Errors, ValidationError{Field: field, Message: message})
}

// FormatValidationErrors renders validation errors as a single readable
// string for logs and error returns.
func FormatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	if len(errors) == 1 {
		return fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "configuration validation failed with %d error(s):", len(errors))
	for _, err := range errors {
		fmt.Fprintf(&b, "\n  - %s: %s", err.Field, err.Message)
	}
	return b.String()
}
