package reload

import (
	"fmt"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// ConfigDiff describes what changed between two configurations. The
// coordinator uses it to decide whether a reload is needed at all; the
// apply callback can use it to report what was restarted.
type ConfigDiff struct {
	MonitorsAdded    []types.MonitorConfig
	MonitorsRemoved  []types.MonitorConfig
	MonitorsModified []MonitorChange
	ExportersChanged bool
	SettingsChanged  bool
}

// MonitorChange pairs the old and new configuration of a modified
// monitor.
type MonitorChange struct {
	Old types.MonitorConfig
	New types.MonitorConfig
}

// ComputeConfigDiff calculates the differences between two
// configurations. Monitors are matched by name.
func ComputeConfigDiff(oldConfig, newConfig *types.ProbeDoctorConfig) *ConfigDiff {
	diff := &ConfigDiff{}

	oldMonitors := monitorMap(oldConfig.Monitors)
	newMonitors := monitorMap(newConfig.Monitors)

	for _, newMon := range newConfig.Monitors {
		oldMon, exists := oldMonitors[newMon.Name]
		if !exists {
			diff.MonitorsAdded = append(diff.MonitorsAdded, newMon)
		} else if !monitorsEqual(oldMon, newMon) {
			diff.MonitorsModified = append(diff.MonitorsModified, MonitorChange{Old: oldMon, New: newMon})
		}
	}
	for _, oldMon := range oldConfig.Monitors {
		if _, exists := newMonitors[oldMon.Name]; !exists {
			diff.MonitorsRemoved = append(diff.MonitorsRemoved, oldMon)
		}
	}

	diff.ExportersChanged = !exportersEqual(&oldConfig.Exporters, &newConfig.Exporters)
	diff.SettingsChanged = oldConfig.Settings != newConfig.Settings

	return diff
}

// HasChanges reports whether the diff contains anything to apply.
func (d *ConfigDiff) HasChanges() bool {
	return len(d.MonitorsAdded) > 0 ||
		len(d.MonitorsRemoved) > 0 ||
		len(d.MonitorsModified) > 0 ||
		d.ExportersChanged ||
		d.SettingsChanged
}

// Summary renders a one-line description of the diff for logging.
func (d *ConfigDiff) Summary() string {
	if !d.HasChanges() {
		return "no changes"
	}

	var parts []string
	if n := len(d.MonitorsAdded); n > 0 {
		parts = append(parts, fmt.Sprintf("%d monitor(s) added", n))
	}
	if n := len(d.MonitorsRemoved); n > 0 {
		parts = append(parts, fmt.Sprintf("%d monitor(s) removed", n))
	}
	if n := len(d.MonitorsModified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d monitor(s) modified", n))
	}
	if d.ExportersChanged {
		parts = append(parts, "exporters changed")
	}
	if d.SettingsChanged {
		parts = append(parts, "settings changed")
	}

	summary := parts[0]
	for _, p := range parts[1:] {
		summary += ", " + p
	}
	return summary
}

func monitorMap(configs []types.MonitorConfig) map[string]types.MonitorConfig {
	m := make(map[string]types.MonitorConfig, len(configs))
	for _, c := range configs {
		m[c.Name] = c
	}
	return m
}

func monitorsEqual(a, b types.MonitorConfig) bool {
	if a.Name != b.Name || a.Type != b.Type || a.Enabled != b.Enabled {
		return false
	}
	return optionMapsEqual(a.Config, b.Config)
}

// optionMapsEqual compares monitor option maps. Values are compared by
// their printed form; monitor options are scalars (strings, numbers,
// booleans) so this is exact for everything the monitors accept.
func optionMapsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			return false
		}
		if fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

func exportersEqual(a, b *types.ExporterConfigs) bool {
	if (a.Log == nil) != (b.Log == nil) {
		return false
	}
	if a.Log != nil && a.Log.Enabled != b.Log.Enabled {
		return false
	}

	if (a.Prometheus == nil) != (b.Prometheus == nil) {
		return false
	}
	if a.Prometheus != nil && *a.Prometheus != *b.Prometheus {
		return false
	}

	if (a.HTTP == nil) != (b.HTTP == nil) {
		return false
	}
	if a.HTTP != nil {
		if a.HTTP.Enabled != b.HTTP.Enabled || len(a.HTTP.Webhooks) != len(b.HTTP.Webhooks) {
			return false
		}
		for i := range a.HTTP.Webhooks {
			if a.HTTP.Webhooks[i] != b.HTTP.Webhooks[i] {
				return false
			}
		}
	}

	return true
}
