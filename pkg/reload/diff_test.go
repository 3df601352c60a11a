package reload

import (
	"strings"
	"testing"
	"time"

	"github.com/supporttools/probe-doctor/pkg/types"
)

func baseDiffConfig() *types.ProbeDoctorConfig {
	return &types.ProbeDoctorConfig{
		Settings: types.GlobalSettings{SensorName: "sensor-01", LogLevel: "info"},
		Monitors: []types.MonitorConfig{
			{
				Name:    "zeek-sig",
				Type:    "zeek-signature",
				Enabled: true,
				Config: map[string]interface{}{
					"path":    "/var/log/sig.log",
					"sigName": "ampt-probe",
				},
			},
		},
		Exporters: types.ExporterConfigs{
			Log: &types.LogExporterConfig{Enabled: true},
		},
	}
}

func TestComputeConfigDiffNoChanges(t *testing.T) {
	diff := ComputeConfigDiff(baseDiffConfig(), baseDiffConfig())
	if diff.HasChanges() {
		t.Errorf("expected no changes, got: %s", diff.Summary())
	}
	if diff.Summary() != "no changes" {
		t.Errorf("unexpected summary %q", diff.Summary())
	}
}

func TestComputeConfigDiffMonitorAdded(t *testing.T) {
	newConfig := baseDiffConfig()
	newConfig.Monitors = append(newConfig.Monitors, types.MonitorConfig{
		Name: "zeek-sig-dmz", Type: "zeek-signature", Enabled: true,
		Config: map[string]interface{}{"path": "/var/log/dmz.log", "sigName": "ampt-probe"},
	})

	diff := ComputeConfigDiff(baseDiffConfig(), newConfig)
	if len(diff.MonitorsAdded) != 1 || diff.MonitorsAdded[0].Name != "zeek-sig-dmz" {
		t.Errorf("unexpected added monitors: %+v", diff.MonitorsAdded)
	}
	if !strings.Contains(diff.Summary(), "1 monitor(s) added") {
		t.Errorf("unexpected summary %q", diff.Summary())
	}
}

func TestComputeConfigDiffMonitorRemoved(t *testing.T) {
	newConfig := baseDiffConfig()
	newConfig.Monitors = nil

	diff := ComputeConfigDiff(baseDiffConfig(), newConfig)
	if len(diff.MonitorsRemoved) != 1 || diff.MonitorsRemoved[0].Name != "zeek-sig" {
		t.Errorf("unexpected removed monitors: %+v", diff.MonitorsRemoved)
	}
}

func TestComputeConfigDiffMonitorModified(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.MonitorConfig)
	}{
		{"option changed", func(m *types.MonitorConfig) { m.Config["sigName"] = "other-sig" }},
		{"option added", func(m *types.MonitorConfig) { m.Config["interval"] = "5s" }},
		{"disabled", func(m *types.MonitorConfig) { m.Enabled = false }},
		{"type changed", func(m *types.MonitorConfig) { m.Type = "other-type" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newConfig := baseDiffConfig()
			tt.mutate(&newConfig.Monitors[0])

			diff := ComputeConfigDiff(baseDiffConfig(), newConfig)
			if len(diff.MonitorsModified) != 1 {
				t.Fatalf("expected 1 modified monitor, got %d (%s)", len(diff.MonitorsModified), diff.Summary())
			}
			change := diff.MonitorsModified[0]
			if change.Old.Name != "zeek-sig" || change.New.Name != "zeek-sig" {
				t.Errorf("unexpected change pair: %+v", change)
			}
		})
	}
}

func TestComputeConfigDiffExportersChanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.ProbeDoctorConfig)
	}{
		{"log disabled", func(c *types.ProbeDoctorConfig) { c.Exporters.Log.Enabled = false }},
		{"prometheus added", func(c *types.ProbeDoctorConfig) {
			c.Exporters.Prometheus = &types.PrometheusExporterConfig{Enabled: true, Port: 9464}
		}},
		{"webhook added", func(c *types.ProbeDoctorConfig) {
			c.Exporters.HTTP = &types.HTTPExporterConfig{
				Enabled:  true,
				Webhooks: []types.WebhookConfig{{Name: "w", URL: "https://x", Timeout: time.Second}},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newConfig := baseDiffConfig()
			tt.mutate(newConfig)

			diff := ComputeConfigDiff(baseDiffConfig(), newConfig)
			if !diff.ExportersChanged {
				t.Error("expected exporters change to be detected")
			}
		})
	}
}

func TestComputeConfigDiffWebhookTokenChanged(t *testing.T) {
	oldConfig := baseDiffConfig()
	oldConfig.Exporters.HTTP = &types.HTTPExporterConfig{
		Enabled:  true,
		Webhooks: []types.WebhookConfig{{Name: "w", URL: "https://x", Token: "old"}},
	}
	newConfig := baseDiffConfig()
	newConfig.Exporters.HTTP = &types.HTTPExporterConfig{
		Enabled:  true,
		Webhooks: []types.WebhookConfig{{Name: "w", URL: "https://x", Token: "new"}},
	}

	diff := ComputeConfigDiff(oldConfig, newConfig)
	if !diff.ExportersChanged {
		t.Error("expected a token rotation to be detected")
	}
}

func TestComputeConfigDiffSettingsChanged(t *testing.T) {
	newConfig := baseDiffConfig()
	newConfig.Settings.LogLevel = "debug"

	diff := ComputeConfigDiff(baseDiffConfig(), newConfig)
	if !diff.SettingsChanged {
		t.Error("expected settings change to be detected")
	}
}
