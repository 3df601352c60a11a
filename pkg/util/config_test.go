package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/supporttools/probe-doctor/pkg/types"
)

const sampleYAML = `
metadata:
  name: test-sensor
settings:
  sensorName: sensor-01
  logLevel: debug
  logFormat: text
monitors:
  - name: zeek-sig-dmz
    type: zeek-signature
    enabled: true
    config:
      path: /opt/zeek/logs/current/signatures.log
      sigName: ampt-probe
      interval: 5s
exporters:
  log:
    enabled: true
`

const sampleJSON = `{
  "metadata": {"name": "test-sensor"},
  "settings": {"sensorName": "sensor-01"},
  "monitors": [
    {
      "name": "zeek-sig-dmz",
      "type": "zeek-signature",
      "enabled": true,
      "config": {"path": "/var/log/sig.log", "sigName": "ampt-probe"}
    }
  ],
  "exporters": {"log": {"enabled": true}}
}`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.SensorName != "sensor-01" {
		t.Errorf("expected sensor sensor-01, got %q", config.Settings.SensorName)
	}
	if config.Settings.LogLevel != "debug" {
		t.Errorf("expected logLevel debug, got %q", config.Settings.LogLevel)
	}
	if len(config.Monitors) != 1 {
		t.Fatalf("expected 1 monitor, got %d", len(config.Monitors))
	}

	m := config.Monitors[0]
	if m.Type != "zeek-signature" || !m.Enabled {
		t.Errorf("unexpected monitor: %+v", m)
	}
	if path, ok := m.StringOption("path"); !ok || path != "/opt/zeek/logs/current/signatures.log" {
		t.Errorf("unexpected path option: %q", path)
	}
	if sig, ok := m.StringOption("sigName"); !ok || sig != "ampt-probe" {
		t.Errorf("unexpected sigName option: %q", sig)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "config.json", sampleJSON)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Settings.SensorName != "sensor-01" {
		t.Errorf("expected sensor sensor-01, got %q", config.Settings.SensorName)
	}
	// Unset fields pick up defaults during loading.
	if config.Settings.LogLevel != types.DefaultLogLevel {
		t.Errorf("expected default log level, got %q", config.Settings.LogLevel)
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("PROBE_SIG_NAME", "ampt-probe")
	content := `
settings:
  sensorName: sensor-01
monitors:
  - name: zeek-sig
    type: zeek-signature
    enabled: true
    config:
      path: /var/log/sig.log
      sigName: ${PROBE_SIG_NAME}
`
	path := writeConfig(t, "config.yaml", content)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if sig, _ := config.Monitors[0].StringOption("sigName"); sig != "ampt-probe" {
		t.Errorf("expected env-expanded sigName, got %q", sig)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, "config.yaml", "monitors: [\n  broken")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := writeConfig(t, "config.yaml", "settings:\n  sensorName: x\nmonitors: []\n")
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("expected validation error for empty monitor list")
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigOrDefault failed: %v", err)
	}
	if len(config.Monitors) != 1 || config.Monitors[0].Type != "zeek-signature" {
		t.Errorf("unexpected default monitors: %+v", config.Monitors)
	}

	path := writeConfig(t, "config.yaml", sampleYAML)
	config, err = LoadConfigOrDefault(path)
	if err != nil {
		t.Fatalf("LoadConfigOrDefault failed for existing file: %v", err)
	}
	if config.Settings.SensorName != "sensor-01" {
		t.Error("expected the file to win over defaults when it exists")
	}
}

func TestDefaultConfig(t *testing.T) {
	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
	if sig, _ := config.Monitors[0].StringOption("sigName"); sig != "ampt-probe" {
		t.Errorf("unexpected default sigName: %q", sig)
	}
	if config.Exporters.Log == nil || !config.Exporters.Log.Enabled {
		t.Error("expected the log exporter enabled by default")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveConfig(config, path); err != nil {
			t.Fatalf("SaveConfig(%s) failed: %v", name, err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s) failed: %v", name, err)
		}
		if loaded.Metadata.Name != config.Metadata.Name {
			t.Errorf("%s: metadata name changed across round trip", name)
		}
		if len(loaded.Monitors) != len(config.Monitors) {
			t.Errorf("%s: monitor count changed across round trip", name)
		}
	}

	if err := SaveConfig(config, filepath.Join(t.TempDir(), "out.toml")); err == nil {
		t.Error("expected unsupported extension to be rejected")
	}
}
