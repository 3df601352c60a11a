package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/supporttools/probe-doctor/pkg/types"
)

func testEvent() *types.Event {
	return &types.Event{
		AlertTime: "2023-11-14T22:13:20",
		SrcAddr:   "10.0.0.1",
		SrcPort:   443,
		DestAddr:  "10.0.0.2",
		DestPort:  51000,
		Monitor:   "zeek-sig",
		Fields:    map[string]string{"protocol": "tcp"},
	}
}

func exporterConfig(webhooks ...types.WebhookConfig) *types.HTTPExporterConfig {
	return &types.HTTPExporterConfig{Enabled: true, Webhooks: webhooks}
}

func TestNewExporterValidation(t *testing.T) {
	valid := types.WebhookConfig{Name: "w", URL: "http://example.com"}

	tests := []struct {
		name    string
		config  *types.HTTPExporterConfig
		sensor  string
		wantErr bool
	}{
		{"valid", exporterConfig(valid), "sensor-01", false},
		{"nil config", nil, "sensor-01", true},
		{"disabled", &types.HTTPExporterConfig{Webhooks: []types.WebhookConfig{valid}}, "sensor-01", true},
		{"no webhooks", exporterConfig(), "sensor-01", true},
		{"no sensor name", exporterConfig(valid), "", true},
		{"invalid webhook", exporterConfig(types.WebhookConfig{Name: "w"}), "sensor-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExporter(tt.config, tt.sensor)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExporterDeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var received payload
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exporter, err := NewExporter(exporterConfig(types.WebhookConfig{
		Name:  "primary",
		URL:   server.URL,
		Token: "secret-token",
	}), "sensor-01")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	if exporter.Name() != "http" {
		t.Errorf("unexpected exporter name %q", exporter.Name())
	}

	if err := exporter.ExportEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("ExportEvent failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if received.Sensor != "sensor-01" {
		t.Errorf("expected sensor sensor-01, got %q", received.Sensor)
	}
	if received.Event == nil {
		t.Fatal("payload has no event")
	}
	if received.Event.AlertTime != "2023-11-14T22:13:20" {
		t.Errorf("unexpected alert time %q", received.Event.AlertTime)
	}
	if received.Event.SrcAddr != "10.0.0.1" || received.Event.DestPort != 51000 {
		t.Errorf("unexpected event: %+v", received.Event)
	}
	if received.Event.Fields["protocol"] != "tcp" {
		t.Errorf("expected protocol field, got %v", received.Event.Fields)
	}

	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("unexpected content type %q", got)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("unexpected authorization header %q", got)
	}
	if got := gotHeaders.Get("User-Agent"); got != "probe-doctor" {
		t.Errorf("unexpected user agent %q", got)
	}
}

func TestExporterRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	exporter, err := NewExporter(exporterConfig(types.WebhookConfig{
		Name: "broken", URL: server.URL,
	}), "sensor-01")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	if err := exporter.ExportEvent(context.Background(), testEvent()); err == nil {
		t.Error("expected non-2xx response to be an error")
	}
}

func TestExporterContinuesPastFailingWebhook(t *testing.T) {
	var mu sync.Mutex
	delivered := 0

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		delivered++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer working.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	exporter, err := NewExporter(exporterConfig(
		types.WebhookConfig{Name: "failing", URL: failing.URL},
		types.WebhookConfig{Name: "working", URL: working.URL},
	), "sensor-01")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	// One webhook down: the event still reaches the other, and the
	// aggregate failure is reported.
	err = exporter.ExportEvent(context.Background(), testEvent())
	if err == nil {
		t.Error("expected aggregate error when a webhook fails")
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Errorf("expected delivery to the working webhook, got %d", delivered)
	}
}

func TestExporterTimeout(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer server.Close()
	defer close(release)

	exporter, err := NewExporter(exporterConfig(types.WebhookConfig{
		Name:    "slow",
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	}), "sensor-01")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- exporter.ExportEvent(context.Background(), testEvent()) }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected timeout error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("export did not time out")
	}

	select {
	case <-started:
	default:
		t.Log("request never reached the server before timing out")
	}
}

func TestExporterNilEvent(t *testing.T) {
	exporter, err := NewExporter(exporterConfig(types.WebhookConfig{
		Name: "w", URL: "http://example.invalid",
	}), "sensor-01")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	if err := exporter.ExportEvent(context.Background(), nil); err == nil {
		t.Error("expected nil event to be rejected")
	}
}
