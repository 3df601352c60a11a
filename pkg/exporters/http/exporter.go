// Package http implements the webhook event sink: every published event
// is POSTed as JSON to each configured webhook endpoint.
package http

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// Exporter delivers events to one or more webhooks. Delivery is
// sequential per event; a failing webhook does not prevent delivery to
// the others, but any failure is reported to the dispatcher.
type Exporter struct {
	clients []*Client
	log     *logrus.Entry
}

// NewExporter creates a webhook exporter from its configuration.
func NewExporter(config *types.HTTPExporterConfig, sensorName string) (*Exporter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !config.Enabled {
		return nil, fmt.Errorf("http exporter is disabled")
	}
	if len(config.Webhooks) == 0 {
		return nil, fmt.Errorf("no webhooks configured")
	}
	if sensorName == "" {
		return nil, fmt.Errorf("sensor name is required")
	}

	clients := make([]*Client, 0, len(config.Webhooks))
	for i := range config.Webhooks {
		if err := config.Webhooks[i].Validate(); err != nil {
			return nil, fmt.Errorf("webhook %d validation failed: %w", i, err)
		}
		clients = append(clients, NewClient(config.Webhooks[i], sensorName))
	}

	return &Exporter{
		clients: clients,
		log:     logger.WithField("component", "http-exporter"),
	}, nil
}

// Name identifies this exporter in metrics and diagnostics.
func (e *Exporter) Name() string {
	return "http"
}

// ExportEvent implements types.Exporter. All webhooks are attempted; the
// returned error aggregates the failure count so the dispatcher can log
// and count it.
func (e *Exporter) ExportEvent(ctx context.Context, event *types.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	var failed int
	var lastErr error
	for _, client := range e.clients {
		if err := client.Send(ctx, event); err != nil {
			failed++
			lastErr = err
			e.log.WithError(err).Warnf("webhook delivery failed")
			continue
		}
		e.log.Debugf("delivered event from %s to webhook %s", event.Monitor, client.webhook.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d webhook deliveries failed, last error: %w",
			failed, len(e.clients), lastErr)
	}
	return nil
}
