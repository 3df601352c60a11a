// Package logexp implements the structured-log event sink. It is the
// default exporter: every published event is written to the process log
// with its normalized fields, which is enough for bench testing a sensor
// and for piping into log shippers.
package logexp

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// Exporter writes events to the structured log at info level.
type Exporter struct {
	log *logrus.Entry
}

// NewExporter creates a log exporter.
func NewExporter() *Exporter {
	return &Exporter{
		log: logger.WithField("component", "log-exporter"),
	}
}

// Name identifies this exporter in metrics and diagnostics.
func (e *Exporter) Name() string {
	return "log"
}

// ExportEvent implements types.Exporter.
func (e *Exporter) ExportEvent(ctx context.Context, event *types.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	fields := logrus.Fields{
		"monitor":    event.Monitor,
		"alert_time": event.AlertTime,
		"src_addr":   event.SrcAddr,
		"src_port":   event.SrcPort,
		"dest_addr":  event.DestAddr,
		"dest_port":  event.DestPort,
	}
	for k, v := range event.Fields {
		fields[k] = v
	}

	e.log.WithFields(fields).Info("healthcheck event")
	return nil
}
