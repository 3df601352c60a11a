package zeek

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/metrics"
	"github.com/supporttools/probe-doctor/pkg/monitors"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// MonitorType is the registry identifier of this monitor.
const MonitorType = "zeek-signature"

// SignatureMonitor tails one Zeek signature log and publishes a
// normalized event for every healthcheck probe hit. Composition is a
// straight pipeline: tailer -> parser -> event channel. A malformed line
// is logged and skipped; only a fatal I/O error from the tailer ends the
// loop.
type SignatureMonitor struct {
	*monitors.BaseMonitor

	tailer *Tailer
	parser *Parser
	path   string
	log    *logrus.Entry
}

// NewSignatureMonitor creates a signature monitor from its configuration.
// Required options: path (log file location) and sigName (the substring
// identifying relevant lines). Optional: interval (poll sleep period,
// default 3s), protocol / noLogProtocol (event template defaults).
func NewSignatureMonitor(ctx context.Context, config types.MonitorConfig) (types.Monitor, error) {
	path, ok := config.StringOption("path")
	if !ok || path == "" {
		return nil, fmt.Errorf("option 'path' is required")
	}
	sigName, ok := config.StringOption("sigName")
	if !ok || sigName == "" {
		return nil, fmt.Errorf("option 'sigName' is required")
	}

	interval, set, err := config.DurationOption("interval")
	if err != nil {
		return nil, err
	}
	if !set {
		interval = types.DefaultPollInterval
	}
	if interval < types.MinPollInterval {
		return nil, fmt.Errorf("interval %v is below the minimum %v", interval, types.MinPollInterval)
	}

	template, err := monitors.NewEventTemplateFromConfig(config)
	if err != nil {
		return nil, err
	}

	base, err := monitors.NewBaseMonitor(config.Name, template)
	if err != nil {
		return nil, err
	}

	m := &SignatureMonitor{
		BaseMonitor: base,
		tailer:      NewTailer(config.Name, path, sigName, interval),
		parser:      NewParser(template),
		path:        path,
		log: logger.WithFields(logrus.Fields{
			"component": "monitor",
			"monitor":   config.Name,
		}),
	}

	if err := base.SetRunFunc(m.run); err != nil {
		return nil, err
	}
	if err := base.SetLogger(m.log); err != nil {
		return nil, err
	}

	return m, nil
}

// run is the monitor loop: pull signature-matched lines from the tailer
// and publish every successfully parsed event. Runs until the context is
// cancelled or the tailer hits a fatal I/O error, which propagates up.
func (m *SignatureMonitor) run(ctx context.Context) error {
	m.log.Debug("executing monitor run loop")

	return m.tailer.Run(ctx, func(line string) bool {
		event, err := m.parser.Parse(line)
		if err != nil {
			metrics.ParseFailures.WithLabelValues(m.GetName()).Inc()
			m.log.WithError(err).Warnf("error parsing signature log line")
			m.log.Debugf("faulty input data: %s", line)
			return true
		}

		m.log.Infof("extracted new healthcheck log message from %s", m.path)
		m.log.Debugf("parsed log event: %+v", event)

		if !m.Emit(event) {
			return false
		}
		metrics.EventsPublished.WithLabelValues(m.GetName()).Inc()
		return true
	})
}

// ValidateSignatureConfig performs fail-fast validation of a
// zeek-signature monitor configuration.
func ValidateSignatureConfig(config types.MonitorConfig) error {
	if path, ok := config.StringOption("path"); !ok || path == "" {
		return fmt.Errorf("option 'path' is required")
	}
	if sig, ok := config.StringOption("sigName"); !ok || sig == "" {
		return fmt.Errorf("option 'sigName' is required")
	}
	if interval, set, err := config.DurationOption("interval"); err != nil {
		return err
	} else if set && interval < types.MinPollInterval {
		return fmt.Errorf("interval %v is below the minimum %v", interval, types.MinPollInterval)
	}
	return nil
}

// Interval returns the tailer's poll interval. Exposed for tests and
// introspection.
func (m *SignatureMonitor) Interval() time.Duration {
	return m.tailer.interval
}

func init() {
	monitors.MustRegister(monitors.MonitorInfo{
		Type:        MonitorType,
		Factory:     NewSignatureMonitor,
		Validator:   ValidateSignatureConfig,
		Description: "Watches a Zeek signature log for healthcheck probe hits",
	})
}
