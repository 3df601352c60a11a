// Package zeek implements the Zeek signature log monitor. It tails the
// sensor's signature log, pre-filters lines by the configured signature
// name, and parses matching lines into healthcheck events.
package zeek

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/metrics"
)

// Cursor tracks the tailer's read position in the log file: the byte
// offset the next poll resumes from, and the end-of-file offset observed
// at the last poll. The offset only moves backwards on truncation, where
// it is reset to the new, smaller end of file.
type Cursor struct {
	Offset int64
	EOF    int64
}

// Tailer incrementally surfaces new signature-matched lines appended to a
// single log file. The file is opened fresh on every poll cycle and
// closed before the cycle ends, so no handle is held across the sleep.
type Tailer struct {
	path     string
	sigName  string
	interval time.Duration
	monitor  string
	log      *logrus.Entry
}

// NewTailer creates a tailer for the given file path and signature name.
// The interval is the sleep period between polls when no new content is
// available. The monitor name labels diagnostics and metrics.
func NewTailer(monitor, path, sigName string, interval time.Duration) *Tailer {
	return &Tailer{
		path:     path,
		sigName:  sigName,
		interval: interval,
		monitor:  monitor,
		log: logger.WithFields(logrus.Fields{
			"component": "tailer",
			"monitor":   monitor,
			"path":      path,
		}),
	}
}

// Init opens the log file, seeks to its current end, and returns the
// starting cursor. Content written before Init is never surfaced: this is
// a tail, not a full read.
func (t *Tailer) Init() (Cursor, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return Cursor{}, fmt.Errorf("failed to open log file %s: %w", t.path, err)
	}
	defer f.Close()

	eof, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Cursor{}, fmt.Errorf("failed to seek to end of %s: %w", t.path, err)
	}

	t.log.Debugf("beginning to tail log file at offset %d", eof)
	return Cursor{Offset: eof, EOF: eof}, nil
}

// Poll performs one poll cycle: open the file, detect truncation, read
// everything past the cursor, and filter for the signature. It returns
// the signature-matched lines in file order, the number of raw lines
// consumed, and the advanced cursor.
//
// When the file is observed shorter than the cursor (truncation or
// rotation), the cursor is reset to the new end of file and a warning is
// logged. Lines written between the old cursor and the truncation are
// lost; this mirrors the probe's long-standing behavior and is accepted
// as a documented limitation rather than silently papered over.
//
// I/O errors are returned to the caller untouched: the surrounding loop
// decides whether to retry or abort. The input cursor is returned
// unchanged on error.
func (t *Tailer) Poll(cur Cursor) ([]string, int, Cursor, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, 0, cur, fmt.Errorf("failed to open log file %s: %w", t.path, err)
	}
	defer f.Close()

	eof, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, cur, fmt.Errorf("failed to seek to end of %s: %w", t.path, err)
	}

	if eof < cur.Offset {
		t.log.Warnf("log file got shorter (eof %d < cursor %d), resetting cursor", eof, cur.Offset)
		metrics.Truncations.WithLabelValues(t.monitor).Inc()
		cur.Offset = eof
	}

	if _, err := f.Seek(cur.Offset, io.SeekStart); err != nil {
		return nil, 0, cur, fmt.Errorf("failed to seek to offset %d in %s: %w", cur.Offset, t.path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, cur, fmt.Errorf("failed to read %s: %w", t.path, err)
	}

	next := Cursor{Offset: cur.Offset + int64(len(data)), EOF: eof}

	if len(data) == 0 {
		t.log.Debug("no new lines acquired from log file")
		return nil, 0, next, nil
	}

	raw := splitLines(string(data))
	t.log.Debugf("acquired %d new line(s) from log file", len(raw))
	metrics.LinesAcquired.WithLabelValues(t.monitor).Add(float64(len(raw)))

	var matched []string
	for _, line := range raw {
		if strings.Contains(line, t.sigName) {
			t.log.Debugf("log contains target signature %s: %s", t.sigName, line)
			metrics.SignatureMatches.WithLabelValues(t.monitor).Inc()
			matched = append(matched, line)
		}
	}

	return matched, len(raw), next, nil
}

// Run is the tailing loop: initialize the cursor at the current end of
// file, then poll forever, sleeping for the configured interval whenever
// a cycle consumed nothing. Matched lines are handed to emit in file
// order; emit returning false stops the loop (the monitor is shutting
// down). Fatal I/O errors from Init or Poll are propagated to the caller.
func (t *Tailer) Run(ctx context.Context, emit func(line string) bool) error {
	cur, err := t.Init()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		matched, raw, next, err := t.Poll(cur)
		if err != nil {
			return err
		}
		cur = next

		for _, line := range matched {
			if !emit(line) {
				return nil
			}
		}

		if raw == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.interval):
			}
		}
	}
}

// splitLines splits raw file content into whitespace-trimmed lines,
// dropping empties. A final partial line (no trailing newline) is
// consumed like any other: the cursor has already advanced past it.
func splitLines(data string) []string {
	parts := strings.Split(data, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
