package zeek

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// sigLogPattern extracts the structured fields from a Zeek signature log
// line: a fractional epoch timestamp at line start, one ignored token
// (the rule ID), then source address, source port, destination address
// and destination port, all whitespace-separated. Trailing content is
// ignored.
var sigLogPattern = regexp.MustCompile(
	`^(?P<ts>\d+\.\d+)\s+\S+\s+(?P<src_addr>\S+)\s+(?P<src_port>\d{1,5})\s+(?P<dst_addr>\S+)\s+(?P<dst_port>\d{1,5})`)

// alertTimeLayout is ISO-8601 with second precision. Fractional seconds
// are truncated, not rounded; consumers expect the same instants the
// probe has always reported.
const alertTimeLayout = "2006-01-02T15:04:05"

// ErrNoMatch is returned when a line does not have the signature log shape.
var ErrNoMatch = errors.New("line does not match signature log format")

// ParsedFields is the transient result of the pattern match, all fields
// still in textual form. Numeric coercion happens in a separate step so
// the two failure modes stay independently testable.
type ParsedFields struct {
	TS      string
	SrcAddr string
	SrcPort string
	DstAddr string
	DstPort string
}

// Parser converts raw signature log lines into normalized events,
// merging the monitor's default fields into each one.
type Parser struct {
	template *types.EventTemplate
}

// NewParser creates a parser that stamps events from the given template.
func NewParser(template *types.EventTemplate) *Parser {
	return &Parser{template: template}
}

// Match applies the extraction pattern to one line. Returns ErrNoMatch
// when the line does not have the expected shape.
func (p *Parser) Match(line string) (*ParsedFields, error) {
	m := sigLogPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, ErrNoMatch
	}

	fields := &ParsedFields{}
	for i, name := range sigLogPattern.SubexpNames() {
		switch name {
		case "ts":
			fields.TS = m[i]
		case "src_addr":
			fields.SrcAddr = m[i]
		case "src_port":
			fields.SrcPort = m[i]
		case "dst_addr":
			fields.DstAddr = m[i]
		case "dst_port":
			fields.DstPort = m[i]
		}
	}
	return fields, nil
}

// Parse converts one raw line into an Event: pattern match, timestamp
// normalization, port coercion, template merge. Any failure returns an
// error describing the offending field; the caller logs it and moves on.
func (p *Parser) Parse(line string) (*types.Event, error) {
	fields, err := p.Match(line)
	if err != nil {
		return nil, err
	}

	alertTime, err := normalizeTimestamp(fields.TS)
	if err != nil {
		return nil, err
	}

	srcPort, err := parsePort(fields.SrcPort)
	if err != nil {
		return nil, fmt.Errorf("source port: %w", err)
	}
	dstPort, err := parsePort(fields.DstPort)
	if err != nil {
		return nil, fmt.Errorf("destination port: %w", err)
	}

	event := p.template.NewEvent()
	event.AlertTime = alertTime
	event.SrcAddr = fields.SrcAddr
	event.SrcPort = srcPort
	event.DestAddr = fields.DstAddr
	event.DestPort = dstPort
	return event, nil
}

// normalizeTimestamp converts a fractional epoch-seconds string into a
// UTC ISO-8601 string with second precision. The fractional part is
// discarded by truncation.
func normalizeTimestamp(ts string) (string, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return time.Unix(int64(f), 0).UTC().Format(alertTimeLayout), nil
}

// parsePort coerces a textual port to an int and range-checks it. The
// extraction pattern only bounds the digit count, so 0 and values above
// 65535 still need rejecting here.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range [1,65535]", port)
	}
	return port, nil
}
