package zeek

import (
	"errors"
	"strings"
	"testing"

	"github.com/supporttools/probe-doctor/pkg/types"
)

func testTemplate() *types.EventTemplate {
	return types.NewEventTemplate("zeek-test", map[string]string{"protocol": "tcp"})
}

func TestParserMatch(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *ParsedFields
		wantErr bool
	}{
		{
			name: "well formed line",
			line: "1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 51000",
			want: &ParsedFields{
				TS:      "1700000000.5",
				SrcAddr: "10.0.0.1",
				SrcPort: "443",
				DstAddr: "10.0.0.2",
				DstPort: "51000",
			},
		},
		{
			name: "trailing content ignored",
			line: "1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 51000 - tcp extra trailing junk",
			want: &ParsedFields{
				TS:      "1700000000.5",
				SrcAddr: "10.0.0.1",
				SrcPort: "443",
				DstAddr: "10.0.0.2",
				DstPort: "51000",
			},
		},
		{
			name: "ipv6 addresses",
			line: "1700000000.0 ampt-probe 2001:db8::1 443 2001:db8::2 51000",
			want: &ParsedFields{
				TS:      "1700000000.0",
				SrcAddr: "2001:db8::1",
				SrcPort: "443",
				DstAddr: "2001:db8::2",
				DstPort: "51000",
			},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "garbage",
			line:    "this is not a signature log line",
			wantErr: true,
		},
		{
			name:    "integer timestamp without fraction",
			line:    "1700000000 ampt-probe 10.0.0.1 443 10.0.0.2 51000",
			wantErr: true,
		},
		{
			name:    "missing destination port",
			line:    "1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2",
			wantErr: true,
		},
		{
			name:    "six digit source port",
			line:    "1700000000.5 ampt-probe 10.0.0.1 123456 10.0.0.2 80",
			wantErr: true,
		},
		{
			name:    "non numeric port",
			line:    "1700000000.5 ampt-probe 10.0.0.1 https 10.0.0.2 80",
			wantErr: true,
		},
	}

	parser := NewParser(testTemplate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Match(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrNoMatch) {
					t.Fatalf("expected ErrNoMatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParserParse(t *testing.T) {
	parser := NewParser(testTemplate())

	event, err := parser.Parse("1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 51000 extra")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if event.AlertTime != "2023-11-14T22:13:20" {
		t.Errorf("expected alert_time 2023-11-14T22:13:20, got %q", event.AlertTime)
	}
	if event.SrcAddr != "10.0.0.1" || event.SrcPort != 443 {
		t.Errorf("unexpected source: %s:%d", event.SrcAddr, event.SrcPort)
	}
	if event.DestAddr != "10.0.0.2" || event.DestPort != 51000 {
		t.Errorf("unexpected destination: %s:%d", event.DestAddr, event.DestPort)
	}
	if event.Monitor != "zeek-test" {
		t.Errorf("expected monitor name zeek-test, got %q", event.Monitor)
	}
	if event.Fields["protocol"] != "tcp" {
		t.Errorf("expected protocol default tcp, got %q", event.Fields["protocol"])
	}
}

func TestParserParsePortRange(t *testing.T) {
	parser := NewParser(testTemplate())

	tests := []struct {
		name string
		line string
	}{
		{"source port zero", "1700000000.5 ampt-probe 10.0.0.1 0 10.0.0.2 51000"},
		{"destination port zero", "1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 0"},
		{"source port above range", "1700000000.5 ampt-probe 10.0.0.1 65536 10.0.0.2 51000"},
		{"destination port above range", "1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 99999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.line); err == nil {
				t.Error("expected out-of-range port to be rejected")
			}
		})
	}
}

func TestParserEventsDoNotShareFields(t *testing.T) {
	parser := NewParser(testTemplate())

	first, err := parser.Parse("1700000000.1 ampt-probe 10.0.0.1 443 10.0.0.2 51000")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	second, err := parser.Parse("1700000000.2 ampt-probe 10.0.0.1 443 10.0.0.2 51001")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	first.Fields["protocol"] = "udp"
	if second.Fields["protocol"] != "tcp" {
		t.Error("mutating one event's fields leaked into another event")
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		ts      string
		want    string
		wantErr bool
	}{
		{"on the second", "1700000000.0", "2023-11-14T22:13:20", false},
		{"fraction truncated", "1700000000.5", "2023-11-14T22:13:20", false},
		{"fraction near next second", "1700000000.999999", "2023-11-14T22:13:20", false},
		{"epoch", "0.0", "1970-01-01T00:00:00", false},
		{"not a number", "abc.def", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeTimestamp(tt.ts)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeTimestamp failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"443", 443, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"65536", 0, true},
		{"-1", 0, true},
		{"http", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parsePort(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected %q to be rejected", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePort(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseErrorsNameTheField(t *testing.T) {
	parser := NewParser(testTemplate())

	_, err := parser.Parse("1700000000.5 ampt-probe 10.0.0.1 0 10.0.0.2 51000")
	if err == nil || !strings.Contains(err.Error(), "source port") {
		t.Errorf("expected error naming the source port, got %v", err)
	}

	_, err = parser.Parse("1700000000.5 ampt-probe 10.0.0.1 443 10.0.0.2 0")
	if err == nil || !strings.Contains(err.Error(), "destination port") {
		t.Errorf("expected error naming the destination port, got %v", err)
	}
}
