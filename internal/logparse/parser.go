package logparse

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/model"
)

// Line format patterns, tried in order: the timestamped dmesg form first,
// then the timestamp-less kernel prefix form as the sole fallback.
var (
	dmesgPattern   = regexp.MustCompile(`^\[\s*([0-9.]+)\]\s+(.*)$`)
	priorityPrefix = regexp.MustCompile(`^<(\d)>(.*)$`)
	processPattern = regexp.MustCompile(`^([^\[\]:]+)\[(\d+)\]:\s*(.*)$`)
	kernelPrefix   = regexp.MustCompile(`^<(\d)>(?:([^:>\s]+)[:.\s]+)?(.*)$`)
	hexDumpPattern = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}\s+){6,}`)
	indentPattern  = regexp.MustCompile(`^[\t ]{2,}`)

	cpuPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)on CPU (\d+)`),
		regexp.MustCompile(`(?i)CPU[:#\s]+(\d+)`),
	}
)

// continuationMarkers open lines that extend the previous event: stack
// traces, register dumps and code dumps.
var continuationMarkers = []string{
	"Code:", "Backtrace", "Call Trace", "Call trace",
	"EIP", "RIP", "RSP", "\t",
}

const (
	maxSubsystemLen = 30
	maxColonIndex   = 50
)

// Parser converts raw kernel log lines into normalized events. The boot
// instant for monotonic-to-realtime conversion is supplied at construction
// rather than read from hidden process state, so two parsers with different
// boot times can coexist (useful for replaying captured logs).
type Parser struct {
	bootTime time.Time
	now      func() time.Time
}

// NewParser returns a parser using bootTime for timestamp conversion. A zero
// bootTime disables conversion and events fall back to the parse instant.
func NewParser(bootTime time.Time) *Parser {
	return &Parser{bootTime: bootTime, now: time.Now}
}

// Parse converts one raw line into an event. It returns nil for lines that
// match no known format; it never fails outward, a malformed line is logged
// and dropped.
func (p *Parser) Parse(line, source string) *model.Event {
	raw := strings.TrimRight(line, "\n")
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}

	m := dmesgPattern.FindStringSubmatch(text)
	if m == nil {
		return p.parseKernelPrefix(text, source)
	}

	var mono *float64
	if ts, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64); err == nil {
		mono = &ts
	} else {
		// A garbled timestamp loses the timestamp, not the whole line.
		log.Printf("logparse: unparsable timestamp %q in line %q", m[1], truncate(raw, 100))
	}
	rest := strings.TrimSpace(m[2])

	// Inline priority prefix: [ts] <N>message.
	var severity model.Severity
	if pm := priorityPrefix.FindStringSubmatch(rest); pm != nil {
		if level, err := strconv.Atoi(pm[1]); err == nil {
			if s, ok := model.SeverityFromPriority(level); ok {
				severity = s
			}
		}
		rest = strings.TrimSpace(pm[2])
	}

	subsystem, pid, message := splitSubsystem(rest)

	return p.build(source, raw, mono, severity, subsystem, pid, message)
}

// parseKernelPrefix handles the timestamp-less form <N>subsystem: message.
func (p *Parser) parseKernelPrefix(text, source string) *model.Event {
	m := kernelPrefix.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var severity model.Severity
	if level, err := strconv.Atoi(m[1]); err == nil {
		if s, ok := model.SeverityFromPriority(level); ok {
			severity = s
		}
	}

	return p.build(source, text, nil, severity, m[2], nil, strings.TrimSpace(m[3]))
}

// build applies the shared tail of the algorithm: severity inference,
// continuation detection, CPU extraction and timestamp conversion.
func (p *Parser) build(source, raw string, mono *float64, severity model.Severity, subsystem string, pid *int, message string) *model.Event {
	if severity == "" {
		severity = InferSeverity(message)
	}

	var annotations map[string]any
	if isContinuationLine(message) {
		annotations = map[string]any{model.AnnotationContinuation: true}
	}

	realtime := p.now()
	if mono != nil && !p.bootTime.IsZero() {
		realtime = p.bootTime.Add(time.Duration(*mono * float64(time.Second)))
	}

	if subsystem == "" {
		subsystem = model.DefaultSubsystem
	}

	return &model.Event{
		ID:          model.NewEventID(),
		Monotonic:   mono,
		Realtime:    realtime,
		Severity:    severity,
		Subsystem:   subsystem,
		Message:     message,
		Raw:         raw,
		Source:      source,
		CPU:         extractCPU(message),
		PID:         pid,
		Annotations: annotations,
	}
}

// splitSubsystem extracts subsystem and PID from the text after the
// timestamp. It tries name[pid]: message first, then a conservative
// subsystem: message split near the start of the line.
func splitSubsystem(rest string) (subsystem string, pid *int, message string) {
	if pm := processPattern.FindStringSubmatch(rest); pm != nil {
		if n, err := strconv.Atoi(pm[2]); err == nil {
			pid = &n
		}
		return pm[1], pid, pm[3]
	}

	if idx := strings.Index(rest, ":"); idx > 0 && idx < maxColonIndex {
		candidate := strings.TrimSpace(rest[:idx])
		if candidate != "" && len(candidate) < maxSubsystemLen && !strings.Contains(candidate, " ") {
			return candidate, nil, strings.TrimSpace(rest[idx+1:])
		}
	}

	return "", nil, rest
}

func isContinuationLine(message string) bool {
	if message == "" {
		return false
	}
	for _, marker := range continuationMarkers {
		if strings.HasPrefix(message, marker) {
			return true
		}
	}
	if hexDumpPattern.MatchString(message) {
		return true
	}
	return indentPattern.MatchString(message)
}

func extractCPU(message string) *int {
	if message == "" {
		return nil
	}
	for _, pattern := range cpuPatterns {
		if m := pattern.FindStringSubmatch(message); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return &n
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
