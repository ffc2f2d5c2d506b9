package model

import "strings"

// Severity is a normalized kernel log level. The eight values mirror the
// kernel's printk levels, highest urgency first.
type Severity string

const (
	SeverityEmerg  Severity = "EMERG"
	SeverityAlert  Severity = "ALERT"
	SeverityCrit   Severity = "CRIT"
	SeverityErr    Severity = "ERR"
	SeverityWarn   Severity = "WARN"
	SeverityNotice Severity = "NOTICE"
	SeverityInfo   Severity = "INFO"
	SeverityDebug  Severity = "DEBUG"
)

// Severities lists all levels in priority order (highest urgency first).
var Severities = []Severity{
	SeverityEmerg, SeverityAlert, SeverityCrit, SeverityErr,
	SeverityWarn, SeverityNotice, SeverityInfo, SeverityDebug,
}

var severityByPriority = map[int]Severity{
	0: SeverityEmerg,
	1: SeverityAlert,
	2: SeverityCrit,
	3: SeverityErr,
	4: SeverityWarn,
	5: SeverityNotice,
	6: SeverityInfo,
	7: SeverityDebug,
}

// SeverityFromPriority maps a kernel printk priority digit (0-7) to a Severity.
func SeverityFromPriority(p int) (Severity, bool) {
	s, ok := severityByPriority[p]
	return s, ok
}

// Valid reports whether s is one of the eight normalized levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityEmerg, SeverityAlert, SeverityCrit, SeverityErr,
		SeverityWarn, SeverityNotice, SeverityInfo, SeverityDebug:
		return true
	}
	return false
}

// NormalizeSeverity converts common level spellings to the canonical short
// forms. Unknown input falls back to INFO so events never carry a free-form
// severity string.
func NormalizeSeverity(raw string) Severity {
	normalized := strings.ToUpper(strings.TrimSpace(raw))

	switch normalized {
	case "EMERG", "EMERGENCY", "PANIC":
		return SeverityEmerg
	case "ALERT":
		return SeverityAlert
	case "CRIT", "CRITICAL":
		return SeverityCrit
	case "ERR", "ERROR":
		return SeverityErr
	case "WARN", "WARNING":
		return SeverityWarn
	case "NOTICE", "NOTE":
		return SeverityNotice
	case "INFO", "INFORMATION":
		return SeverityInfo
	case "DEBUG":
		return SeverityDebug
	default:
		return SeverityInfo
	}
}
