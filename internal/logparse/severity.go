package logparse

import (
	"strings"

	"github.com/tinytelemetry/ringbuffer/internal/model"
)

// severityKeywords is the inference ladder applied when a line carries no
// explicit priority digit. Evaluated top-down, first match wins, so a message
// containing both "panic" and "warning" classifies as EMERG.
var severityKeywords = []struct {
	severity model.Severity
	keywords []string
}{
	{model.SeverityEmerg, []string{"panic", "oops", "fatal", "emergency", "crash", "bug:"}},
	{model.SeverityAlert, []string{"alert", "failure", "critical", "corruption"}},
	{model.SeverityErr, []string{"error", "err", "failed", "segfault", "fault", "invalid", "unable", "cannot", "timeout"}},
	{model.SeverityWarn, []string{"warning", "warn", "deprecated", "attention"}},
	{model.SeverityNotice, []string{"notice", "note", "fyi"}},
	{model.SeverityDebug, []string{"debug", "trace", "verbose", "dump"}},
}

// InferSeverity classifies a message by keyword. Messages matching nothing
// default to INFO.
func InferSeverity(message string) model.Severity {
	if message == "" {
		return model.SeverityInfo
	}

	lower := strings.ToLower(message)
	for _, rung := range severityKeywords {
		for _, kw := range rung.keywords {
			if strings.Contains(lower, kw) {
				return rung.severity
			}
		}
	}
	return model.SeverityInfo
}
