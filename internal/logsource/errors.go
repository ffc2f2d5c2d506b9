package logsource

import "errors"

var (
	// ErrSourceUnavailable means the external tool binary is missing or the
	// call timed out. Callers may fall back to the alternate adapter.
	ErrSourceUnavailable = errors.New("log source unavailable")

	// ErrPermissionDenied means the tool ran but exited nonzero, which for
	// kernel log readers almost always indicates missing privileges.
	ErrPermissionDenied = errors.New("permission denied reading kernel log")
)
