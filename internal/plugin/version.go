package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// EngineVersion is the plugin API version plugins check against.
const EngineVersion = "1.0"

type version struct {
	major, minor int
}

// parseVersion accepts "major.minor" with optional extra segments,
// which are ignored. "1" parses as 1.0.
func parseVersion(s string) (version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || parts[0] == "" {
		return version{}, fmt.Errorf("plugin: empty version")
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return version{}, fmt.Errorf("plugin: bad version %q: %w", s, err)
	}
	v := version{major: major}
	if len(parts) > 1 {
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return version{}, fmt.Errorf("plugin: bad version %q: %w", s, err)
		}
		v.minor = minor
	}
	return v, nil
}

// versionAtLeast reports whether have satisfies want.
func versionAtLeast(have, want version) bool {
	if have.major != want.major {
		return have.major > want.major
	}
	return have.minor >= want.minor
}

// checkEngineVersion reports whether the running engine satisfies the
// plugin's declared minimum. Unparseable requirements fail closed.
func checkEngineVersion(required, available string) bool {
	if required == "" {
		return true
	}
	req, err := parseVersion(required)
	if err != nil {
		return false
	}
	avail, err := parseVersion(available)
	if err != nil {
		return false
	}
	return versionAtLeast(avail, req)
}
