package logparse

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// DetectBootTime computes the process-wide boot instant used to convert
// monotonic kernel timestamps to wall-clock time. It prefers the btime field
// of /proc/stat and falls back to now minus /proc/uptime. When neither file
// is readable it returns the zero time and callers default event timestamps
// to the parse instant.
func DetectBootTime() time.Time {
	if bt, ok := bootTimeFromStat("/proc/stat"); ok {
		return bt
	}
	if bt, ok := bootTimeFromUptime("/proc/uptime"); ok {
		return bt
	}
	return time.Time{}
}

func bootTimeFromStat(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "btime" {
			epoch, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return time.Time{}, false
			}
			return time.Unix(epoch, 0), true
		}
	}
	return time.Time{}, false
}

func bootTimeFromUptime(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return time.Time{}, false
	}
	uptime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Now().Add(-time.Duration(uptime * float64(time.Second))), true
}
