package archive

import (
	"strconv"
	"strings"
	"time"
)

func nowMicros() int64 {
	return time.Now().UnixMicro()
}

// parseTsField accepts either a JSON number (microseconds) or a string that
// is itself either an integer (microseconds) or an ISO-8601 timestamp.
func parseTsField(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UnixMicro(), true
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UnixMicro(), true
		}
		return 0, false
	default:
		return 0, false
	}
}
