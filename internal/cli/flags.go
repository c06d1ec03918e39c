package cli

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// parseTimeFlag accepts RFC3339 or a bare date (midnight UTC). Empty input
// yields nil.
func parseTimeFlag(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value %q: want RFC3339 or YYYY-MM-DD", name, raw)
	}
	return &ts, nil
}
