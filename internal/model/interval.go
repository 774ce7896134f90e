package model

import (
	"fmt"
	"strings"
)

// Interval identifies a bar timeframe using the store's encoding.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
)

// ParseInterval normalizes the timeframe names accepted on the command
// line into a store encoding.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "m", "min", "minute":
		return IntervalMinute, nil
	case "1h", "h", "hour", "hourly":
		return IntervalHour, nil
	case "1d", "d", "day", "daily":
		return IntervalDaily, nil
	}
	return "", fmt.Errorf("%w: unsupported interval %q", ErrConfiguration, s)
}

func (i Interval) String() string {
	return string(i)
}
