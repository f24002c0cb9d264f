package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	maxDays    = 60
	maxMinutes = 1440
)

// ParseDays reads an optional day count from command arguments. Empty
// arguments yield def.
func ParseDays(args string, def int) (int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > maxDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxDays)
	}
	return n, nil
}

// ParseMinutes reads the mandatory minute count of /dns_off.
func ParseMinutes(args string) (time.Duration, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("minutes are required")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > maxMinutes {
		return 0, fmt.Errorf("minutes must be between 1 and %d", maxMinutes)
	}
	return time.Duration(n) * time.Minute, nil
}
