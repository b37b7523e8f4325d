package server

import (
	"fmt"
	"math"
	"time"
)

const (
	gib = 1 << 30
	mib = 1 << 20
)

// formatUptime renders d as H:MM:SS, prefixed with the day count once d
// reaches a day. Fractions of a second are dropped.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	total %= 86400
	clock := fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toGiB(b uint64) float64 {
	return round2(float64(b) / gib)
}

func toMiB(b uint64) float64 {
	return round2(float64(b) / mib)
}
