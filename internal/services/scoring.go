package services

import (
	"fmt"
	"time"
)

// RoundPercent returns 100*correct/total rounded half up, or 0 when total
// is not positive.
func RoundPercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	if correct < 0 {
		correct = 0
	}
	return (200*correct + total) / (2 * total)
}

// ElapsedSeconds is the whole number of seconds between start and end,
// truncated from milliseconds. A clock running backwards yields 0.
func ElapsedSeconds(start, end time.Time) int {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return int(ms / 1000)
}

// FormatDuration renders seconds the way history rows show them.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d min %d sec", seconds/60, seconds%60)
}
