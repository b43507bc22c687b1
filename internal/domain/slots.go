package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultStepMinutes = 30
	MinStepMinutes     = 5
)

// GenerateSlots enumerates duration-sized slots inside each window, stepping
// by stepMinutes, and drops candidates that overlap a reservation. Windows are
// handled independently, so overlapping windows may yield duplicate slots.
// A zero step uses DefaultStepMinutes; smaller steps are raised to MinStepMinutes.
func GenerateSlots(windows []TimeWindow, durationMinutes int, reservations []TimeSlot, stepMinutes int) []TimeSlot {
	out := make([]TimeSlot, 0, 16)
	if len(windows) == 0 || durationMinutes <= 0 {
		return out
	}

	step := stepMinutes
	if step == 0 {
		step = DefaultStepMinutes
	}
	if step < MinStepMinutes {
		step = MinStepMinutes
	}

	busy := make([]minuteSpan, 0, len(reservations))
	for _, r := range reservations {
		busy = append(busy, minuteSpan{start: ParseClock(r.Start), end: ParseClock(r.End)})
	}

	for _, w := range windows {
		start := ParseClock(w.Start)
		end := ParseClock(w.End)
		if end-start < durationMinutes {
			continue
		}

		for cursor := start; cursor+durationMinutes <= end; cursor += step {
			candidate := minuteSpan{start: cursor, end: cursor + durationMinutes}
			if candidate.overlapsAny(busy) {
				continue
			}
			out = append(out, TimeSlot{
				Start: FormatClock(candidate.start),
				End:   FormatClock(candidate.end),
			})
		}
	}

	return out
}

// Overlaps reports whether two slots share any time. Touching slots do not overlap.
func Overlaps(a, b TimeSlot) bool {
	return minuteSpan{start: ParseClock(a.Start), end: ParseClock(a.End)}.
		overlaps(minuteSpan{start: ParseClock(b.Start), end: ParseClock(b.End)})
}

// FitsWindow reports whether slot lies entirely inside one of windows.
func FitsWindow(windows []TimeWindow, slot TimeSlot) bool {
	start := ParseClock(slot.Start)
	end := ParseClock(slot.End)
	if end <= start {
		return false
	}
	for _, w := range windows {
		if start >= ParseClock(w.Start) && end <= ParseClock(w.End) {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" into minutes since midnight. Components that are
// not integers count as zero and the result is never negative.
func ParseClock(s string) int {
	parts := strings.Split(s, ":")
	hours := clockComponent(parts, 0)
	minutes := clockComponent(parts, 1)
	total := hours*60 + minutes
	if total < 0 {
		return 0
	}
	return total
}

func clockComponent(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

type minuteSpan struct {
	start int
	end   int
}

func (s minuteSpan) overlaps(o minuteSpan) bool {
	return s.start < o.end && s.end > o.start
}

func (s minuteSpan) overlapsAny(spans []minuteSpan) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}
