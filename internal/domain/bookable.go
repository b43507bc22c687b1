package domain

import (
	"sort"
	"time"
)

// IsBookable reports whether at least one day in [start, end] is open on the
// weekly schedule and not blocked. An empty start means no date filter and is
// always bookable. An empty or malformed end defaults to start.
func IsBookable(meta *AvailabilityMeta, start, end string) bool {
	if start == "" {
		return true
	}
	if meta == nil {
		return false
	}

	from, ok := ParseISODate(start)
	if !ok {
		return false
	}
	to, ok := ParseISODate(end)
	if !ok {
		to = from
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		iso := day.Format(isoDateLayout)
		if meta.IsDayBlocked(iso) {
			continue
		}
		if meta.dayOpen(day.Weekday()) {
			return true
		}
	}
	return false
}

// IsDayBlocked reports whether iso equals a blocked date or falls inside a
// blocked range. Range bounds are inclusive and compared as ISO strings.
func (m *AvailabilityMeta) IsDayBlocked(iso string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.BlockedDates[iso]; ok {
		return true
	}
	for _, r := range m.BlockedRanges {
		if iso >= r.Start && iso <= r.End {
			return true
		}
	}
	return false
}

// WindowsOn returns the open windows for the weekday of iso, or nil when the
// day is blocked, inactive or not a valid date.
func (m *AvailabilityMeta) WindowsOn(iso string) []TimeWindow {
	if m == nil {
		return nil
	}
	day, ok := ParseISODate(iso)
	if !ok || m.IsDayBlocked(iso) {
		return nil
	}
	schedule := m.Weekly[WeekdayKeys[day.Weekday()]]
	if !schedule.Active || len(schedule.Slots) == 0 {
		return nil
	}
	return schedule.Slots
}

func (m *AvailabilityMeta) dayOpen(wd time.Weekday) bool {
	schedule := m.Weekly[WeekdayKeys[wd]]
	return schedule.Active && len(schedule.Slots) > 0
}

// WeekdayKey returns the weekly schedule key for an ISO date.
func WeekdayKey(iso string) (string, bool) {
	day, ok := ParseISODate(iso)
	if !ok {
		return "", false
	}
	return WeekdayKeys[day.Weekday()], true
}

// ParseISODate parses a YYYY-MM-DD civil date at midnight UTC.
func ParseISODate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatISODate formats t as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return t.Format(isoDateLayout)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
