package domain

import "time"

// WeekdayKeys maps time.Weekday to the keys used in provider documents.
var WeekdayKeys = [7]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

const isoDateLayout = "2006-01-02"

type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DaySchedule struct {
	Active bool         `json:"active"`
	Slots  []TimeWindow `json:"slots"`
}

type WeeklySchedule map[string]DaySchedule

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityMeta is the canonical view of a provider's published availability.
// It is rebuilt from the raw document on every read.
type AvailabilityMeta struct {
	Weekly        WeeklySchedule
	BlockedDates  map[string]struct{}
	BlockedRanges []DateRange
}

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NormalizeAvailabilityMeta converts an untyped availability record into an
// AvailabilityMeta. It returns nil when raw is not a record.
func NormalizeAvailabilityMeta(raw any) *AvailabilityMeta {
	rec, ok := asRecord(raw)
	if !ok {
		return nil
	}

	weeklyRaw, _ := asRecord(rec["weekly"])
	weekly := make(WeeklySchedule, len(WeekdayKeys))
	for _, key := range WeekdayKeys {
		weekly[key] = normalizeDay(weeklyRaw[key])
	}

	blockedDates := make(map[string]struct{})
	if items, ok := asList(rec["blockedDates"]); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				blockedDates[s] = struct{}{}
			}
		}
	}

	blockedRanges := make([]DateRange, 0)
	if items, ok := asList(rec["blockedRanges"]); ok {
		for _, item := range items {
			r, ok := asRecord(item)
			if !ok {
				continue
			}
			start, okStart := r["start"].(string)
			end, okEnd := r["end"].(string)
			if !okStart || !okEnd {
				continue
			}
			blockedRanges = append(blockedRanges, DateRange{Start: start, End: end})
		}
	}

	return &AvailabilityMeta{
		Weekly:        weekly,
		BlockedDates:  blockedDates,
		BlockedRanges: blockedRanges,
	}
}

func normalizeDay(raw any) DaySchedule {
	day := DaySchedule{Slots: []TimeWindow{}}
	rec, ok := asRecord(raw)
	if !ok {
		return day
	}
	items, ok := asList(rec["slots"])
	if !ok {
		return day
	}
	for _, item := range items {
		w, ok := asRecord(item)
		if !ok {
			continue
		}
		start, okStart := w["start"].(string)
		end, okEnd := w["end"].(string)
		if !okStart || !okEnd {
			continue
		}
		day.Slots = append(day.Slots, TimeWindow{Start: start, End: end})
	}
	declared, _ := rec["active"].(bool)
	day.Active = declared && len(day.Slots) > 0
	return day
}

// ToRecord renders the meta back into the document shape accepted by
// NormalizeAvailabilityMeta.
func (m *AvailabilityMeta) ToRecord() map[string]any {
	if m == nil {
		return nil
	}
	weekly := make(map[string]any, len(WeekdayKeys))
	for _, key := range WeekdayKeys {
		day := m.Weekly[key]
		slots := make([]any, 0, len(day.Slots))
		for _, w := range day.Slots {
			slots = append(slots, map[string]any{"start": w.Start, "end": w.End})
		}
		weekly[key] = map[string]any{"active": day.Active, "slots": slots}
	}

	dates := make([]any, 0, len(m.BlockedDates))
	for _, d := range sortedKeys(m.BlockedDates) {
		dates = append(dates, d)
	}

	ranges := make([]any, 0, len(m.BlockedRanges))
	for _, r := range m.BlockedRanges {
		ranges = append(ranges, map[string]any{"start": r.Start, "end": r.End})
	}

	return map[string]any{
		"weekly":        weekly,
		"blockedDates":  dates,
		"blockedRanges": ranges,
	}
}

func asRecord(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, item)
		}
		return out, true
	case []string:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, item)
		}
		return out, true
	default:
		return nil, false
	}
}
