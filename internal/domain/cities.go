package domain

import "strings"

// NormalizeCities merges a provider's cities list with the comma separated
// tokens of its display label. Entries are trimmed and de-duplicated without
// regard to case; the first spelling wins and order is preserved.
func NormalizeCities(cities any, cityLabel any) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]struct{})
	add := func(raw string) {
		city := strings.TrimSpace(raw)
		if city == "" {
			return
		}
		key := strings.ToLower(city)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, city)
	}

	if items, ok := asList(cities); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	if label, ok := cityLabel.(string); ok {
		for _, token := range strings.Split(label, ",") {
			add(token)
		}
	}
	return out
}

func JoinCities(cities []string) string {
	return strings.Join(cities, ", ")
}

// ServesCity reports whether city matches one of cities, ignoring case and
// surrounding whitespace. An empty city matches everything.
func ServesCity(cities []string, city string) bool {
	want := strings.TrimSpace(city)
	if want == "" {
		return true
	}
	for _, c := range cities {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}
