package domain

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxGroupedPrice bounds the integer part passed to the localized printer.
const maxGroupedPrice = 1e15

// ParsePrice extracts a number from a free-form price label such as
// "à partir de 1 200,50 €". Everything except digits, '.', ',' and '-' is
// dropped, the first ',' becomes the decimal point and the longest numeric
// prefix is parsed.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)

	prefix := numericPrefix(cleaned)
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// numericPrefix returns the longest leading "-?digits(.digits)?" run that
// contains at least one digit.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	end := i
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			frac++
		}
		if frac > 0 {
			end = i
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	prefix := s[:end]
	if strings.HasPrefix(prefix, "-.") || strings.HasPrefix(prefix, ".") {
		prefix = strings.Replace(prefix, ".", "0.", 1)
	}
	return prefix
}

// FormatPrice renders v for display in French, e.g. "1 234,5 €".
func FormatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	plain := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(plain, ".")

	grouped := intPart
	if v < maxGroupedPrice {
		if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
			grouped = message.NewPrinter(language.French).Sprintf("%d", n)
		}
	}

	out := sign + grouped
	if fracPart != "" {
		out += "," + fracPart
	}
	return out + " €"
}

// MinServicePrice returns the lowest priceFrom among services. When no
// service carries a usable price it falls back to parsing displayPrice.
func MinServicePrice(services any, displayPrice any) (float64, bool) {
	best := 0.0
	found := false
	if items, ok := asList(services); ok {
		for _, item := range items {
			svc, ok := asRecord(item)
			if !ok {
				continue
			}
			p, ok := priceValue(svc["priceFrom"])
			if !ok {
				continue
			}
			if !found || p < best {
				best = p
				found = true
			}
		}
	}
	if found {
		return best, true
	}
	return priceValue(displayPrice)
}

func priceValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return priceValue(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case string:
		return ParsePrice(t)
	default:
		return 0, false
	}
}
