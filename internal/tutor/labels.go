package tutor

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingLabel matches an explicit option label like "A." or "B)" at the
// start of the option text.
var leadingLabel = regexp.MustCompile(`^\s*([A-Za-z])[\.\)]\s+`)

// OptionLabel returns the logical label of the option at the given position.
// A leading label parsed from the option text wins; otherwise the label is
// positional ("A" for index 0, "B" for index 1, and so on).
func OptionLabel(option string, index int) string {
	if m := leadingLabel.FindStringSubmatch(option); m != nil {
		return strings.ToUpper(m[1])
	}
	return PositionLabel(index)
}

// PositionLabel returns the positional letter for an option index.
func PositionLabel(index int) string {
	return string(rune('A' + index))
}

// NormalizeCorrectAnswer maps a model-reported correct answer onto one of
// the option labels. The model may return a bare letter, a full option
// string, or a numeric index. An empty return means no option matched.
func NormalizeCorrectAnswer(raw string, options []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = OptionLabel(opt, i)
	}

	// Bare letter.
	if len(raw) == 1 {
		upper := strings.ToUpper(raw)
		for _, l := range labels {
			if l == upper {
				return l
			}
		}
	}

	// Numeric index.
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < len(options) {
		return labels[n]
	}

	// Full or prefixed option text.
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), raw) {
			return labels[i]
		}
	}
	if m := leadingLabel.FindStringSubmatch(raw); m != nil {
		upper := strings.ToUpper(m[1])
		for _, l := range labels {
			if l == upper {
				return l
			}
		}
	}

	return ""
}
