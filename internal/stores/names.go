package stores

import "strings"

// Names is an ordered list of display names parsed from free text.
// Order follows the source text and duplicates are kept.
type Names []string

// ParseNames splits free text on ';', ',' or newlines, trims every token and
// drops empty ones. An empty input yields an empty, non-nil list.
func ParseNames(raw string) Names {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})
	out := make(Names, 0, len(fields))
	for _, field := range fields {
		if name := strings.TrimSpace(field); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Contains reports whether name is present, compared exactly.
func (n Names) Contains(name string) bool {
	for _, candidate := range n {
		if candidate == name {
			return true
		}
	}
	return false
}

// Roster is the parsed professional and service lists of a store.
type Roster struct {
	Professionals Names `json:"professionals"`
	Services      Names `json:"services"`
}
