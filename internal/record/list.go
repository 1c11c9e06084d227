package record

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// SortForDisplay returns a copy of records ordered pinned first,
// then by CreatedAt descending. Ties keep their stored order.
func SortForDisplay(records []Record) []Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		}
		return 0
	})
	return sorted
}

// FilterKind returns the records of the given kind in stored order.
func FilterKind(records []Record, kind Kind) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the index of the record with id, or -1.
func Find(records []Record, id string) int {
	return slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
}

// Without returns a copy of records with id removed.
func Without(records []Record, id string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// EstimateTokens estimates token count using a word-based heuristic (1.3x words).
func EstimateTokens(text string) int {
	words := strings.Fields(strings.TrimSpace(text))
	return int(math.Ceil(float64(len(words)) * 1.3))
}
