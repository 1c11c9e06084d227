package record

import (
	"encoding/json"
	"math"
)

// Normalize converts raw stored entries into fully populated records.
// It never fails: entries that are not JSON objects are treated as empty
// objects and every missing or mistyped field is defaulted.
//
//   - id: kept if a non-empty string, else a new ULID (also for duplicates)
//   - type: kept if a known kind, else "context"
//   - title: kept if a non-empty string, else DefaultRuleTitle for rules, "" otherwise
//   - content: kept if a string, else ""
//   - isActive / isPinned: kept if a bool (false included), else true / false
//   - createdAt: kept if a positive number (truncated), else now
//
// Unknown fields are dropped.
func Normalize(raw []json.RawMessage) []Record {
	records, _ := NormalizeGenerated(raw)
	return records
}

// NormalizeGenerated is Normalize that also reports whether an id or a
// createdAt was generated. Generated values differ on every call, so a
// list for which it returns true must be saved back before its ids are
// handed out.
func NormalizeGenerated(raw []json.RawMessage) ([]Record, bool) {
	records := make([]Record, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	generated := false

	for _, entry := range raw {
		r, gen := normalizeOne(entry)
		if seen[r.ID] {
			r.ID = NewID()
			gen = true
		}
		seen[r.ID] = true
		generated = generated || gen
		records = append(records, r)
	}
	return records, generated
}

func normalizeOne(entry json.RawMessage) (Record, bool) {
	var m map[string]any
	if err := json.Unmarshal(entry, &m); err != nil || m == nil {
		m = map[string]any{}
	}

	r := Record{}
	generated := false

	if id, ok := m["id"].(string); ok && id != "" {
		r.ID = id
	} else {
		r.ID = NewID()
		generated = true
	}

	r.Kind = KindContext
	if s, ok := m["type"].(string); ok {
		if k, ok := ParseKind(s); ok {
			r.Kind = k
		}
	}

	if title, ok := m["title"].(string); ok && title != "" {
		r.Title = title
	} else if r.Kind == KindRule {
		r.Title = DefaultRuleTitle
	}

	if body, ok := m["content"].(string); ok {
		r.Body = body
	}

	r.Active = boolOr(m["isActive"], true)
	r.Pinned = boolOr(m["isPinned"], false)

	if n, ok := m["createdAt"].(float64); ok && n >= 1 && !math.IsInf(n, 0) && n < math.MaxInt64 {
		r.CreatedAt = int64(n)
	} else {
		r.CreatedAt = nowMillis()
		generated = true
	}

	return r, generated
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Encode converts records back into raw entries for the store.
func Encode(records []Record) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return raw, nil
}
