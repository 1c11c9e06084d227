package record

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the category of a record.
type Kind string

const (
	KindContext Kind = "context"
	KindRule    Kind = "rule"
	KindSkill   Kind = "skill"
)

// Kinds lists every kind in tab order.
var Kinds = []Kind{KindContext, KindRule, KindSkill}

// DefaultRuleTitle is the title given to a rule stored without one.
const DefaultRuleTitle = "New rule"

// DefaultSkillTitle is the title a newly added skill starts with.
const DefaultSkillTitle = "New skill"

// DefaultCaptureTitle is the title used by menu capture when the source page has none.
const DefaultCaptureTitle = "Web Selection"

// ParseKind returns the Kind named by s (case-insensitive, trimmed).
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindContext:
		return KindContext, true
	case KindRule:
		return KindRule, true
	case KindSkill:
		return KindSkill, true
	}
	return "", false
}

// Record is a single context, rule, or skill.
// JSON field names match the persisted list format.
type Record struct {
	// ID is a ULID assigned at creation; never changes
	ID string `json:"id"`

	// Kind is persisted as "type" for compatibility with stored lists
	Kind Kind `json:"type"`

	// Title is an optional label; empty for captured contexts
	Title string `json:"title"`

	// Body is the record text, persisted as "content"
	Body string `json:"content"`

	// Active controls inclusion in assembly (ignored for skills)
	Active bool `json:"isActive"`

	// Pinned only affects display ordering
	Pinned bool `json:"isPinned"`

	// CreatedAt is epoch milliseconds
	CreatedAt int64 `json:"createdAt"`
}

// IsBlank reports whether the record has neither body nor title.
func (r Record) IsBlank() bool {
	return r.Body == "" && r.Title == ""
}

// New builds a record with the same defaults Normalize would assign:
// active, unpinned, fresh id, created now.
func New(kind Kind, title, body string) Record {
	if _, ok := ParseKind(string(kind)); !ok {
		kind = KindContext
	}
	return Record{
		ID:        NewID(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		Active:    true,
		Pinned:    false,
		CreatedAt: nowMillis(),
	}
}

// DefaultTitle is the title a record of kind starts with when added from the panel.
func DefaultTitle(kind Kind) string {
	switch kind {
	case KindRule:
		return DefaultRuleTitle
	case KindSkill:
		return DefaultSkillTitle
	}
	return ""
}

// NewContext builds a context record for a capture producer.
func NewContext(title, body string) Record {
	return New(KindContext, title, body)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID string.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

func nowMillis() int64 {
	return nowFunc().UnixMilli()
}
