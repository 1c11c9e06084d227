// Package prompt turns the active record set plus user input into the
// text that gets pasted into a chat tool.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hpungsan/brain/internal/record"
)

// Placeholder is replaced by the user input when it appears in a skill template.
const Placeholder = "{input}"

// EmptyInputMarker stands in for the user input when a template has a
// placeholder but no input was typed.
const EmptyInputMarker = "{{CONTENT}}"

// Section headers, in output order.
const (
	HeaderSystem  = "--- System ---"
	HeaderContext = "--- Context ---"
	HeaderUser    = "--- User ---"
)

// Assemble builds the prompt text from active rules, active contexts and
// the user section. Records are taken in the order given; pinning has no
// effect. Empty sections are omitted, so Assemble(nil, "", "") == "".
// An empty skillTemplate means no template.
func Assemble(records []record.Record, userInput, skillTemplate string) string {
	sections := make([]string, 0, 3)

	if rules := RulesBlock(records); rules != "" {
		sections = append(sections, HeaderSystem+"\n"+rules)
	}
	if contexts := ContextsBlock(records); contexts != "" {
		sections = append(sections, HeaderContext+"\n"+contexts)
	}
	if user := UserSection(userInput, skillTemplate); strings.TrimSpace(user) != "" {
		sections = append(sections, HeaderUser+"\n"+user)
	}

	return strings.Join(sections, "\n\n")
}

// RulesBlock renders active rules as labeled blocks joined by blank lines.
func RulesBlock(records []record.Record) string {
	blocks := make([]string, 0)
	for _, r := range records {
		if r.Kind == record.KindRule && r.Active {
			blocks = append(blocks, fmt.Sprintf("【Rule: %s】\n%s", r.Title, r.Body))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// ContextsBlock renders active contexts as numbered blocks joined by blank lines.
func ContextsBlock(records []record.Record) string {
	blocks := make([]string, 0)
	for _, r := range records {
		if r.Kind == record.KindContext && r.Active {
			blocks = append(blocks, fmt.Sprintf("【Context %d】\n%s", len(blocks)+1, r.Body))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// UserSection combines a skill template with the user input.
//   - template containing Placeholder: first occurrence replaced by the input
//     (EmptyInputMarker when the input is empty)
//   - template without Placeholder: template, blank line, input
//   - no template: input verbatim
func UserSection(userInput, skillTemplate string) string {
	if skillTemplate == "" {
		return userInput
	}
	if strings.Contains(skillTemplate, Placeholder) {
		fill := userInput
		if fill == "" {
			fill = EmptyInputMarker
		}
		return strings.Replace(skillTemplate, Placeholder, fill, 1)
	}
	return skillTemplate + "\n\n" + userInput
}
