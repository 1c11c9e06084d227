package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/prompt"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// AssembleInput contains parameters for the Assemble operation.
type AssembleInput struct {
	Input    string // user input
	SkillID  string // optional: use this skill's body as the template
	Template string // optional: explicit template; exclusive with SkillID
}

// AssembleOutput contains the result of the Assemble operation.
type AssembleOutput struct {
	Text           string `json:"text"`
	Chars          int    `json:"chars"`
	TokensEstimate int    `json:"tokens_estimate"`
	Rules          int    `json:"rules"`
	Contexts       int    `json:"contexts"`
}

// Assemble builds the prompt from the persisted list.
func Assemble(ctx context.Context, st store.Store, input AssembleInput) (*AssembleOutput, error) {
	if input.SkillID != "" && input.Template != "" {
		return nil, errors.NewInvalidRequest("skill and template are mutually exclusive")
	}

	records, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}

	template := input.Template
	if input.SkillID != "" {
		i := record.Find(records, strings.TrimSpace(input.SkillID))
		if i < 0 {
			return nil, errors.NewNotFound(input.SkillID)
		}
		if records[i].Kind != record.KindSkill {
			return nil, errors.NewInvalidRequest("record is not a skill: " + input.SkillID)
		}
		template = records[i].Body
	}

	text := prompt.Assemble(records, input.Input, template)
	out := &AssembleOutput{
		Text:           text,
		Chars:          record.CountChars(text),
		TokensEstimate: record.EstimateTokens(text),
	}
	for _, r := range records {
		if !r.Active {
			continue
		}
		switch r.Kind {
		case record.KindRule:
			out.Rules++
		case record.KindContext:
			out.Contexts++
		}
	}
	return out, nil
}
