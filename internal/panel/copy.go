package panel

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/prompt"
	"github.com/hpungsan/brain/internal/record"
)

// Assemble builds the prompt from the current list and input draft.
// An empty template means none.
func (c *Controller) Assemble(template string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return prompt.Assemble(c.records, c.input, template)
}

// Copy writes the assembled prompt to the clipboard. It does nothing and
// reports false when the prompt is blank.
func (c *Controller) Copy(ctx context.Context) (bool, error) {
	return c.deliver(ctx, c.Assemble(""), StatusCopied)
}

// RunSkill assembles with the skill's body as the template and writes the
// result to the clipboard.
func (c *Controller) RunSkill(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	i := record.Find(c.records, id)
	var skill record.Record
	if i >= 0 {
		skill = c.records[i]
	}
	c.mu.Unlock()

	if i < 0 {
		return false, errors.NewNotFound(id)
	}
	if skill.Kind != record.KindSkill {
		return false, errors.NewInvalidRequest("record is not a skill: " + id)
	}
	return c.deliver(ctx, c.Assemble(skill.Body), StatusSkillApplied)
}

func (c *Controller) deliver(ctx context.Context, text, status string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	if err := c.clip.WriteText(ctx, text); err != nil {
		c.logger.Warn("clipboard write failed", zap.Error(err))
		return false, errors.NewInternal(err)
	}
	c.setStatus(status)
	return true, nil
}

// setStatus shows status until the feedback delay passes or another
// status replaces it.
func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusSeq++
	seq := c.statusSeq
	c.status = status
	c.touch()

	if c.statusTimer != nil {
		c.statusTimer.Stop()
	}
	c.statusTimer = time.AfterFunc(c.feedback, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.statusSeq != seq {
			return
		}
		c.status = ""
		c.statusTimer = nil
		c.touch()
	})
}
