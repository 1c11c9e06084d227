package panel

import "strings"

// affordanceOffset lifts the button above the selection.
const affordanceOffset = 50

// Selection is a text selection inside the panel, with its bounding box.
type Selection struct {
	Text   string
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// ShowAffordance places the quick-add button over sel. Nothing changes
// for an empty selection, a zero-width box, or while an edit session is open.
// It reports whether the affordance is now showing sel.
func (c *Controller) ShowAffordance(sel Selection) bool {
	text := strings.TrimSpace(sel.Text)
	if text == "" || sel.Width <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		return false
	}
	c.affordance = Affordance{
		Visible: true,
		X:       sel.Left + sel.Width/2,
		Y:       sel.Top - affordanceOffset,
		Text:    text,
	}
	c.touch()
	return true
}

// HideAffordance hides the button, as on a click outside it.
func (c *Controller) HideAffordance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.affordance.Visible {
		return
	}
	c.affordance.Visible = false
	c.touch()
}
