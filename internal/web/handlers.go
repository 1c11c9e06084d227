package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/ops"
	"github.com/hpungsan/brain/internal/panel"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// maxCaptureBytes bounds an in-page capture request body.
const maxCaptureBytes = 1 << 20

// Handlers contains HTTP route handlers for the panel UI.
type Handlers struct {
	ctrl     *panel.Controller
	st       store.Store
	notifier bus.Notifier
	logger   *zap.Logger
	renderer *Renderer
}

// HandlePanel handles GET /panel: render the whole panel.
func (h *Handlers) HandlePanel(w http.ResponseWriter, r *http.Request) {
	h.renderPanel(w, r)
}

// HandlePoll handles GET /panel/poll?v=N. It answers 204 while the state
// version is still N, and the content block once it changed.
func (h *Handlers) HandlePoll(w http.ResponseWriter, r *http.Request) {
	since, err := strconv.ParseUint(r.URL.Query().Get("v"), 10, 64)
	if err == nil && since == h.ctrl.Version() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.Header.Set("HX-Request", "true")
	h.renderPanel(w, r)
}

// HandleSelectKind handles POST /panel/kind: switch tabs.
func (h *Handlers) HandleSelectKind(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(context.Context) error {
		return h.ctrl.SelectKind(formKind(r))
	})
}

// HandleInput handles POST /panel/input: store the input draft.
func (h *Handlers) HandleInput(w http.ResponseWriter, r *http.Request) {
	h.ctrl.SetInput(r.PostFormValue("input"))
	if isPartial(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectToPanel(w, r)
}

// HandleAdd handles POST /records: add an empty record and open it.
func (h *Handlers) HandleAdd(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		kind := formKind(r)
		if kind == "" {
			kind = h.ctrl.Snapshot().Kind
		}
		_, err := h.ctrl.Add(ctx, kind)
		return err
	})
}

// HandleToggle handles POST /records/{id}/toggle.
func (h *Handlers) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		return h.ctrl.ToggleActive(ctx, r.PathValue("id"))
	})
}

// HandlePin handles POST /records/{id}/pin.
func (h *Handlers) HandlePin(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		return h.ctrl.TogglePinned(ctx, r.PathValue("id"))
	})
}

// HandleDelete handles POST /records/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		return h.ctrl.Remove(ctx, r.PathValue("id"))
	})
}

// HandleBeginEdit handles POST /records/{id}/edit: open the editor.
func (h *Handlers) HandleBeginEdit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		return h.ctrl.BeginEdit(ctx, r.PathValue("id"))
	})
}

// HandleDraft handles POST /edit/draft: keep the editor fields.
func (h *Handlers) HandleDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.applyDraft(r); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if isPartial(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectToPanel(w, r)
}

// HandleCommit handles POST /edit/commit: save the editor. Fields posted
// with the commit replace the draft first.
func (h *Handlers) HandleCommit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		if err := h.applyDraft(r); err != nil {
			return err
		}
		return h.ctrl.CommitEdit(ctx)
	})
}

// HandleCancel handles POST /edit/cancel.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		return h.ctrl.CancelEdit(ctx)
	})
}

// HandleCopy handles POST /copy: copy the assembled prompt.
func (h *Handlers) HandleCopy(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		h.takeInput(r)
		_, err := h.ctrl.Copy(ctx)
		return err
	})
}

// HandleRunSkill handles POST /skills/{id}/run: copy the prompt shaped by a skill.
func (h *Handlers) HandleRunSkill(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		h.takeInput(r)
		_, err := h.ctrl.RunSkill(ctx, r.PathValue("id"))
		return err
	})
}

// HandleSelection handles POST /selection: show the quick-add button
// over a text selection.
func (h *Handlers) HandleSelection(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(context.Context) error {
		h.ctrl.ShowAffordance(panel.Selection{
			Text:   r.PostFormValue("text"),
			Left:   formFloat(r, "left"),
			Top:    formFloat(r, "top"),
			Width:  formFloat(r, "width"),
			Height: formFloat(r, "height"),
		})
		return nil
	})
}

// HandleHideSelection handles POST /selection/hide.
func (h *Handlers) HandleHideSelection(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(context.Context) error {
		h.ctrl.HideAffordance()
		return nil
	})
}

// HandleQuickAdd handles POST /selection/add: save the selection as a context.
func (h *Handlers) HandleQuickAdd(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context) error {
		_, err := h.ctrl.QuickAdd(ctx)
		return err
	})
}

// captureRequest is the body sent by the capture bookmarklet.
type captureRequest struct {
	Text string `json:"text"`
}

// HandleCapture handles POST /api/capture: an in-page capture. The
// capture is dropped if the page goes away before the store is touched.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCaptureBytes)).Decode(&req); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
		return
	}

	ctx := r.Context()
	result, err := ops.CapturePage(ctx, h.st, h.notifier, h.logger, req.Text, func() bool {
		return ctx.Err() == nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	renderJSON(w, http.StatusCreated, result)
}

// deliver hands a cross-context message to the controller.
func (h *Handlers) deliver(msg bus.Message) {
	h.ctrl.HandleMessage(context.Background(), msg)
}

// act runs a panel action and answers with the updated panel.
func (h *Handlers) act(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if isPartial(r) {
		h.renderPanel(w, r)
		return
	}
	redirectToPanel(w, r)
}

func (h *Handlers) renderPanel(w http.ResponseWriter, r *http.Request) {
	snap := h.ctrl.Snapshot()
	preview := h.ctrl.Assemble("")
	data := h.renderer.panelData(snap, preview)
	data.Bookmarklet = bookmarklet(r.Host)
	h.renderer.renderPage(w, r, "panel", data)
}

// applyDraft copies posted editor fields into the edit session.
func (h *Handlers) applyDraft(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.NewInvalidRequest("invalid form")
	}
	if _, ok := r.PostForm["body"]; !ok {
		return nil
	}
	return h.ctrl.UpdateDraft(r.PostFormValue("title"), r.PostFormValue("body"), formKind(r))
}

// takeInput stores a posted input field, if any.
func (h *Handlers) takeInput(r *http.Request) {
	if err := r.ParseForm(); err != nil {
		return
	}
	if _, ok := r.PostForm["input"]; ok {
		h.ctrl.SetInput(r.PostFormValue("input"))
	}
}

func redirectToPanel(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/panel", http.StatusSeeOther)
}

func formKind(r *http.Request) record.Kind {
	return record.Kind(strings.ToLower(strings.TrimSpace(r.PostFormValue("kind"))))
}

func formFloat(r *http.Request, key string) float64 {
	f, err := strconv.ParseFloat(r.PostFormValue(key), 64)
	if err != nil {
		return 0
	}
	return f
}
