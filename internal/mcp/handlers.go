package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/logging"
	"github.com/hpungsan/brain/internal/ops"
	"github.com/hpungsan/brain/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	st         store.Store
	notifier   bus.Notifier
	cfg        *config.Config
	exportsDir string
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance.
// notifier may be nil when no panel should be told about writes.
func NewHandlers(st store.Store, notifier bus.Notifier, cfg *config.Config, exportsDir string, logger *zap.Logger) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{
		st:         st,
		notifier:   notifier,
		cfg:        cfg,
		exportsDir: exportsDir,
		logger:     logging.OrNop(logger).Named("mcp"),
	}
}

// Request types for each tool

// ListRequest represents the arguments for brain_list.
type ListRequest struct {
	Kind string `json:"kind,omitempty"`
}

// CaptureRequest represents the arguments for brain_capture.
type CaptureRequest struct {
	Text      string `json:"text"`
	PageTitle string `json:"page_title,omitempty"`
}

// AddRequest represents the arguments for brain_add.
type AddRequest struct {
	Kind  string `json:"kind,omitempty"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// IDRequest represents the arguments for tools that address one record.
type IDRequest struct {
	ID string `json:"id"`
}

// UpdateRequest represents the arguments for brain_update.
type UpdateRequest struct {
	ID    string  `json:"id"`
	Title *string `json:"title,omitempty"`
	Kind  *string `json:"kind,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// AssembleRequest represents the arguments for brain_assemble.
type AssembleRequest struct {
	Input    string `json:"input,omitempty"`
	SkillID  string `json:"skill_id,omitempty"`
	Template string `json:"template,omitempty"`
}

// ExportRequest represents the arguments for brain_export.
type ExportRequest struct {
	Path  string `json:"path,omitempty"`
	Label string `json:"label,omitempty"`
}

// ImportRequest represents the arguments for brain_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// HandleList handles the brain_list tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.st, ops.ListInput{Kind: args.Kind})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCapture handles the brain_capture tool.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Capture(ctx, h.st, h.notifier, h.logger, ops.CaptureInput{
		Text:      args.Text,
		PageTitle: args.PageTitle,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAdd handles the brain_add tool.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Add(ctx, h.st, h.notifier, h.logger, ops.AddInput{
		Kind:  args.Kind,
		Title: args.Title,
		Body:  args.Body,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleToggle handles the brain_toggle tool.
func (h *Handlers) HandleToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Toggle(ctx, h.st, h.notifier, h.logger, args.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePin handles the brain_pin tool.
func (h *Handlers) HandlePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Pin(ctx, h.st, h.notifier, h.logger, args.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the brain_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.st, h.notifier, h.logger, args.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUpdate handles the brain_update tool.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(ctx, h.st, h.notifier, h.logger, ops.UpdateInput{
		ID:    args.ID,
		Title: args.Title,
		Kind:  args.Kind,
		Body:  args.Body,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAssemble handles the brain_assemble tool.
func (h *Handlers) HandleAssemble(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[AssembleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Assemble(ctx, h.st, ops.AssembleInput{
		Input:    args.Input,
		SkillID:  args.SkillID,
		Template: args.Template,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the brain_export tool.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.st, h.cfg, h.exportsDir, ops.ExportInput{
		Path:  args.Path,
		Label: args.Label,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the brain_import tool.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.st, h.notifier, h.logger, h.cfg, h.exportsDir, ops.ImportInput{
		Path: args.Path,
		Mode: ops.ImportMode(args.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// decode converts the tool arguments into T via a JSON round trip.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	if len(args) == 0 {
		return result, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(data, &result)
	return result, err
}

// errorResult creates an MCP error result from a BrainError.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if bErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": bErr.Message,
			"status":  bErr.Status,
		}
		// Internal details may carry paths or driver errors.
		if bErr.Code != errors.ErrInternal && bErr.Details != nil {
			errorObj["details"] = bErr.Details
		}
		if bErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
