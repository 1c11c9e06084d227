package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// testSetup creates handlers over an in-memory store.
func testSetup(t *testing.T, records ...record.Record) (*Handlers, *store.MemoryStore) {
	t.Helper()

	raw, err := record.Encode(records)
	if err != nil {
		t.Fatalf("failed to encode seed records: %v", err)
	}
	st := store.NewMemoryStore(raw...)

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	return NewHandlers(st, nil, cfg, t.TempDir(), nil), st
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

// decodeResult unmarshals a successful result into out.
func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), out); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
}

// errorCode returns the code of an error result.
func errorCode(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result, got: %s", resultText(t, result))
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload.Error.Code
}

func seedRecord(id string, kind record.Kind, title, body string, createdAt int64) record.Record {
	return record.Record{ID: id, Kind: kind, Title: title, Body: body, Active: true, CreatedAt: createdAt}
}

func TestHandleCapture(t *testing.T) {
	h, st := testSetup(t, seedRecord("old", record.KindRule, "", "be brief", 1))
	ctx := context.Background()

	result, err := h.HandleCapture(ctx, makeRequest(map[string]any{
		"text":       "selected paragraph",
		"page_title": "Some Article",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var out struct {
		Record record.Record `json:"record"`
		Total  int           `json:"total"`
	}
	decodeResult(t, result, &out)
	if out.Total != 2 {
		t.Errorf("total = %d, want 2", out.Total)
	}
	if out.Record.Title != "Some Article" || out.Record.Kind != record.KindContext || !out.Record.Active {
		t.Errorf("unexpected record: %+v", out.Record)
	}

	raw, _ := st.Load(ctx)
	if got := record.Normalize(raw)[0].ID; got != out.Record.ID {
		t.Errorf("captured record not first: got %s", got)
	}
}

func TestHandleCapture_DefaultTitle(t *testing.T) {
	h, _ := testSetup(t)

	result, _ := h.HandleCapture(context.Background(), makeRequest(map[string]any{"text": "x"}))
	var out struct {
		Record record.Record `json:"record"`
	}
	decodeResult(t, result, &out)
	if out.Record.Title != record.DefaultCaptureTitle {
		t.Errorf("title = %q, want %q", out.Record.Title, record.DefaultCaptureTitle)
	}
}

func TestHandleCapture_NotifiesPanel(t *testing.T) {
	h, _ := testSetup(t)
	b := bus.New()
	refreshes := 0
	b.Subscribe(func(bus.Message) { refreshes++ })
	h.notifier = b

	result, _ := h.HandleCapture(context.Background(), makeRequest(map[string]any{"text": "x"}))
	if result.IsError {
		t.Fatalf("capture failed: %s", resultText(t, result))
	}
	if refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes)
	}
}

func TestHandleCapture_EmptyText(t *testing.T) {
	h, st := testSetup(t)

	result, _ := h.HandleCapture(context.Background(), makeRequest(map[string]any{"text": "   "}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("code = %s, want INVALID_REQUEST", code)
	}
	if st.Saves() != 0 {
		t.Errorf("saves = %d, want 0", st.Saves())
	}
}

func TestHandleList(t *testing.T) {
	h, _ := testSetup(t,
		seedRecord("c1", record.KindContext, "", "ctx one", 1),
		seedRecord("r1", record.KindRule, "R", "rule one", 2),
		seedRecord("c2", record.KindContext, "", "ctx two", 3),
	)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]any
		wantIDs []string
	}{
		{"all newest first", map[string]any{}, []string{"c2", "r1", "c1"}},
		{"contexts", map[string]any{"kind": "context"}, []string{"c2", "c1"}},
		{"skills empty", map[string]any{"kind": "skill"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			var out struct {
				Items []record.Record `json:"items"`
				Total int             `json:"total"`
			}
			decodeResult(t, result, &out)

			got := make([]string, 0, len(out.Items))
			for _, r := range out.Items {
				got = append(got, r.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestHandleList_StoreUnavailable(t *testing.T) {
	h, st := testSetup(t)
	st.FailLoads(fmt.Errorf("disk gone"))

	result, _ := h.HandleList(context.Background(), makeRequest(nil))
	if code := errorCode(t, result); code != string(errors.ErrStoreUnavailable) {
		t.Errorf("code = %s, want STORE_UNAVAILABLE", code)
	}
}

func TestHandleAdd(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, _ := h.HandleAdd(ctx, makeRequest(map[string]any{"kind": "rule", "body": "cite sources"}))
	var out struct {
		Record record.Record `json:"record"`
	}
	decodeResult(t, result, &out)
	if out.Record.Title != record.DefaultRuleTitle {
		t.Errorf("title = %q, want %q", out.Record.Title, record.DefaultRuleTitle)
	}

	result, _ = h.HandleAdd(ctx, makeRequest(map[string]any{"kind": "rule"}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("missing body code = %s, want INVALID_REQUEST", code)
	}
}

func TestHandleToggleAndPin(t *testing.T) {
	h, st := testSetup(t, seedRecord("a", record.KindContext, "", "body", 1))
	ctx := context.Background()

	if result, _ := h.HandleToggle(ctx, makeRequest(map[string]any{"id": "a"})); result.IsError {
		t.Fatalf("toggle failed: %s", resultText(t, result))
	}
	if result, _ := h.HandlePin(ctx, makeRequest(map[string]any{"id": "a"})); result.IsError {
		t.Fatalf("pin failed: %s", resultText(t, result))
	}

	raw, _ := st.Load(ctx)
	got := record.Normalize(raw)[0]
	if got.Active || !got.Pinned {
		t.Errorf("active=%v pinned=%v, want false/true", got.Active, got.Pinned)
	}

	result, _ := h.HandleToggle(ctx, makeRequest(map[string]any{"id": "missing"}))
	if code := errorCode(t, result); code != string(errors.ErrNotFound) {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestHandleDelete(t *testing.T) {
	h, st := testSetup(t,
		seedRecord("a", record.KindContext, "", "one", 1),
		seedRecord("b", record.KindContext, "", "two", 2),
	)
	ctx := context.Background()

	result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": "a"}))
	var out struct {
		Deleted bool `json:"deleted"`
		Total   int  `json:"total"`
	}
	decodeResult(t, result, &out)
	if !out.Deleted || out.Total != 1 {
		t.Errorf("got %+v, want deleted with total 1", out)
	}

	raw, _ := st.Load(ctx)
	if len(raw) != 1 {
		t.Errorf("stored = %d, want 1", len(raw))
	}

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("missing id code = %s, want INVALID_REQUEST", code)
	}
}

func TestHandleUpdate(t *testing.T) {
	h, st := testSetup(t, seedRecord("a", record.KindContext, "", "one", 1))
	ctx := context.Background()

	result, _ := h.HandleUpdate(ctx, makeRequest(map[string]any{"id": "a", "title": "Renamed", "kind": "skill"}))
	var out struct {
		Record  *record.Record `json:"record"`
		Deleted bool           `json:"deleted"`
	}
	decodeResult(t, result, &out)
	if out.Record == nil || out.Record.Title != "Renamed" || out.Record.Kind != record.KindSkill {
		t.Errorf("unexpected record: %+v", out.Record)
	}

	result, _ = h.HandleUpdate(ctx, makeRequest(map[string]any{"id": "a", "body": "  "}))
	out.Record = nil
	decodeResult(t, result, &out)
	if !out.Deleted {
		t.Error("empty body should delete")
	}
	raw, _ := st.Load(ctx)
	if len(raw) != 0 {
		t.Errorf("stored = %d, want 0", len(raw))
	}
}

func TestHandleUpdate_InvalidKind(t *testing.T) {
	h, _ := testSetup(t, seedRecord("a", record.KindContext, "", "one", 1))

	result, _ := h.HandleUpdate(context.Background(), makeRequest(map[string]any{"id": "a", "kind": "memo"}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("code = %s, want INVALID_REQUEST", code)
	}
}

func TestHandleAssemble(t *testing.T) {
	h, _ := testSetup(t,
		seedRecord("r1", record.KindRule, "R", "Answer in English.", 1),
		seedRecord("c1", record.KindContext, "", "The project uses Go.", 2),
		seedRecord("s1", record.KindSkill, "Review", "Review this: {input}", 3),
	)
	ctx := context.Background()

	result, _ := h.HandleAssemble(ctx, makeRequest(map[string]any{"input": "main.go", "skill_id": "s1"}))
	var out struct {
		Text     string `json:"text"`
		Chars    int    `json:"chars"`
		Rules    int    `json:"rules"`
		Contexts int    `json:"contexts"`
	}
	decodeResult(t, result, &out)

	if !strings.Contains(out.Text, "Review this: main.go") {
		t.Errorf("text missing templated input: %q", out.Text)
	}
	ruleAt := strings.Index(out.Text, "Answer in English.")
	ctxAt := strings.Index(out.Text, "The project uses Go.")
	if ruleAt < 0 || ctxAt < 0 || ruleAt > ctxAt {
		t.Errorf("rules must precede contexts: %q", out.Text)
	}
	if out.Rules != 1 || out.Contexts != 1 || out.Chars == 0 {
		t.Errorf("unexpected counts: %+v", out)
	}

	result, _ = h.HandleAssemble(ctx, makeRequest(map[string]any{"skill_id": "c1"}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("non-skill code = %s, want INVALID_REQUEST", code)
	}

	result, _ = h.HandleAssemble(ctx, makeRequest(map[string]any{"skill_id": "gone"}))
	if code := errorCode(t, result); code != string(errors.ErrNotFound) {
		t.Errorf("missing skill code = %s, want NOT_FOUND", code)
	}
}

func TestHandleExportImport(t *testing.T) {
	h, _ := testSetup(t, seedRecord("a", record.KindRule, "R", "rule", 1))
	ctx := context.Background()

	exportPath := filepath.Join(t.TempDir(), "export.jsonl")
	exportResult, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": exportPath}))
	if err != nil {
		t.Fatalf("export handler returned error: %v", err)
	}
	if exportResult.IsError {
		t.Fatalf("export failed: %s", resultText(t, exportResult))
	}
	if _, err := os.Stat(exportPath); os.IsNotExist(err) {
		t.Fatal("export file not created")
	}

	h2, st2 := testSetup(t)
	importResult, err := h2.HandleImport(ctx, makeRequest(map[string]any{"path": exportPath, "mode": "error"}))
	if err != nil {
		t.Fatalf("import handler returned error: %v", err)
	}
	var out struct {
		Imported int `json:"imported"`
	}
	decodeResult(t, importResult, &out)
	if out.Imported != 1 {
		t.Errorf("imported = %d, want 1", out.Imported)
	}

	raw, _ := st2.Load(ctx)
	if got := record.Normalize(raw); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("unexpected imported list: %+v", got)
	}
}

func TestHandleImport_InvalidMode(t *testing.T) {
	h, _ := testSetup(t)

	result, _ := h.HandleImport(context.Background(), makeRequest(map[string]any{
		"path": filepath.Join(t.TempDir(), "x.jsonl"),
		"mode": "merge",
	}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("code = %s, want INVALID_REQUEST", code)
	}
}

func TestHandle_BadArgumentTypes(t *testing.T) {
	h, _ := testSetup(t)

	result, _ := h.HandleToggle(context.Background(), makeRequest(map[string]any{"id": 42}))
	if code := errorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Errorf("code = %s, want INVALID_REQUEST", code)
	}
}

func TestServerRegistration(t *testing.T) {
	h, _ := testSetup(t)

	s := NewServer(h, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"brain_list",
		"brain_capture",
		"brain_add",
		"brain_toggle",
		"brain_pin",
		"brain_delete",
		"brain_update",
		"brain_assemble",
		"brain_export",
		"brain_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, _ := testSetup(t)
	h.cfg.DisabledTools = []string{"brain_delete", "brain_import"}

	tools := NewServer(h, "test").ListTools()
	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range h.cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool registered: %s", name)
		}
	}
}

func TestServerRegistration_AllTypesDisabled(t *testing.T) {
	h, _ := testSetup(t)
	h.cfg.DisabledTypes = []string{"brain"}

	if tools := NewServer(h, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"brain_list", "brain_nope", "store"})
	if strings.Join(unknown, ",") != "brain_nope,store" {
		t.Errorf("unknown = %v", unknown)
	}
	if got := ValidateDisabledTypes([]string{"brain", "memo"}); len(got) != 1 || got[0] != "memo" {
		t.Errorf("unknown types = %v", got)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := map[string]string{
		"brain_list":   "brain",
		"brain_import": "brain",
		"list":         "",
		"_list":        "",
	}
	for name, want := range tests {
		if got := GetTypeForTool(name); got != want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != len(toolRegistry) {
		t.Fatalf("len = %d, want %d", len(names), len(toolRegistry))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("open /home/me/.brain/brain.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	text := resultText(t, r)
	if strings.Contains(text, "/home/me") {
		t.Errorf("internal error leaked path: %s", text)
	}
	if code := errorCode(t, r); code != string(errors.ErrInternal) {
		t.Errorf("code = %s, want INTERNAL", code)
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	r := errorResult(fmt.Errorf("toggle: %w", errors.NewNotFound("abc")))
	if code := errorCode(t, r); code != string(errors.ErrNotFound) {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("abc"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, r)), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	details, ok := errObj["details"].(map[string]any)
	if !ok || details["id"] != "abc" {
		t.Errorf("details = %v, want id=abc", errObj["details"])
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	if code := errorCode(t, r); code != "INTERNAL" {
		t.Errorf("code = %s, want INTERNAL", code)
	}
}
