package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("brain_list",
	mcp.WithDescription("List saved contexts, rules and skills, pinned first then newest first."),
	mcp.WithString("kind",
		mcp.Description("Only list records of this kind"),
		mcp.Enum("context", "rule", "skill"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var captureToolDef = mcp.NewTool("brain_capture",
	mcp.WithDescription("Save a text snippet as a new active context at the top of the list."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The captured text"),
	),
	mcp.WithString("page_title",
		mcp.Description("Title of the page the text came from (default: \"Web Selection\")"),
	),
)

var addToolDef = mcp.NewTool("brain_add",
	mcp.WithDescription("Add a context, rule or skill. Skill bodies may contain {input}, replaced by the user input on assembly."),
	mcp.WithString("kind",
		mcp.Description("Record kind (default: context)"),
		mcp.Enum("context", "rule", "skill"),
	),
	mcp.WithString("title",
		mcp.Description("Short label; rules without one are titled \"New rule\""),
	),
	mcp.WithString("body",
		mcp.Required(),
		mcp.Description("Record text"),
	),
)

var toggleToolDef = mcp.NewTool("brain_toggle",
	mcp.WithDescription("Flip whether a context or rule is included when assembling."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
)

var pinToolDef = mcp.NewTool("brain_pin",
	mcp.WithDescription("Flip whether a record is listed ahead of unpinned ones. Does not affect assembly."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
)

var deleteToolDef = mcp.NewTool("brain_delete",
	mcp.WithDescription("Permanently delete a record."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var updateToolDef = mcp.NewTool("brain_update",
	mcp.WithDescription("Edit a record. Omitted fields are unchanged. An empty body deletes the record."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("kind", mcp.Description("New kind"), mcp.Enum("context", "rule", "skill")),
	mcp.WithString("body", mcp.Description("New body; empty deletes")),
)

var assembleToolDef = mcp.NewTool("brain_assemble",
	mcp.WithDescription("Build the prompt: active rules, then active contexts, then the user input, optionally shaped by a skill template."),
	mcp.WithString("input", mcp.Description("User input")),
	mcp.WithString("skill_id", mcp.Description("Use this skill's body as the template")),
	mcp.WithString("template", mcp.Description("Explicit template; {input} marks where the input goes")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("brain_export",
	mcp.WithDescription("Write all records to a JSONL file in the exports directory."),
	mcp.WithString("path", mcp.Description("Target .jsonl path; a bare file name goes to <home>/exports (default: <home>/exports/brain-<timestamp>.jsonl)")),
	mcp.WithString("label", mcp.Description("File name prefix for the default path")),
)

var importToolDef = mcp.NewTool("brain_import",
	mcp.WithDescription("Merge records from a JSONL export file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl path; a bare file name is read from <home>/exports")),
	mcp.WithString("mode",
		mcp.Description("On id collision: error (default, writes nothing), replace, or rename"),
		mcp.Enum("error", "replace", "rename"),
	),
)
