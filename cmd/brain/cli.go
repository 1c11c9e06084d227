package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/clipboard"
	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/ops"
	"github.com/hpungsan/brain/internal/panel"
	"github.com/hpungsan/brain/internal/store"
	"github.com/hpungsan/brain/internal/web"
)

// maxStdinBytes bounds text piped into capture, add, edit and assemble.
const maxStdinBytes = 1 << 20

// env holds what the commands run against.
type env struct {
	st store.Store
	// sqlite backs st in a real run; the ui command watches it for
	// writes made by other processes. Nil in tests.
	sqlite   *store.SQLiteStore
	notifier bus.Notifier
	clip     clipboard.Clipboard
	cfg      *config.Config
	baseDir  string
	logger   *zap.Logger
}

func (e *env) exportsDir() string {
	return config.ExportsDir(e.baseDir)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "brain",
		Usage:   "Save contexts, rules and skills and assemble them into prompts",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(e),
			listCmd(e),
			addCmd(e),
			idCmd(e, "toggle", "Include or exclude a context or rule when assembling", ops.Toggle),
			idCmd(e, "pin", "Pin or unpin a record at the top of its list", ops.Pin),
			deleteCmd(e),
			editCmd(e),
			assembleCmd(e),
			exportCmd(e),
			importCmd(e),
			uiCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Save text as a new active context (text from args or stdin)",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Source title (default: \"Web Selection\")"},
		},
		Action: func(c *cli.Context) error {
			text, err := textArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Capture(c.Context, e.st, e.notifier, e.logger, ops.CaptureInput{
				Text:      text,
				PageTitle: c.String("title"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records, pinned first then newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: context|rule|skill"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, e.st, ops.ListInput{Kind: c.String("kind")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// addCmd creates the add command.
func addCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a record (body from args or stdin)",
		ArgsUsage: "[body...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "context", Usage: "Record kind: context|rule|skill"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Record title"},
		},
		Action: func(c *cli.Context) error {
			body, err := textArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Add(c.Context, e.st, e.notifier, e.logger, ops.AddInput{
				Kind:  c.String("kind"),
				Title: c.String("title"),
				Body:  body,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// idCmd creates a command that flips a flag on one record.
func idCmd(e *env, name, usage string, fn func(context.Context, store.Store, bus.Notifier, *zap.Logger, string) (*ops.RecordOutput, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := fn(c.Context, e.st, e.notifier, e.logger, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a record",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, e.st, e.notifier, e.logger, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// editCmd creates the edit command.
func editCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a record (optionally reads the body from stdin); --body= deletes it",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "New kind: context|rule|skill"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "New body"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{ID: c.Args().First()}

			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			if c.IsSet("kind") {
				kind := c.String("kind")
				input.Kind = &kind
			}
			if c.IsSet("body") {
				body := c.String("body")
				input.Body = &body
			} else if stdinHasData(c) {
				body, err := readStdin(c, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if body != "" {
					input.Body = &body
				}
			}

			output, err := ops.Update(c.Context, e.st, e.notifier, e.logger, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// assembleCmd creates the assemble command.
func assembleCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "assemble",
		Usage: "Build the prompt from active rules and contexts plus the input (input from flag or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "User input"},
			&cli.StringFlag{Name: "skill", Aliases: []string{"s"}, Usage: "Skill id whose body shapes the input"},
			&cli.StringFlag{Name: "template", Usage: "Explicit template; {input} marks where the input goes"},
			&cli.BoolFlag{Name: "copy", Aliases: []string{"c"}, Usage: "Also copy the prompt to the clipboard"},
			&cli.BoolFlag{Name: "text", Usage: "Print only the prompt text"},
		},
		Action: func(c *cli.Context) error {
			input := c.String("input")
			if !c.IsSet("input") && stdinHasData(c) {
				text, err := readStdin(c, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input = text
			}

			output, err := ops.Assemble(c.Context, e.st, ops.AssembleInput{
				Input:    input,
				SkillID:  c.String("skill"),
				Template: c.String("template"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("copy") && strings.TrimSpace(output.Text) != "" {
				if err := e.clip.WriteText(c.Context, output.Text); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			if c.Bool("text") {
				_, err := fmt.Fprintln(c.App.Writer, output.Text)
				return err
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all records to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output .jsonl path or file name in <home>/exports (default: <home>/exports/<label>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "File name prefix for the default path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, e.st, e.cfg, e.exportsDir(), ops.ExportInput{
				Path:  c.String("path"),
				Label: c.String("label"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import records from a JSONL export",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, e.st, e.notifier, e.logger, e.cfg, e.exportsDir(), ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the panel in the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address host:port (default: panel_addr from config)"},
		},
		Action: func(c *cli.Context) error {
			addr := c.String("addr")
			if addr == "" {
				addr = e.cfg.PanelAddr
			}
			if err := runUI(c.Context, e, addr); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// runUI starts the panel controller, the store watcher and the web server,
// and blocks until the server stops.
func runUI(ctx context.Context, e *env, addr string) error {
	if e.sqlite == nil {
		return errors.NewInvalidRequest("ui requires the database store")
	}

	ctrl := panel.New(e.st, panel.Options{
		Clipboard:    e.clip,
		Logger:       e.logger,
		CopyFeedback: e.cfg.CopyFeedback(),
	})
	defer ctrl.Close()

	// Signals posted to /api/refresh and in-page captures reach the
	// controller through the local bus.
	local := bus.New()
	defer local.Subscribe(func(m bus.Message) { ctrl.HandleMessage(ctx, m) })()

	watcher, err := store.NewWatcher(e.sqlite, e.baseDir, store.DefaultDebounce)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := watcher.Start(ctx); err != nil {
		return errors.NewInternal(err)
	}
	defer watcher.Stop()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	srv, err := web.NewServer(web.Options{
		Controller: ctrl,
		Store:      e.st,
		Notifier:   local,
		Logger:     e.logger,
		Version:    Version,
	}, addr)
	if err != nil {
		return errors.NewInternal(err)
	}
	return web.Run(ctx, srv, e.logger)
}

// Helper functions

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if bErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// textArg returns the positional args joined by spaces, or piped stdin
// when there are none.
func textArg(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData(c) {
		return "", nil
	}
	return readStdin(c, maxStdinBytes)
}

// stdinHasData returns true if the app's reader has piped data (not a terminal).
func stdinHasData(c *cli.Context) bool {
	f, ok := c.App.Reader.(*os.File)
	if !ok {
		return c.App.Reader != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from the app's reader.
func readStdin(c *cli.Context, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(c.App.Reader, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
