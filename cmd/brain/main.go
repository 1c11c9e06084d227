package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/clipboard"
	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/db"
	"github.com/hpungsan/brain/internal/logging"
	"github.com/hpungsan/brain/internal/mcp"
	"github.com/hpungsan/brain/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "list": true, "add": true,
	"toggle": true, "pin": true, "delete": true, "edit": true,
	"assemble": true, "export": true, "import": true, "ui": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _               _
  | |__  _ __ __ _(_)_ __
  | '_ \| '__/ _' | | '_ \
  | |_) | | | (_| | | | | |
  |_.__/|_|  \__,_|_|_| |_|

  Save to Brain: contexts, rules and skills for your prompts

  Usage: brain <command> [options]
         brain ui        open the panel
         brain --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(&env{cfg: config.DefaultConfig()})
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	if err := config.LoadDotEnv(); err != nil {
		fatal("failed to load .env: %v", err)
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		fatal("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, wd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fatal("invalid log level: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	sqlite := store.NewSQLiteStore(database, logger)
	e := &env{
		st:       sqlite,
		sqlite:   sqlite,
		notifier: bus.NewHTTPNotifier(cfg.PanelAddr),
		clip:     clipboard.System{},
		cfg:      cfg,
		baseDir:  baseDir,
		logger:   logger,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			_ = logger.Sync()
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'brain --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	h := mcp.NewHandlers(e.st, e.notifier, cfg, config.ExportsDir(baseDir), logger)
	if err := mcp.Run(h, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
