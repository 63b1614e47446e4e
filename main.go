package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dpshade/fieldmark/internal/cli"
	"github.com/dpshade/fieldmark/internal/config"
	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/logging"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/service"
	"github.com/dpshade/fieldmark/internal/ui"
	"github.com/dpshade/fieldmark/internal/watcher"
)

var version = "0.1.0"

func printHelp() {
	fmt.Printf(`fieldmark - Mark unfilled fields in markdown notes

USAGE:
    fieldmark [OPTIONS] [COMMAND]

OPTIONS:
    --help          Show this help information
    --version       Print version information
    --init          Initialize a vault with a starter template
    --watch         Highlight notes as they are written by other editors
    --variant       Behavior variant: %s (default: journal)
    --verbose       Log debug output

COMMANDS:
    (no command)       Start interactive TUI mode
    list, ls           List notes
    search <query>     Search notes
    show, get <path>   Show a note and its unfilled fields
    check [paths]      Report what a pass would change without writing
    apply <paths>      Highlight notes now (--all for every note in scope)
    templates          List templates
    new <tpl> <path>   Create a note from a template
    settings           Show or change settings
    migrate --from     Replace an old prefix with the current one
    help               Show CLI command help

EXAMPLES:
    fieldmark                                  # Start interactive mode
    fieldmark --init                           # Create the vault
    fieldmark --watch                          # Highlight on every file write
    fieldmark --variant highlight apply --all  # Highlight the whole vault
    fieldmark new Daily Journaling/2024-01-01  # New note from a template
    fieldmark settings set prefix "!! "        # Change the unfilled prefix
    fieldmark migrate --from "__"              # Rewrite notes after a prefix change

STORAGE:
    Default vault: ~/Notes
    Override with: FIELDMARK_DIR=<path>
    Settings:      <vault>/.fieldmark/settings.yaml
`, strings.Join(marker.VariantNames(), ", "))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes fieldmark with the given arguments and returns the process
// exit code. Deferred cleanup runs before main exits.
func run(argv []string) int {
	var showVersion bool
	var initVault bool
	var showHelp bool
	var watch bool
	var variantName string
	var verbose bool

	flags := flag.NewFlagSet("fieldmark", flag.ContinueOnError)
	flags.Usage = printHelp
	flags.BoolVar(&showVersion, "version", false, "Print version information")
	flags.BoolVar(&initVault, "init", false, "Initialize a vault with a starter template")
	flags.BoolVar(&showHelp, "help", false, "Show help information")
	flags.BoolVar(&watch, "watch", false, "Highlight notes as they are written")
	flags.StringVar(&variantName, "variant", marker.Journal.Name, "Behavior variant")
	flags.BoolVar(&verbose, "verbose", false, "Log debug output")
	if err := flags.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if showHelp {
		printHelp()
		return 0
	}

	if showVersion {
		fmt.Printf("fieldmark version %s\n", version)
		return 0
	}

	variant, ok := marker.LookupVariant(variantName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown variant %q (available: %s)\n",
			variantName, strings.Join(marker.VariantNames(), ", "))
		return 1
	}

	args := flags.Args()
	tui := !initVault && !watch && len(args) == 0

	logger, err := newLogger(tui, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := service.NewServiceWithOptions(service.Options{Variant: variant, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if initVault {
		if err := svc.InitVault(); err != nil {
			fmt.Fprintln(os.Stderr, "Error initializing vault:", err)
			return 1
		}
		fmt.Printf("Initialized vault at %s\n", svc.BaseDir())
		return 0
	}

	if watch {
		if err := runWatch(ctx, svc, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if len(args) > 0 {
		// CLI mode - execute command and exit
		cliHandler := cli.NewCLI(svc)
		if err := cliHandler.ExecuteCommand(ctx, args); err != nil {
			handled := apperrors.NewCLIErrorHandler(logger, verbose).HandleError(err)
			fmt.Fprintln(os.Stderr, handled)
			return 1
		}
		return 0
	}

	model, err := ui.NewModel(ctx, svc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(*model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger logs to stderr for the CLI and watch mode. The TUI owns the
// terminal, so it logs JSON to <vault>/.fieldmark/logs instead.
func newLogger(tui, verbose bool) (*zap.Logger, error) {
	cfg := logging.NewDefaultConfig()
	if tui {
		root, err := service.ResolveRoot("")
		if err != nil {
			return nil, err
		}
		cfg = logging.FileConfig(filepath.Join(root, config.StateDirName))
	}
	if verbose {
		cfg.Level = zapcore.DebugLevel
	}
	return logging.New(cfg)
}

func runWatch(ctx context.Context, svc *service.Service, logger *zap.Logger) error {
	w, err := watcher.New(svc, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Debug("watch mode", zap.String("variant", svc.Variant().Name))

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	w.Stop()

	stats := w.GetStats()
	logger.Info("watcher stopped",
		zap.Int("events", stats.Events),
		zap.Int("processed", stats.Processed),
		zap.Int("written", stats.Written),
		zap.Int("errors", stats.Errors))
	return nil
}
