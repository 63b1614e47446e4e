package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dpshade/fieldmark/internal/clipboard"
	"github.com/dpshade/fieldmark/internal/config"
	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/renderer"
	"github.com/dpshade/fieldmark/internal/service"
)

// CLI provides headless command-line interface functionality
type CLI struct {
	service *service.Service
	out     io.Writer
	copier  *clipboard.Copier
}

// NewCLI creates a new CLI instance writing to stdout
func NewCLI(svc *service.Service) *CLI {
	return NewCLIWithOutput(svc, os.Stdout)
}

// NewCLIWithOutput creates a CLI writing to out
func NewCLIWithOutput(svc *service.Service, out io.Writer) *CLI {
	return &CLI{service: svc, out: out, copier: clipboard.New(os.Stderr)}
}

func (c *CLI) printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *CLI) println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

// ExecuteCommand processes a CLI command and returns the result
func (c *CLI) ExecuteCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.printUsage()
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "list", "ls":
		return c.listNotes(commandArgs)
	case "search":
		return c.searchNotes(commandArgs)
	case "show", "get":
		return c.showNote(commandArgs)
	case "check":
		return c.checkNotes(commandArgs)
	case "apply":
		return c.applyNotes(ctx, commandArgs)
	case "templates":
		return c.listTemplates(commandArgs)
	case "new", "create":
		return c.newNote(commandArgs)
	case "settings", "config":
		return c.handleSettings(commandArgs)
	case "migrate":
		return c.migratePrefix(ctx, commandArgs)
	case "variants":
		return c.listVariants()
	case "help":
		return c.printHelp(commandArgs)
	default:
		return apperrors.CommandNotFoundError(command)
	}
}

// flagValue returns the value following any of names and the remaining
// positional arguments
func flagValue(args []string, names ...string) (string, []string) {
	var value string
	var rest []string
	for i := 0; i < len(args); i++ {
		matched := false
		for _, n := range names {
			if args[i] == n {
				matched = true
				break
			}
		}
		if matched {
			if i+1 < len(args) {
				value = args[i+1]
				i++
			}
			continue
		}
		rest = append(rest, args[i])
	}
	return value, rest
}

func hasFlag(args []string, names ...string) (bool, []string) {
	found := false
	var rest []string
	for _, a := range args {
		matched := false
		for _, n := range names {
			if a == n {
				matched = true
			}
		}
		if matched {
			found = true
			continue
		}
		rest = append(rest, a)
	}
	return found, rest
}

// listNotes lists all notes
func (c *CLI) listNotes(args []string) error {
	format, args := flagValue(args, "--format", "-f")
	unfilledOnly, _ := hasFlag(args, "--unfilled", "-u")

	notes, err := c.service.ListNotes()
	if err != nil {
		return err
	}

	if unfilledOnly {
		var filtered []*models.Note
		for _, n := range notes {
			if n.InScope && (n.Unfilled > 0 || n.Pending > 0) {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}

	return c.formatOutput(notes, format)
}

// searchNotes fuzzy-searches notes
func (c *CLI) searchNotes(args []string) error {
	format, rest := flagValue(args, "--format", "-f")
	if len(rest) == 0 {
		return apperrors.InvalidCommandError("search", "search requires a query")
	}

	notes, err := c.service.SearchNotes(strings.Join(rest, " "))
	if err != nil {
		return err
	}
	return c.formatOutput(notes, format)
}

func (c *CLI) formatOutput(notes []*models.Note, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if notes == nil {
			notes = []*models.Note{}
		}
		return enc.Encode(notes)
	case "paths":
		for _, n := range notes {
			c.println(n.Path)
		}
	case "table":
		c.printf("%-40s %-8s %-9s %s\n", "Path", "Unfilled", "Pending", "Updated")
		c.println(strings.Repeat("-", 80))
		for _, n := range notes {
			path := n.Path
			if len(path) > 40 {
				path = "..." + path[len(path)-37:]
			}
			unfilled, pending := "-", "-"
			if n.InScope {
				unfilled = fmt.Sprint(n.Unfilled)
				pending = fmt.Sprint(n.Pending)
			}
			c.printf("%-40s %-8s %-9s %s\n", path, unfilled, pending, n.ModTime.Format("2006-01-02"))
		}
	case "", "default":
		for _, n := range notes {
			c.printf("%s\n", n.Path)
			c.printf("  %s\n", n.Description())
		}
	default:
		return apperrors.InvalidFormatError("format", format, "expected table, json, paths or default")
	}
	return nil
}

// showNote displays a single note
func (c *CLI) showNote(args []string) error {
	format, rest := flagValue(args, "--format", "-f")
	copyOut, rest := hasFlag(rest, "--copy")
	if len(rest) == 0 {
		return apperrors.InvalidCommandError("show", "show requires a note path")
	}

	note, err := c.service.GetNote(rest[0])
	if err != nil {
		return err
	}

	r := renderer.NewRenderer(note, c.service.Config())
	var content string
	switch format {
	case "json":
		content, err = r.RenderJSON()
	case "markdown", "md":
		content, err = r.RenderPreview(80)
	case "", "text":
		content, err = r.RenderText()
	default:
		return apperrors.InvalidFormatError("format", format, "expected text, json or markdown")
	}
	if err != nil {
		return err
	}

	if copyOut {
		msg, err := c.copier.Copy(content)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeCommandFailed, "Failed to copy to clipboard")
		}
		c.println(msg)
		return nil
	}

	c.printf("%s", content)
	if !strings.HasSuffix(content, "\n") {
		c.println()
	}
	return nil
}

// checkNotes reports marker state without writing anything
func (c *CLI) checkNotes(args []string) error {
	paths, err := c.targets(args)
	if err != nil {
		return err
	}
	if cfg := c.service.Config(); cfg.Err != nil {
		return cfg.Err
	}

	totalPending := 0
	for _, path := range paths {
		note, sum, err := c.service.CheckNote(path)
		if err != nil {
			return err
		}
		if !note.InScope {
			c.printf("%s: not highlighted\n", note.Path)
			continue
		}
		totalPending += sum.Pending
		c.printf("%s: %d unfilled, %d pending\n", note.Path, sum.Unfilled, sum.Pending)
		lines := marker.NewBuffer(note.Content).Lines()
		for _, i := range sum.UnfilledLines {
			c.printf("  %d: %s\n", i+1, strings.TrimSpace(lines[i]))
		}
	}

	if totalPending > 0 {
		c.printf("\n%d line(s) out of date, run 'fieldmark apply' to update\n", totalPending)
	}
	return nil
}

// targets returns the given paths, or every in-scope note when none are given
func (c *CLI) targets(args []string) ([]string, error) {
	if len(args) > 0 {
		var paths []string
		for _, a := range args {
			rel, err := c.service.RelPath(a)
			if err != nil {
				return nil, apperrors.InvalidCommandError("path", err.Error())
			}
			paths = append(paths, rel)
		}
		return paths, nil
	}

	notes, err := c.service.ListNotes()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, n := range notes {
		if n.InScope {
			paths = append(paths, n.Path)
		}
	}
	return paths, nil
}

// applyNotes reconciles notes on disk
func (c *CLI) applyNotes(ctx context.Context, args []string) error {
	all, rest := hasFlag(args, "--all", "-a")
	if !all && len(rest) == 0 {
		return apperrors.InvalidCommandError("apply", "apply requires note paths or --all")
	}

	var reports []service.ApplyReport
	if all {
		var err error
		reports, err = c.service.ApplyAll(ctx)
		if err != nil {
			return err
		}
	} else {
		for _, arg := range rest {
			rel, err := c.service.RelPath(arg)
			if err != nil {
				return apperrors.InvalidCommandError("path", err.Error())
			}
			report, err := c.service.ApplyNote(rel)
			if err != nil {
				return err
			}
			reports = append(reports, report)
		}
	}

	written := 0
	for _, r := range reports {
		switch {
		case r.Skipped != "":
			c.printf("%s: skipped (%s)\n", r.Path, r.Skipped)
		case r.Written:
			written++
			c.printf("%s: +%d -%d\n", r.Path, r.Added, r.Removed)
		}
	}
	c.printf("Updated %d of %d note(s)\n", written, len(reports))
	return nil
}

// listTemplates lists templates and their fields
func (c *CLI) listTemplates(args []string) error {
	format, _ := flagValue(args, "--format", "-f")

	templates, err := c.service.ListTemplates()
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		for _, t := range templates {
			t.Content = ""
		}
		if templates == nil {
			templates = []*models.Template{}
		}
		return enc.Encode(templates)
	}

	if len(templates) == 0 {
		c.printf("No templates in %s\n", c.service.Settings().TemplatesDirectory)
		return nil
	}
	for _, t := range templates {
		c.printf("%s - %s\n", t.Name, t.Path)
		for _, f := range t.Fields {
			c.printf("  %s\n", f)
		}
	}
	return nil
}

// newNote creates a note from a template
func (c *CLI) newNote(args []string) error {
	if len(args) < 2 {
		return apperrors.InvalidCommandError("new", "usage: new <template> <path>")
	}

	note, report, err := c.service.NewNoteFromTemplate(args[0], args[1])
	if err != nil {
		return err
	}

	c.printf("Created note: %s\n", note.Path)
	if report.Skipped != "" {
		c.printf("  not highlighted (%s)\n", report.Skipped)
	} else {
		c.printf("  %d field(s) to fill\n", note.Unfilled)
	}
	return nil
}

// handleSettings shows or changes settings
func (c *CLI) handleSettings(args []string) error {
	if len(args) == 0 {
		return c.showSettings("")
	}

	switch args[0] {
	case "show":
		format, _ := flagValue(args[1:], "--format", "-f")
		return c.showSettings(format)
	case "get":
		if len(args) < 2 {
			return apperrors.InvalidCommandError("settings get", "usage: settings get <key>")
		}
		value, err := config.Get(c.service.Settings(), args[1])
		if err != nil {
			return apperrors.InvalidSettingError(args[1], err.Error())
		}
		c.println(value)
		return nil
	case "set":
		if len(args) < 3 {
			if len(args) == 2 {
				// "settings set prefix" clears the value
				args = append(args, "")
			} else {
				return apperrors.InvalidCommandError("settings set", "usage: settings set <key> <value>")
			}
		}
		result, err := c.service.SetSetting(args[1], args[2])
		if result != nil {
			for _, w := range result.Warnings {
				c.printf("Warning: %s\n", w.Message)
			}
		}
		if err != nil {
			return err
		}
		key, _ := config.CanonicalKey(args[1])
		c.printf("Set %s = %q\n", key, args[2])
		return nil
	case "reset":
		if _, err := c.service.ResetSettings(); err != nil {
			return err
		}
		c.printf("Settings reset to %s defaults\n", c.service.Variant().Name)
		return nil
	case "path":
		c.println(c.service.SettingsPath())
		return nil
	default:
		return apperrors.InvalidCommandError("settings", fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func (c *CLI) showSettings(format string) error {
	s := c.service.Settings()
	if format == "json" {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	for _, key := range config.Keys() {
		value, _ := config.Get(s, key)
		c.printf("%-28s %q\n", key, value)
	}
	if cfg := c.service.Config(); cfg.Err != nil {
		c.printf("\nHighlighting paused: %s\n", cfg.Err.Error())
	}
	return nil
}

// migratePrefix strips a previous prefix and re-applies the current one
func (c *CLI) migratePrefix(ctx context.Context, args []string) error {
	from, rest := flagValue(args, "--from")
	if from == "" && len(rest) > 0 {
		from = rest[0]
	}

	report, err := c.service.MigratePrefix(ctx, from)
	if err != nil {
		return err
	}
	c.printf("Migrated %d note(s): removed %q from %d line(s)\n", report.Files, from, report.Stripped)
	return nil
}

func (c *CLI) listVariants() error {
	current := c.service.Variant().Name
	for _, name := range marker.VariantNames() {
		v, _ := marker.LookupVariant(name)
		mark := " "
		if name == current {
			mark = "*"
		}
		target := v.TargetDir
		if target == "" {
			target = "(whole vault)"
		}
		c.printf("%s %-10s trigger=%-6s prefix=%q target=%s\n", mark, v.Name, v.Trigger, v.DefaultPrefix, target)
	}
	return nil
}

func (c *CLI) printUsage() error {
	c.println(`fieldmark - Headless CLI mode

Usage: fieldmark <command> [options]

Commands:
  list, ls              List notes with their unfilled counts
  search <query>        Search notes
  show, get <path>      Show a note
  check [paths]         Report unfilled and out-of-date lines
  apply <paths>|--all   Mark unfilled fields and unmark filled ones
  templates             List templates and their fields
  new <template> <path> Create a note from a template
  settings              Show or change settings
  migrate --from <old>  Replace an old prefix with the current one
  variants              List the built-in variants
  help                  Show help

Use 'fieldmark help <command>' for detailed help on a specific command.`)
	return nil
}

func (c *CLI) printHelp(args []string) error {
	if len(args) == 0 {
		return c.printUsage()
	}

	switch args[0] {
	case "list", "ls":
		c.println(`list - List notes

Usage: fieldmark list [options]

Options:
  --format, -f <format>  Output format (table, json, paths, default)
  --unfilled, -u         Only notes with unfilled or pending fields`)

	case "show", "get":
		c.println(`show - Show a note

Usage: fieldmark show <path> [options]

Options:
  --format, -f <format>  text (default), json (fields report) or markdown
  --copy                 Copy the output to the clipboard instead of printing it`)

	case "apply":
		c.println(`apply - Update markers on disk

Usage: fieldmark apply <path>... | --all

Each line matching the stat pattern gets the prefix; each prefixed line that
no longer matches loses it. Templates are never changed.

Examples:
  fieldmark apply Journaling/2024-01-01.md
  fieldmark apply --all`)

	case "settings", "config":
		c.println(`settings - Show or change settings

Usage:
  fieldmark settings [show] [--format json]
  fieldmark settings get <key>
  fieldmark settings set <key> <value>
  fieldmark settings reset
  fieldmark settings path

Keys: ` + strings.Join(config.Keys(), ", ") + `

Environment variables FIELDMARK_STAT_REGEX, FIELDMARK_PREFIX,
FIELDMARK_TEMPLATES_DIR, FIELDMARK_TARGET_DIR, FIELDMARK_TRIGGER and
FIELDMARK_DIALECT override the file.

Examples:
  fieldmark settings set prefix "!!"
  fieldmark settings set pattern "^.*\: $"`)

	case "migrate":
		c.println(`migrate - Replace an old prefix

Usage: fieldmark migrate --from <old-prefix>

Changing the prefix does not touch existing notes. migrate removes the old
prefix from every highlighted note and applies the current one.`)

	case "new", "create":
		c.println(`new - Create a note from a template

Usage: fieldmark new <template> <path>

Example:
  fieldmark new Daily Journaling/2024-01-01`)

	default:
		c.printf("No help available for command: %s\n", args[0])
	}

	return nil
}
