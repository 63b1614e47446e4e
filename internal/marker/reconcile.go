package marker

import (
	"fmt"
	"strings"

	apperrors "github.com/dpshade/fieldmark/internal/errors"
)

// Document describes the active document
type Document interface {
	Path() string
}

// LineAccessor is line-oriented access to an editable document.
// SetLine must replace only the text at index i.
type LineAccessor interface {
	LineCount() (int, error)
	Line(i int) (string, error)
	SetLine(i int, text string) error
}

// DocumentPath is a Document backed by a plain path
type DocumentPath string

func (p DocumentPath) Path() string { return string(p) }

// Result summarizes one reconciliation pass
type Result struct {
	Path    string
	Scanned int
	Added   int
	Removed int
	// Skipped holds the reason the document was not reconciled, if it wasn't
	Skipped string
}

// Changed reports whether the pass wrote anything
func (r Result) Changed() bool {
	return r.Added+r.Removed > 0
}

// Reconcile sweeps every line of doc in ascending order and writes back only
// the lines whose marker state is wrong.
//
// A missing document or accessor is a no-op. An out-of-scope document is
// returned with Skipped set and nothing read. Accessor failures abort the
// pass; writes that already happened stand.
func Reconcile(doc Document, lines LineAccessor, cfg *Config) (Result, error) {
	if cfg == nil {
		return Result{}, apperrors.InternalError("reconcile called without configuration")
	}
	if doc == nil || lines == nil {
		return Result{Skipped: "no active document"}, nil
	}

	res := Result{Path: doc.Path()}

	if cfg.Err != nil {
		res.Skipped = "invalid pattern"
		return res, cfg.Err
	}

	scope := DecideScope(res.Path, cfg.Settings)
	if !scope.InScope {
		res.Skipped = scope.Reason
		if scope.Err != nil {
			return res, scope.Err
		}
		return res, nil
	}

	prefix := cfg.Prefix()

	n, err := lines.LineCount()
	if err != nil {
		return res, apperrors.AdapterUnavailableError("line count", err)
	}

	for i := 0; i < n; i++ {
		text, err := lines.Line(i)
		if err != nil {
			return res, apperrors.AdapterUnavailableError(fmt.Sprintf("read line %d", i), err)
		}
		res.Scanned++

		action := Classify(text, cfg.Pattern, prefix)
		if action == NoChange {
			continue
		}
		next := action.Apply(text, prefix)
		if next == text {
			// only possible with an empty prefix
			continue
		}
		if err := lines.SetLine(i, next); err != nil {
			return res, apperrors.AdapterUnavailableError(fmt.Sprintf("write line %d", i), err)
		}
		if action == AddPrefix {
			res.Added++
		} else {
			res.Removed++
		}
	}

	return res, nil
}

// ReconcileLines applies the classification to a slice and returns the
// corrected copy along with the counts. Scope is not consulted.
func ReconcileLines(lines []string, cfg *Config) ([]string, Result, error) {
	if !cfg.Valid() {
		if cfg != nil && cfg.Err != nil {
			return lines, Result{Skipped: "invalid pattern"}, cfg.Err
		}
		return lines, Result{}, apperrors.InternalError("reconcile called without configuration")
	}

	out := make([]string, len(lines))
	var res Result
	prefix := cfg.Prefix()
	for i, text := range lines {
		res.Scanned++
		action := Classify(text, cfg.Pattern, prefix)
		out[i] = action.Apply(text, prefix)
		if out[i] == text {
			continue
		}
		switch action {
		case AddPrefix:
			res.Added++
		case RemovePrefix:
			res.Removed++
		}
	}
	return out, res, nil
}

// Summary counts marker state without changing anything
type Summary struct {
	// Unfilled lines are marked and still fillable
	Unfilled int
	// Pending lines would change on the next pass
	Pending int
	// UnfilledLines holds the zero-based indices of unfilled lines
	UnfilledLines []int
}

// Summarize classifies lines without writing
func Summarize(lines []string, cfg *Config) Summary {
	var s Summary
	if !cfg.Valid() {
		return s
	}
	prefix := cfg.Prefix()
	for i, text := range lines {
		action := Classify(text, cfg.Pattern, prefix)
		switch {
		case action != NoChange && action.Apply(text, prefix) != text:
			s.Pending++
		default:
			if prefix != "" && strings.HasPrefix(text, prefix) && cfg.Pattern.MatchString(text) {
				s.Unfilled++
				s.UnfilledLines = append(s.UnfilledLines, i)
			}
		}
	}
	return s
}
