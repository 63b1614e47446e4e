package marker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/dpshade/fieldmark/internal/models"
)

// Pattern decides whether a line is a fillable field
type Pattern interface {
	MatchString(s string) bool
	String() string
}

type re2Pattern struct {
	re *regexp.Regexp
}

func (p re2Pattern) MatchString(s string) bool { return p.re.MatchString(s) }
func (p re2Pattern) String() string            { return p.re.String() }

// ecmaPattern evaluates JavaScript-flavoured expressions, the syntax of
// patterns carried over from Obsidian plugin settings.
type ecmaPattern struct {
	re *regexp2.Regexp
}

// MatchString only fails on a match timeout, which is never configured, so
// an error is treated as "no match".
func (p ecmaPattern) MatchString(s string) bool {
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

func (p ecmaPattern) String() string { return p.re.String() }

// CompilePattern compiles expr in the given dialect.
// Matching is unanchored unless the expression anchors itself.
func CompilePattern(expr string, dialect models.PatternDialect) (Pattern, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("pattern is empty and would match every line")
	}

	switch dialect {
	case models.DialectRE2, "":
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		return re2Pattern{re: re}, nil
	case models.DialectECMAScript:
		re, err := regexp2.Compile(expr, regexp2.ECMAScript)
		if err != nil {
			return nil, err
		}
		return ecmaPattern{re: re}, nil
	default:
		return nil, fmt.Errorf("unknown pattern dialect %q", dialect)
	}
}

// IsStartAnchored reports whether expr pins its match to the start of the
// line with something other than a leading wildcard. Such patterns stop
// matching once a non-empty prefix is added.
func IsStartAnchored(expr string) bool {
	if !strings.HasPrefix(expr, "^") {
		return false
	}
	rest := expr[1:]
	return !strings.HasPrefix(rest, ".*") && !strings.HasPrefix(rest, ".+")
}
