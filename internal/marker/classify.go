package marker

import "strings"

// Action is the corrective edit for a single line
type Action int

const (
	NoChange Action = iota
	AddPrefix
	RemovePrefix
)

func (a Action) String() string {
	switch a {
	case AddPrefix:
		return "add-prefix"
	case RemovePrefix:
		return "remove-prefix"
	default:
		return "no-change"
	}
}

// Classify decides the corrective action for line. The pattern is evaluated
// against the full current text, including any existing prefix.
func Classify(line string, pattern Pattern, prefix string) Action {
	hasPrefix := strings.HasPrefix(line, prefix)
	fillable := pattern.MatchString(line)

	switch {
	case !hasPrefix && fillable:
		return AddPrefix
	case hasPrefix && !fillable:
		return RemovePrefix
	default:
		return NoChange
	}
}

// Apply returns the text of line after performing a
func (a Action) Apply(line, prefix string) string {
	switch a {
	case AddPrefix:
		return WithPrefix(line, prefix)
	case RemovePrefix:
		return WithoutPrefix(line, prefix)
	default:
		return line
	}
}

// WithPrefix prepends prefix to line
func WithPrefix(line, prefix string) string {
	return prefix + line
}

// WithoutPrefix drops the first len(prefix) bytes of line. It does not check
// that the line actually starts with prefix; callers classify first.
func WithoutPrefix(line, prefix string) string {
	if len(prefix) >= len(line) {
		return ""
	}
	return line[len(prefix):]
}
