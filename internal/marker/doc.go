// Package marker implements line-state reconciliation for unfilled fields.
//
// A line is "fillable" when the configured pattern matches its full current
// text, including any marker prefix already on it. Each pass classifies every
// line of an in-scope document and rewrites only the lines whose marker state
// is wrong:
//
//	hasPrefix  fillable  action
//	false      true      AddPrefix
//	true       false     RemovePrefix
//	true       true      NoChange
//	false      false     NoChange
//
// Because the pattern sees the prefixed text, a pattern anchored at the start
// of the line (for example `^Mood: $`) stops matching once the prefix is
// added, so the next pass strips it again. Such patterns oscillate between
// passes; the settings validator warns about them.
package marker
