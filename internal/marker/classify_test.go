package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/fieldmark/internal/models"
)

func mustPattern(t *testing.T, expr string) Pattern {
	t.Helper()
	p, err := CompilePattern(expr, models.DialectRE2)
	require.NoError(t, err)
	return p
}

func TestClassifyDecisionTable(t *testing.T) {
	p := mustPattern(t, DefaultPattern)

	tests := []struct {
		name string
		line string
		want Action
	}{
		{"unmarked fillable", "Mood: ", AddPrefix},
		{"marked fillable", "__Mood: ", NoChange},
		{"marked filled", "__Mood: filled in now", RemovePrefix},
		{"unmarked filled", "Mood: great", NoChange},
		{"empty line", "", NoChange},
		{"heading", "# Daily", NoChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line, p, "__"))
		})
	}
}

func TestClassifyScenarios(t *testing.T) {
	p := mustPattern(t, DefaultPattern)

	// Scenario: unfilled field gets marked
	line := "Mood: "
	action := Classify(line, p, "__")
	require.Equal(t, AddPrefix, action)
	assert.Equal(t, "__Mood: ", action.Apply(line, "__"))

	// Scenario: filled field loses its marker
	line = "__Mood: filled in now"
	action = Classify(line, p, "__")
	require.Equal(t, RemovePrefix, action)
	assert.Equal(t, "Mood: filled in now", action.Apply(line, "__"))
}

func TestClassifyAnchoredPatternOscillates(t *testing.T) {
	// A start anchor is broken by the prefix itself, so the marker is added
	// on one pass and stripped on the next. This is a known interaction.
	p := mustPattern(t, `^Mood: $`)

	line := "Mood: "
	first := Classify(line, p, "__")
	require.Equal(t, AddPrefix, first)
	line = first.Apply(line, "__")
	assert.Equal(t, "__Mood: ", line)

	second := Classify(line, p, "__")
	require.Equal(t, RemovePrefix, second)
	line = second.Apply(line, "__")
	assert.Equal(t, "Mood: ", line)

	assert.True(t, IsStartAnchored(`^Mood: $`))
	assert.False(t, IsStartAnchored(DefaultPattern))
}

func TestClassifySymmetry(t *testing.T) {
	p := mustPattern(t, DefaultPattern)
	for _, line := range []string{"Mood: ", "Weight: ", "a: ", ": "} {
		require.Equal(t, AddPrefix, Classify(line, p, "=="), line)
		assert.Equal(t, NoChange, Classify(WithPrefix(line, "=="), p, "=="), line)
	}
}

func TestClassifyEmptyPrefix(t *testing.T) {
	// Every line starts with "", so fillable lines are already "marked" and
	// unfillable ones would have zero bytes removed.
	p := mustPattern(t, DefaultPattern)
	assert.Equal(t, NoChange, Classify("Mood: ", p, ""))

	action := Classify("Mood: great", p, "")
	assert.Equal(t, RemovePrefix, action)
	assert.Equal(t, "Mood: great", action.Apply("Mood: great", ""))
}

func TestPrefixRoundTrip(t *testing.T) {
	lines := []string{"", "Mood: ", "x", "__already", "ünïcödé: ", "\t: "}
	prefixes := []string{"__", "==", "☐ ", "-"}
	for _, l := range lines {
		for _, p := range prefixes {
			assert.Equal(t, l, WithoutPrefix(WithPrefix(l, p), p), "line %q prefix %q", l, p)
		}
	}
}

func TestWithoutPrefixShortLine(t *testing.T) {
	assert.Equal(t, "", WithoutPrefix("_", "__"))
	assert.Equal(t, "", WithoutPrefix("__", "__"))
}

func TestCompilePattern(t *testing.T) {
	_, err := CompilePattern("", models.DialectRE2)
	assert.Error(t, err)

	_, err = CompilePattern("   ", models.DialectRE2)
	assert.Error(t, err)

	_, err = CompilePattern("(unclosed", models.DialectRE2)
	assert.Error(t, err)

	_, err = CompilePattern("x", models.PatternDialect("perl"))
	assert.Error(t, err)

	// Lookahead is not RE2 but is ECMAScript
	_, err = CompilePattern(`^(?=Mood).*: $`, models.DialectRE2)
	assert.Error(t, err)
	p, err := CompilePattern(`^(?=Mood).*: $`, models.DialectECMAScript)
	require.NoError(t, err)
	assert.True(t, p.MatchString("Mood: "))
	assert.False(t, p.MatchString("Weight: "))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "add-prefix", AddPrefix.String())
	assert.Equal(t, "remove-prefix", RemovePrefix.String())
	assert.Equal(t, "no-change", NoChange.String())
}
