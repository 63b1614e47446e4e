package marker

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/models"
)

// recordingLines counts every accessor call
type recordingLines struct {
	*Buffer
	reads   int
	written []int
}

func (r *recordingLines) Line(i int) (string, error) {
	r.reads++
	return r.Buffer.Line(i)
}

func (r *recordingLines) SetLine(i int, text string) error {
	r.written = append(r.written, i)
	return r.Buffer.SetLine(i, text)
}

type failingLines struct {
	countErr error
	lineErr  error
	setErr   error
	lines    []string
}

func (f *failingLines) LineCount() (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.lines), nil
}

func (f *failingLines) Line(i int) (string, error) {
	if f.lineErr != nil {
		return "", f.lineErr
	}
	return f.lines[i], nil
}

func (f *failingLines) SetLine(i int, text string) error {
	return f.setErr
}

func journalConfig() *Config {
	return NewConfig(Journal.Defaults())
}

func highlightConfig() *Config {
	return NewConfig(Highlight.Defaults())
}

const dailyNote = "# 2024-01-01\nMood: \nWeight: 70kg\n__Sleep: 7h\n__Energy: \n"

func TestReconcileJournalNote(t *testing.T) {
	buf := NewBuffer(dailyNote)
	res, err := Reconcile(DocumentPath("Journaling/2024-01-01.md"), buf, journalConfig())
	require.NoError(t, err)

	want := "# 2024-01-01\n__Mood: \nWeight: 70kg\nSleep: 7h\n__Energy: \n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("reconciled content mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 6, res.Scanned)
	assert.True(t, res.Changed())
	assert.Empty(t, res.Skipped)
}

func TestReconcileIdempotent(t *testing.T) {
	cfg := journalConfig()
	doc := DocumentPath("Journaling/2024-01-01.md")

	buf := NewBuffer(dailyNote)
	_, err := Reconcile(doc, buf, cfg)
	require.NoError(t, err)
	once := buf.String()

	rec := &recordingLines{Buffer: NewBuffer(once)}
	res, err := Reconcile(doc, rec, cfg)
	require.NoError(t, err)

	assert.Equal(t, once, rec.String())
	assert.Empty(t, rec.written, "second pass must not write")
	assert.False(t, res.Changed())
}

func TestReconcileMinimalEdit(t *testing.T) {
	rec := &recordingLines{Buffer: NewBuffer("# Title\n__Mood: \nWeight: 70kg\nplain text")}
	res, err := Reconcile(DocumentPath("Journaling/a.md"), rec, journalConfig())
	require.NoError(t, err)

	assert.Empty(t, rec.written)
	assert.Equal(t, 4, rec.reads)
	assert.Equal(t, 4, res.Scanned)
}

func TestReconcileWritesOnlyChangedIndices(t *testing.T) {
	rec := &recordingLines{Buffer: NewBufferFromLines([]string{"a", "Mood: ", "b", "__Done: yes", "c"})}
	_, err := Reconcile(DocumentPath("Journaling/a.md"), rec, journalConfig())
	require.NoError(t, err)

	if diff := cmp.Diff([]int{1, 3}, rec.written); diff != "" {
		t.Errorf("written indices mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileTemplatesExcluded(t *testing.T) {
	for _, cfg := range []*Config{journalConfig(), highlightConfig()} {
		rec := &recordingLines{Buffer: NewBuffer("Mood: \n__Weight: 70\n")}
		res, err := Reconcile(DocumentPath("Templates/Daily.md"), rec, cfg)
		require.NoError(t, err)

		assert.Empty(t, rec.written)
		assert.Zero(t, rec.reads, "out-of-scope documents are not read")
		assert.Equal(t, "inside templates directory", res.Skipped)
	}
}

func TestReconcileTargetDirectoryGate(t *testing.T) {
	cfg := journalConfig()

	buf := NewBuffer("Mood: ")
	res, err := Reconcile(DocumentPath("Notes/idea.md"), buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, "outside target directory", res.Skipped)
	assert.Equal(t, "Mood: ", buf.String())

	buf = NewBuffer("Mood: ")
	_, err = Reconcile(DocumentPath("Journaling/2024-01-01.md"), buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, "__Mood: ", buf.String())
}

func TestReconcileHighlightEverywhere(t *testing.T) {
	buf := NewBuffer("Mood: ")
	_, err := Reconcile(DocumentPath("Notes/idea.md"), buf, highlightConfig())
	require.NoError(t, err)
	assert.Equal(t, "==Mood: ", buf.String())
}

func TestReconcileNoDocumentIsNoop(t *testing.T) {
	res, err := Reconcile(nil, NewBuffer("Mood: "), journalConfig())
	require.NoError(t, err)
	assert.False(t, res.Changed())

	res, err = Reconcile(DocumentPath("Journaling/a.md"), nil, journalConfig())
	require.NoError(t, err)
	assert.False(t, res.Changed())
}

func TestReconcileNilConfig(t *testing.T) {
	_, err := Reconcile(DocumentPath("Journaling/a.md"), NewBuffer(""), nil)
	assert.Error(t, err)
}

func TestReconcileInvalidPattern(t *testing.T) {
	s := Journal.Defaults()
	s.StatRegex = "(unclosed"
	cfg := NewConfig(s)
	require.NotNil(t, cfg.Err)
	assert.False(t, cfg.Valid())

	buf := NewBuffer("Mood: ")
	res, err := Reconcile(DocumentPath("Journaling/a.md"), buf, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidPattern))
	assert.Equal(t, "invalid pattern", res.Skipped)
	assert.Equal(t, "Mood: ", buf.String())
}

func TestReconcileEmptyPath(t *testing.T) {
	buf := NewBuffer("Mood: ")
	res, err := Reconcile(DocumentPath(""), buf, highlightConfig())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeScopeResolution))
	assert.True(t, apperrors.GetAppError(err).Silent())
	assert.Equal(t, "empty document path", res.Skipped)
	assert.Equal(t, "Mood: ", buf.String())
}

func TestReconcileAccessorFailures(t *testing.T) {
	boom := errors.New("editor closed")
	doc := DocumentPath("Journaling/a.md")

	_, err := Reconcile(doc, &failingLines{countErr: boom}, journalConfig())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAdapterUnavailable))
	assert.ErrorIs(t, err, boom)

	_, err = Reconcile(doc, &failingLines{lineErr: boom, lines: []string{"x"}}, journalConfig())
	assert.ErrorIs(t, err, boom)

	res, err := Reconcile(doc, &failingLines{setErr: boom, lines: []string{"Mood: "}}, journalConfig())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, res.Added)
}

func TestReconcileAnchoredPatternAlternates(t *testing.T) {
	s := Journal.Defaults()
	s.StatRegex = `^Mood: $`
	cfg := NewConfig(s)
	doc := DocumentPath("Journaling/a.md")

	buf := NewBuffer("Mood: ")
	_, err := Reconcile(doc, buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, "__Mood: ", buf.String())

	_, err = Reconcile(doc, buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Mood: ", buf.String())
}

func TestReconcileEmptyPrefixDoesNotWrite(t *testing.T) {
	s := Highlight.Defaults()
	s.UnfilledStatPrefix = ""
	rec := &recordingLines{Buffer: NewBuffer("Mood: \nMood: good")}

	res, err := Reconcile(DocumentPath("a/b.md"), rec, NewConfig(s))
	require.NoError(t, err)
	assert.Empty(t, rec.written)
	assert.False(t, res.Changed())
}

func TestReconcileLines(t *testing.T) {
	in := []string{"Mood: ", "__Sleep: 7h", "text"}
	out, res, err := ReconcileLines(in, journalConfig())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"__Mood: ", "Sleep: 7h", "text"}, out); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Mood: ", in[0], "input must not be modified")
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)
}

func TestSummarize(t *testing.T) {
	lines := []string{"__Mood: ", "Weight: ", "__Sleep: 7h", "__Energy: ", "text"}
	sum := Summarize(lines, journalConfig())

	assert.Equal(t, 2, sum.Unfilled)
	assert.Equal(t, 2, sum.Pending)
	if diff := cmp.Diff([]int{0, 3}, sum.UnfilledLines); diff != "" {
		t.Errorf("unfilled lines mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Summary{}, Summarize(lines, nil))
}

func TestBufferPreservesLineEndings(t *testing.T) {
	in := "Mood: \r\nWeight: 70\r\n"
	buf := NewBuffer(in)
	assert.Equal(t, in, buf.String())

	_, err := Reconcile(DocumentPath("Journaling/a.md"), buf, journalConfig())
	require.NoError(t, err)
	assert.Equal(t, "__Mood: \r\nWeight: 70\r\n", buf.String())
	assert.True(t, buf.Dirty())
	assert.Equal(t, 1, buf.Writes())
}

func TestBufferMixedLineEndings(t *testing.T) {
	in := "Mood: \r\nWeight: \nSleep: \r\nEnergy: high\n"
	buf := NewBuffer(in)
	assert.Equal(t, in, buf.String())
	assert.Equal(t, []string{"Mood: ", "Weight: ", "Sleep: ", "Energy: high", ""}, buf.Lines())

	res, err := Reconcile(DocumentPath("Journaling/a.md"), buf, journalConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, "__Mood: \r\n__Weight: \n__Sleep: \r\nEnergy: high\n", buf.String())
}

func TestBufferBounds(t *testing.T) {
	buf := NewBufferFromLines([]string{"a"})
	_, err := buf.Line(1)
	assert.Error(t, err)
	assert.Error(t, buf.SetLine(-1, "x"))
	assert.False(t, buf.Dirty())
}

func TestNewConfigFingerprint(t *testing.T) {
	a := journalConfig()
	b := journalConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	s := Journal.Defaults()
	s.UnfilledStatPrefix = "!!"
	assert.NotEqual(t, a.Fingerprint(), NewConfig(s).Fingerprint())
}

func TestNewConfigDialect(t *testing.T) {
	s := Highlight.Defaults()
	s.PatternDialect = models.DialectECMAScript
	cfg := NewConfig(s)
	require.True(t, cfg.Valid())
	assert.True(t, cfg.Pattern.MatchString("Mood: "))
}

func TestNewConfigErr(t *testing.T) {
	assert.NoError(t, journalConfig().Err)

	s := Journal.Defaults()
	s.StatRegex = "(unclosed"
	cfg := NewConfig(s)
	assert.False(t, cfg.Valid())
	assert.True(t, apperrors.HasCode(cfg.Err, apperrors.ErrCodeInvalidPattern))
}
