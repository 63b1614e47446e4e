package marker

import (
	"fmt"
	"strings"
)

// Buffer is an in-memory LineAccessor over a document's text. It keeps each
// line's ending so String reproduces the input byte for byte when nothing
// was written, including files that mix LF and CRLF.
type Buffer struct {
	lines []string
	// cr marks lines that ended in "\r\n"
	cr     []bool
	writes int
}

// NewBuffer splits content into lines on "\n". A trailing "\r" is taken off
// the line text and restored by String.
func NewBuffer(content string) *Buffer {
	lines := strings.Split(content, "\n")
	cr := make([]bool, len(lines))
	for i, line := range lines {
		if strings.HasSuffix(line, "\r") {
			lines[i] = line[:len(line)-1]
			cr[i] = true
		}
	}
	return &Buffer{lines: lines, cr: cr}
}

// NewBufferFromLines wraps an existing slice; the slice is copied
func NewBufferFromLines(lines []string) *Buffer {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return &Buffer{lines: cp, cr: make([]bool, len(cp))}
}

func (b *Buffer) LineCount() (int, error) {
	return len(b.lines), nil
}

func (b *Buffer) Line(i int) (string, error) {
	if i < 0 || i >= len(b.lines) {
		return "", fmt.Errorf("line %d out of range [0,%d)", i, len(b.lines))
	}
	return b.lines[i], nil
}

func (b *Buffer) SetLine(i int, text string) error {
	if i < 0 || i >= len(b.lines) {
		return fmt.Errorf("line %d out of range [0,%d)", i, len(b.lines))
	}
	b.lines[i] = text
	b.writes++
	return nil
}

// Lines returns a copy of the current lines
func (b *Buffer) Lines() []string {
	cp := make([]string, len(b.lines))
	copy(cp, b.lines)
	return cp
}

// Writes is the number of SetLine calls so far
func (b *Buffer) Writes() int { return b.writes }

// Dirty reports whether any line was written
func (b *Buffer) Dirty() bool { return b.writes > 0 }

func (b *Buffer) String() string {
	var sb strings.Builder
	for i, line := range b.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
		if b.cr[i] {
			sb.WriteByte('\r')
		}
	}
	return sb.String()
}
