package tooling

import (
	"sort"
	"unicode/utf8"

	"github.com/hybris-tools/tsls/internal/psi"
)

// Position is a zero-based line and UTF-16 character offset, as used by LSP clients
type Position struct {
	Line      int
	Character int
}

// Range is a span between two positions
type Range struct {
	Start Position
	End   Position
}

// Location is a range inside a document
type Location struct {
	URI   string
	Range Range
}

// LineIndex converts between byte offsets and positions of one document
type LineIndex struct {
	content string
	// starts holds the byte offset of every line start
	starts []int
}

// NewLineIndex indexes the line starts of content
func NewLineIndex(content string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{content: content, starts: starts}
}

// Lines returns the number of lines
func (li *LineIndex) Lines() int {
	return len(li.starts)
}

// Position converts a byte offset. Offsets outside the content are clamped.
func (li *LineIndex) Position(offset int) Position {
	offset = max(0, min(offset, len(li.content)))
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1

	character := 0
	for _, r := range li.content[li.starts[line]:offset] {
		character += utf16Len(r)
	}
	return Position{Line: line, Character: character}
}

// Offset converts a position to a byte offset. Characters past the end of the line
// clamp to the line end and lines past the end clamp to the content end.
func (li *LineIndex) Offset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(li.starts) {
		return len(li.content)
	}

	offset := li.starts[pos.Line]
	for units := 0; units < pos.Character && offset < len(li.content); {
		r, size := utf8.DecodeRuneInString(li.content[offset:])
		if r == '\n' {
			break
		}
		units += utf16Len(r)
		offset += size
	}
	return offset
}

// Range converts a byte range
func (li *LineIndex) Range(r psi.Range) Range {
	return Range{Start: li.Position(r.Start), End: li.Position(r.End)}
}

// OffsetRange converts a position range to a byte range
func (li *LineIndex) OffsetRange(r Range) psi.Range {
	return psi.Range{Start: li.Offset(r.Start), End: li.Offset(r.End)}
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
