package oomph

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Location is a single point in the source text: a 1-based line and
// column, plus the byte cursor it resolves to.
type Location struct {
	Line   int32
	Column int32
	Cursor int
}

// Span is a half-open range between two Locations. Every token and
// AST node carries one so that errors and the assert_<N> token kind
// can report source positions; typed IR nodes do not carry a Span.
type Span struct {
	Start Location
	End   Location
}

func NewSpan(start, end Location) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	startLine, startCol := int(s.Start.Line), int(s.Start.Column)
	endLine, endCol := int(s.End.Line), int(s.End.Column)
	if startLine == endLine && startCol == endCol {
		return fmt.Sprintf("%d:%d", startLine, startCol)
	}
	if startLine == endLine {
		return fmt.Sprintf("%d:%d..%d", startLine, startCol, endCol)
	}
	return fmt.Sprintf("%d:%d..%d:%d", startLine, startCol, endLine, endCol)
}

// LineIndex allows fast conversion from byte cursor offsets to
// line/column. It stores the start byte offset of each line
// (0-based) and finds the owning line by binary search.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1

	return Location{
		Line:   int32(lineIdx + 1),
		Column: col,
		Cursor: cursor,
	}
}

func (li *LineIndex) Span(start, end int) Span {
	return Span{Start: li.LocationAt(start), End: li.LocationAt(end)}
}
