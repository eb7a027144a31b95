// Package textpos converts byte offsets in source text to 0-based
// line/column positions.
package textpos

import "sort"

// Lines indexes the line starts of a source buffer.
type Lines struct {
	src    []byte
	starts []int
}

// New indexes src.
func New(src []byte) *Lines {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{src: src, starts: starts}
}

// Count returns the number of lines. A trailing newline does not start a
// new line of content but is still counted, matching editor behavior.
func (l *Lines) Count() int {
	return len(l.starts)
}

// Position returns the 0-based line and byte column of offset.
func (l *Lines) Position(offset int) (line, col int) {
	line = sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return line, offset - l.starts[line]
}

// Text returns the content of line without its terminator.
func (l *Lines) Text(line int) string {
	if line < 0 || line >= len(l.starts) {
		return ""
	}
	end := len(l.src)
	if line+1 < len(l.starts) {
		end = l.starts[line+1] - 1
	}
	start := l.starts[line]
	if end > start && l.src[end-1] == '\r' {
		end--
	}
	if end < start {
		return ""
	}
	return string(l.src[start:end])
}
