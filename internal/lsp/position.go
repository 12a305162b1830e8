package lsp

import (
	"strings"
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// LSP columns are UTF-16 code units while Go strings index bytes. The helpers
// here convert between the two for a single line of text.

// splitLines splits content on '\n'. A trailing newline yields a final empty
// line, so "a\n" has two lines. A '\r' before the newline stays on its line.
func splitLines(content string) []string {
	return strings.Split(content, "\n")
}

// lineCount returns the number of lines splitLines would produce.
func lineCount(content string) int {
	return strings.Count(content, "\n") + 1
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	count := 0
	// Ranging yields U+FFFD for invalid bytes, never a surrogate.
	for _, r := range s {
		count += utf16.RuneLen(r)
	}
	return count
}

// byteToUTF16Offset converts a byte offset within a line to a UTF-16 offset.
func byteToUTF16Offset(line string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(line) {
		return utf16Len(line)
	}
	return utf16Len(line[:byteOff])
}

// lineRange returns the range of the byte span [start, end) on the given line.
func lineRange(row int, line string, start, end int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(row), Character: uint32(byteToUTF16Offset(line, start))},
		End:   protocol.Position{Line: uint32(row), Character: uint32(byteToUTF16Offset(line, end))},
	}
}
