package lsp

import (
	"strings"

	"go.lsp.dev/protocol"
)

// TitleUppercase is the title of the lowercase quick fix.
const TitleUppercase = "convert lowercase to uppercase"

// BuildCodeActions returns the quick fixes for the diagnostics a client sent
// back with a codeAction request. Every lowercase-run diagnostic from rules
// becomes one edit replacing its range with its Data; all of them go into a
// single action. Diagnostics whose Data is not a string cannot be fixed and
// are skipped. When only is non-empty the quick fix is offered only if one of
// the requested kinds covers it. The result is empty, never nil, when nothing
// matches.
func BuildCodeActions(rules Rules, uri protocol.DocumentURI, diagnostics []protocol.Diagnostic, only []protocol.CodeActionKind) []protocol.CodeAction {
	if !kindRequested(only, protocol.QuickFix) {
		return []protocol.CodeAction{}
	}

	var (
		edits   []protocol.TextEdit
		matched []protocol.Diagnostic
	)
	for _, d := range diagnostics {
		if !rules.IsLowercaseRun(d) {
			continue
		}
		replacement, ok := d.Data.(string)
		if !ok {
			continue
		}
		edits = append(edits, protocol.TextEdit{Range: d.Range, NewText: replacement})
		matched = append(matched, d)
	}

	if len(edits) == 0 {
		return []protocol.CodeAction{}
	}

	return []protocol.CodeAction{{
		Title:       TitleUppercase,
		Kind:        protocol.QuickFix,
		Diagnostics: matched,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{uri: edits},
		},
	}}
}

// kindRequested reports whether kind is covered by the client's only filter.
// Kinds are hierarchical: "refactor" covers "refactor.extract". An empty
// filter covers everything.
func kindRequested(only []protocol.CodeActionKind, kind protocol.CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if k == kind || strings.HasPrefix(string(kind), string(k)+".") {
			return true
		}
	}
	return false
}

// FormatText returns the edit that uppercases every lowercase run in text.
// The single edit spans from the start of the document to line
// lineCount(text), character 0. That end line is one past the last line
// index; clients clamp it to the document end.
func FormatText(text string) []protocol.TextEdit {
	return []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: uint32(lineCount(text)), Character: 0},
		},
		NewText: UppercaseRuns(text),
	}}
}
