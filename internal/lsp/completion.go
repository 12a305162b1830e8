package lsp

import "go.lsp.dev/protocol"

// Completion labels. The second item inserts text that differs from what the
// editor displays.
const (
	CompletionLabelA      = "completion candidate for a"
	CompletionLabelB      = "completion candidate for b"
	CompletionInsertTextB = "text inserted instead of the label"
)

// StaticCompletions returns the completion list offered everywhere. It does
// not depend on the document or the cursor. The list is marked incomplete so
// clients ask again as the user keeps typing.
func StaticCompletions() protocol.CompletionList {
	return protocol.CompletionList{
		IsIncomplete: true,
		Items: []protocol.CompletionItem{
			{
				Label: CompletionLabelA,
				Kind:  protocol.CompletionItemKindText,
			},
			{
				Label:      CompletionLabelB,
				Kind:       protocol.CompletionItemKindText,
				InsertText: CompletionInsertTextB,
			},
		},
	}
}
