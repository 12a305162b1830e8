package lsp

import "go.lsp.dev/protocol"

// DefaultTriggerCharacters are the characters that open completion.
var DefaultTriggerCharacters = []string{".", "#"}

// NewServerCapabilities describes the features this server implements:
// code actions, completion without resolve, whole-document formatting, full
// text synchronization with open/close and save-with-text, and workspace
// folders with change notifications.
func NewServerCapabilities(triggerCharacters []string) protocol.ServerCapabilities {
	if len(triggerCharacters) == 0 {
		triggerCharacters = DefaultTriggerCharacters
	}
	triggers := make([]string, len(triggerCharacters))
	copy(triggers, triggerCharacters)

	return protocol.ServerCapabilities{
		CodeActionProvider: true,
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: triggers,
			ResolveProvider:   false,
		},
		DocumentFormattingProvider: true,
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save: &protocol.SaveOptions{
				IncludeText: true,
			},
		},
		Workspace: &protocol.ServerCapabilitiesWorkspace{
			WorkspaceFolders: &protocol.ServerCapabilitiesWorkspaceFolders{
				Supported:           true,
				ChangeNotifications: true,
			},
		},
	}
}
