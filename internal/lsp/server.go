package lsp

import (
	"context"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"
)

// Notifier sends notifications to the client. jsonrpc2.Conn satisfies it.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// Logger is the logging surface the server needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Server handles the LSP methods of one client connection. It owns the
// connection's DocumentStore; only its lifecycle handlers write to it.
//
// Handlers are meant to be called one at a time in arrival order, which is
// how Handler drives them from the connection's read loop.
type Server struct {
	notifier Notifier
	store    *DocumentStore
	rules    Rules
	log      Logger

	name              string
	version           string
	triggerCharacters []string
	onExit            func(code int)

	mu       sync.Mutex
	rootURI  protocol.DocumentURI
	folders  []protocol.WorkspaceFolder
	shutdown bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSource sets the source identifier stamped on diagnostics.
func WithSource(source string) ServerOption {
	return func(s *Server) {
		s.rules = NewRules(source)
	}
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithTriggerCharacters overrides the completion trigger characters.
func WithTriggerCharacters(chars []string) ServerOption {
	return func(s *Server) {
		s.triggerCharacters = chars
	}
}

// WithExitHandler sets the function called on the exit notification.
// code is 0 if shutdown was requested first and 1 otherwise.
func WithExitHandler(fn func(code int)) ServerOption {
	return func(s *Server) {
		s.onExit = fn
	}
}

// NewServer creates a server that publishes through notifier.
func NewServer(notifier Notifier, opts ...ServerOption) *Server {
	s := &Server{
		notifier:          notifier,
		store:             NewDocumentStore(),
		rules:             NewRules(DefaultSource),
		log:               nopLogger{},
		name:              DefaultSource,
		triggerCharacters: DefaultTriggerCharacters,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Documents returns the server's document store.
func (s *Server) Documents() *DocumentStore {
	return s.store
}

// WorkspaceFolders returns the workspace folders the client reported.
func (s *Server) WorkspaceFolders() []protocol.WorkspaceFolder {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := make([]protocol.WorkspaceFolder, len(s.folders))
	copy(folders, s.folders)
	return folders
}

// IsShutdown reports whether shutdown has been received.
func (s *Server) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// --- Lifecycle ---

// Initialize answers the initialize handshake with the server capabilities.
// The root URI and workspace folders are recorded but not validated.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.mu.Lock()
	s.rootURI = params.RootURI
	s.folders = append([]protocol.WorkspaceFolder(nil), params.WorkspaceFolders...)
	s.mu.Unlock()

	client := "unknown"
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	s.log.Info("initialize from %s (root %q, %d workspace folders)", client, params.RootURI, len(params.WorkspaceFolders))

	return &protocol.InitializeResult{
		Capabilities: NewServerCapabilities(s.triggerCharacters),
		ServerInfo: &protocol.ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(context.Context, *protocol.InitializedParams) error {
	s.log.Debug("client initialized")
	return nil
}

// Shutdown marks the server as shut down. Only exit is accepted afterwards.
func (s *Server) Shutdown(context.Context, *struct{}) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.log.Info("shutdown requested with %d open documents", s.store.Len())
	return nil, nil
}

// Exit invokes the exit handler.
func (s *Server) Exit(context.Context, *struct{}) error {
	code := 1
	if s.IsShutdown() {
		code = 0
	}
	s.log.Info("exit (code %d)", code)

	if s.onExit != nil {
		s.onExit(code)
	}
	return nil
}

// DidChangeWorkspaceFolders applies added and removed workspace folders.
func (s *Server) DidChangeWorkspaceFolders(_ context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]bool, len(params.Event.Removed))
	for _, f := range params.Event.Removed {
		removed[f.URI] = true
	}

	folders := s.folders[:0]
	for _, f := range s.folders {
		if !removed[f.URI] {
			folders = append(folders, f)
		}
	}
	s.folders = append(folders, params.Event.Added...)

	s.log.Debug("workspace folders: +%d -%d", len(params.Event.Added), len(params.Event.Removed))
	return nil
}

// --- Document synchronization ---

// DidOpen stores the opened document and publishes the open-time diagnostics.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.store.Open(params.TextDocument)
	s.log.Debug("opened %s (version %d, %d bytes)", doc.URI, doc.Version, len(doc.Text))

	return s.publish(ctx, doc.URI, &doc.Version, s.rules.ForOpen(doc.Text))
}

// DidChange replaces the document text and publishes the change-time diagnostics.
// Empty or incremental changes are rejected and leave the stored text untouched.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	doc, err := s.store.Change(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		return err
	}
	s.log.Debug("changed %s (version %d, %d bytes)", doc.URI, doc.Version, len(doc.Text))

	return s.publish(ctx, doc.URI, &doc.Version, s.rules.ForChange(doc.Text))
}

// DidSave publishes an empty diagnostic set, clearing the document's diagnostics.
// Text included with the save replaces the stored text.
func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	doc, ok := s.store.Save(uri, params.Text)
	if !ok {
		s.log.Debug("save for unopened document %s", uri)
		return s.publish(ctx, uri, nil, s.rules.ForSave(params.Text))
	}

	return s.publish(ctx, uri, &doc.Version, s.rules.ForSave(doc.Text))
}

// DidClose releases the document. No diagnostics are published.
func (s *Server) DidClose(_ context.Context, params *protocol.DidCloseTextDocumentParams) error {
	if err := s.store.Close(params.TextDocument.URI); err != nil {
		return err
	}
	s.log.Debug("closed %s", params.TextDocument.URI)
	return nil
}

// --- Language features ---

// CodeAction returns the uppercase quick fix for the lowercase-run
// diagnostics in the request context.
func (s *Server) CodeAction(_ context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	actions := BuildCodeActions(s.rules, params.TextDocument.URI, params.Context.Diagnostics, params.Context.Only)
	s.log.Debug("code actions for %s: %d from %d diagnostics", params.TextDocument.URI, len(actions), len(params.Context.Diagnostics))
	return actions, nil
}

// Completion returns the static completion list.
func (s *Server) Completion(context.Context, *protocol.CompletionParams) (*protocol.CompletionList, error) {
	list := StaticCompletions()
	return &list, nil
}

// Formatting returns the edit that uppercases every lowercase run in the
// stored text. A document that is not open yields no edits.
func (s *Server) Formatting(_ context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	text, ok := s.store.Text(params.TextDocument.URI)
	if !ok {
		s.log.Warn("formatting: %v", &DocumentError{URI: params.TextDocument.URI, Err: ErrDocumentNotOpen})
		return []protocol.TextEdit{}, nil
	}
	return FormatText(text), nil
}

// publishDiagnosticsParams is the publishDiagnostics payload. Version shadows
// the embedded field, which drops version 0 because of its omitempty tag;
// nil leaves the version out for documents that are not open.
type publishDiagnosticsParams struct {
	protocol.PublishDiagnosticsParams
	Version *int32 `json:"version,omitempty"`
}

// publish sends a full diagnostic set for uri, superseding the previous one.
func (s *Server) publish(ctx context.Context, uri protocol.DocumentURI, version *int32, diagnostics []protocol.Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	if s.notifier == nil {
		return nil
	}

	params := publishDiagnosticsParams{
		PublishDiagnosticsParams: protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: diagnostics,
		},
		Version: version,
	}
	if err := s.notifier.Notify(ctx, MethodPublishDiagnostics.String(), params); err != nil {
		return fmt.Errorf("publish diagnostics for %s: %w", uri, err)
	}

	s.log.Debug("published %d diagnostics for %s", len(diagnostics), uri)
	return nil
}
