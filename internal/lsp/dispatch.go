package lsp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Method is one of the LSP methods this server knows. The set is closed:
// anything else is answered by jsonrpc2.MethodNotFoundHandler.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodShutdown
	MethodExit
	MethodDidOpen
	MethodDidChange
	MethodDidSave
	MethodDidClose
	MethodCodeAction
	MethodCompletion
	MethodFormatting
	MethodDidChangeWorkspaceFolders

	// MethodPublishDiagnostics is sent by the server and never dispatched.
	MethodPublishDiagnostics
)

type methodKind int

const (
	kindRequest methodKind = iota
	kindNotification
	kindOutgoing
)

type methodInfo struct {
	name string
	kind methodKind
}

var methodTable = map[Method]methodInfo{
	MethodInitialize:                {protocol.MethodInitialize, kindRequest},
	MethodInitialized:               {protocol.MethodInitialized, kindNotification},
	MethodShutdown:                  {protocol.MethodShutdown, kindRequest},
	MethodExit:                      {protocol.MethodExit, kindNotification},
	MethodDidOpen:                   {protocol.MethodTextDocumentDidOpen, kindNotification},
	MethodDidChange:                 {protocol.MethodTextDocumentDidChange, kindNotification},
	MethodDidSave:                   {protocol.MethodTextDocumentDidSave, kindNotification},
	MethodDidClose:                  {protocol.MethodTextDocumentDidClose, kindNotification},
	MethodCodeAction:                {protocol.MethodTextDocumentCodeAction, kindRequest},
	MethodCompletion:                {protocol.MethodTextDocumentCompletion, kindRequest},
	MethodFormatting:                {protocol.MethodTextDocumentFormatting, kindRequest},
	MethodDidChangeWorkspaceFolders: {protocol.MethodWorkspaceDidChangeWorkspaceFolders, kindNotification},
	MethodPublishDiagnostics:        {protocol.MethodTextDocumentPublishDiagnostics, kindOutgoing},
}

var inboundMethods = func() map[string]Method {
	m := make(map[string]Method, len(methodTable))
	for method, info := range methodTable {
		if info.kind != kindOutgoing {
			m[info.name] = method
		}
	}
	return m
}()

// String returns the wire name of the method.
func (m Method) String() string {
	if info, ok := methodTable[m]; ok {
		return info.name
	}
	return "unknown"
}

// IsNotification reports whether the method is an inbound notification.
func (m Method) IsNotification() bool {
	info, ok := methodTable[m]
	return ok && info.kind == kindNotification
}

// ParseMethod maps a wire method name to a Method the server handles.
func ParseMethod(name string) (Method, bool) {
	m, ok := inboundMethods[name]
	return m, ok
}

// Handler returns the jsonrpc2 handler that dispatches to the server.
//
// The connection calls it synchronously from its read loop, so messages are
// handled one at a time in arrival order. It never returns a handler error for
// bad input, since that would close the connection: malformed requests get an
// InvalidParams reply and malformed notifications are logged and dropped.
func (s *Server) Handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		method, ok := ParseMethod(req.Method())
		if !ok {
			s.log.Debug("method not found: %s", req.Method())
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}

		if method != MethodExit && s.IsShutdown() {
			if method.IsNotification() {
				s.log.Warn("%s after shutdown ignored", method)
				return reply(ctx, nil, nil)
			}
			return reply(ctx, nil, fmt.Errorf("%s: %w: %w", method, ErrShutdown, jsonrpc2.ErrInvalidRequest))
		}

		s.log.Debug("<- %s", method)

		switch method {
		case MethodInitialize:
			return handleRequest(ctx, s.log, reply, req, s.Initialize)
		case MethodInitialized:
			return handleNotification(ctx, s.log, reply, req, s.Initialized)
		case MethodShutdown:
			return handleRequest(ctx, s.log, reply, req, s.Shutdown)
		case MethodExit:
			return handleNotification(ctx, s.log, reply, req, s.Exit)
		case MethodDidOpen:
			return handleNotification(ctx, s.log, reply, req, s.DidOpen)
		case MethodDidChange:
			return handleNotification(ctx, s.log, reply, req, s.DidChange)
		case MethodDidSave:
			return handleNotification(ctx, s.log, reply, req, s.DidSave)
		case MethodDidClose:
			return handleNotification(ctx, s.log, reply, req, s.DidClose)
		case MethodCodeAction:
			return handleRequest(ctx, s.log, reply, req, s.CodeAction)
		case MethodCompletion:
			return handleRequest(ctx, s.log, reply, req, s.Completion)
		case MethodFormatting:
			return handleRequest(ctx, s.log, reply, req, s.Formatting)
		case MethodDidChangeWorkspaceFolders:
			return handleNotification(ctx, s.log, reply, req, s.DidChangeWorkspaceFolders)
		default:
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}
	}
}

// handleRequest decodes the params of a request, runs fn and replies with its result.
func handleRequest[P, R any](ctx context.Context, log Logger, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context, *P) (R, error)) error {
	var params P
	if err := decodeParams(req.Params(), &params); err != nil {
		log.Warn("%s: %v", req.Method(), err)
		return reply(ctx, nil, fmt.Errorf("%s: %w", req.Method(), jsonrpc2.ErrInvalidParams))
	}

	result, err := fn(ctx, &params)
	if err != nil {
		log.Error("%s: %v", req.Method(), err)
		return reply(ctx, nil, err)
	}
	return reply(ctx, result, nil)
}

// handleNotification decodes the params of a notification and runs fn.
// Failures are logged; the notification is then a no-op.
func handleNotification[P any](ctx context.Context, log Logger, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context, *P) error) error {
	var params P
	if err := decodeParams(req.Params(), &params); err != nil {
		log.Warn("%s: %v", req.Method(), err)
		return reply(ctx, nil, nil)
	}

	if err := fn(ctx, &params); err != nil {
		log.Warn("%s: %v", req.Method(), err)
	}
	return reply(ctx, nil, nil)
}

// decodeParams unmarshals raw into v. Absent or null params leave v zeroed.
func decodeParams(raw []byte, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
