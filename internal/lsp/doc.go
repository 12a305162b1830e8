// Package lsp implements the lsesample language server.
//
// The server tracks open documents and reports runs of lowercase ASCII
// letters as diagnostics, offers a quick fix that uppercases them, a
// formatter that does the same for the whole document, and a fixed
// completion list. It is a pattern-matching demonstration, not a parser.
//
// # Architecture
//
//   - Rules: pure functions from document text to diagnostics
//   - DocumentStore: per-URI full-text snapshots, replaced on open/change/save
//   - Server: typed handlers for each supported method
//   - Handler: adapts Server to a go.lsp.dev/jsonrpc2 connection
//
// # Usage
//
//	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
//	srv := lsp.NewServer(conn, lsp.WithSource("lsesample"))
//	conn.Go(ctx, srv.Handler())
//	<-conn.Done()
//
// # Synchronization
//
// The server advertises full-document sync. Every didChange must carry the
// entire new text as its first content change; ranged changes are rejected.
// Diagnostics are recomputed and republished wholesale on each event.
//
// # Thread Safety
//
// The jsonrpc2 connection runs the handler from its read loop, so messages
// are processed strictly in order. DocumentStore is additionally guarded by
// a lock and may be shared.
package lsp
