package lsp

import (
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
)

// Standard errors returned by the server.
var (
	// ErrDocumentNotOpen indicates the document is not open.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrNoContentChanges indicates a didChange carried an empty contentChanges list.
	ErrNoContentChanges = errors.New("no content changes")

	// ErrIncrementalChange indicates a ranged change arrived while syncing full documents.
	ErrIncrementalChange = errors.New("incremental change not supported")

	// ErrShutdown indicates the server received shutdown and only accepts exit.
	ErrShutdown = errors.New("server shut down")
)

// DocumentError ties an error to the document it occurred on.
type DocumentError struct {
	URI protocol.DocumentURI
	Err error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying error.
func (e *DocumentError) Unwrap() error {
	return e.Err
}
