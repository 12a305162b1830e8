package lsp

import (
	"sort"
	"sync"
	"time"

	"go.lsp.dev/protocol"
)

// DocumentState is the lifecycle state of a stored document.
// Unopened and closed documents are simply absent from the store.
type DocumentState int

const (
	// DocumentOpen is the state right after didOpen.
	DocumentOpen DocumentState = iota + 1
	// DocumentChanged is the state after at least one didChange.
	DocumentChanged
	// DocumentSaved is the state after didSave.
	DocumentSaved
)

// String returns the state name.
func (s DocumentState) String() string {
	switch s {
	case DocumentOpen:
		return "open"
	case DocumentChanged:
		return "changed"
	case DocumentSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Document is a snapshot of one open text document.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID protocol.LanguageIdentifier
	Version    int32
	Text       string
	State      DocumentState

	OpenedAt   time.Time
	ModifiedAt time.Time
}

// DocumentStore holds the full text of every open document, keyed by URI.
// Each write replaces a document's text in one step; text is never partially
// applied. The store is owned by one Server and safe for concurrent use.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	now func() time.Time
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[protocol.DocumentURI]*Document),
		now:       time.Now,
	}
}

// Open stores item as the current text of its URI, replacing any previous entry.
func (ds *DocumentStore) Open(item protocol.TextDocumentItem) Document {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := ds.now()
	doc := &Document{
		URI:        item.URI,
		LanguageID: item.LanguageID,
		Version:    item.Version,
		Text:       item.Text,
		State:      DocumentOpen,
		OpenedAt:   now,
		ModifiedAt: now,
	}
	ds.documents[item.URI] = doc
	return *doc
}

// Change applies a full-document change at the client's version. Only the
// first change event is used and it must carry the whole text; ranged events
// are rejected because the server advertises full sync and has no merge logic.
func (ds *DocumentStore) Change(uri protocol.DocumentURI, version int32, changes []protocol.TextDocumentContentChangeEvent) (Document, error) {
	if len(changes) == 0 {
		return Document{}, &DocumentError{URI: uri, Err: ErrNoContentChanges}
	}
	change := changes[0]
	if !isFullChange(change) {
		return Document{}, &DocumentError{URI: uri, Err: ErrIncrementalChange}
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc, exists := ds.documents[uri]
	if !exists {
		return Document{}, &DocumentError{URI: uri, Err: ErrDocumentNotOpen}
	}

	doc.Version = version
	doc.Text = change.Text
	doc.State = DocumentChanged
	doc.ModifiedAt = ds.now()

	return *doc, nil
}

// isFullChange reports whether change replaces the whole document. The wire
// type carries the range by value, so a full change is one with neither a
// range nor a range length. An insertion at 0:0 sent as a ranged event looks
// the same and is treated as full text.
func isFullChange(change protocol.TextDocumentContentChangeEvent) bool {
	return change.Range == (protocol.Range{}) && change.RangeLength == 0
}

// Save marks a document saved. Non-empty text replaces the stored text; an
// empty text means the client did not include it. Reports false if the
// document is not open.
func (ds *DocumentStore) Save(uri protocol.DocumentURI, text string) (Document, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc, exists := ds.documents[uri]
	if !exists {
		return Document{}, false
	}

	if text != "" && text != doc.Text {
		doc.Text = text
		doc.ModifiedAt = ds.now()
	}
	doc.State = DocumentSaved

	return *doc, true
}

// Close drops the document and all state kept for it.
func (ds *DocumentStore) Close(uri protocol.DocumentURI) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.documents[uri]; !exists {
		return &DocumentError{URI: uri, Err: ErrDocumentNotOpen}
	}
	delete(ds.documents, uri)
	return nil
}

// Get returns a copy of the document for uri.
func (ds *DocumentStore) Get(uri protocol.DocumentURI) (Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	doc, exists := ds.documents[uri]
	if !exists {
		return Document{}, false
	}
	return *doc, true
}

// Text returns the current text of uri.
func (ds *DocumentStore) Text(uri protocol.DocumentURI) (string, bool) {
	doc, ok := ds.Get(uri)
	return doc.Text, ok
}

// URIs returns the URIs of all open documents, sorted.
func (ds *DocumentStore) URIs() []protocol.DocumentURI {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	uris := make([]protocol.DocumentURI, 0, len(ds.documents))
	for uri := range ds.documents {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	return uris
}

// Len returns the number of open documents.
func (ds *DocumentStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.documents)
}
