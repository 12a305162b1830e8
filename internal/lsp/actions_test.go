package lsp

import (
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/protocol"
)

func lowercaseDiag(source string, rng protocol.Range, data any) protocol.Diagnostic {
	return protocol.Diagnostic{
		Source:   source,
		Range:    rng,
		Message:  MessageLowercaseRun,
		Severity: protocol.DiagnosticSeverityInformation,
		Code:     CodeLowercaseRun,
		Data:     data,
	}
}

func TestBuildCodeActions_SingleDiagnostic(t *testing.T) {
	rules := NewRules("test")
	rng := protocol.Range{Start: protocol.Position{Line: 2, Character: 4}, End: protocol.Position{Line: 2, Character: 5}}
	uri := protocol.DocumentURI("file:///a.txt")

	actions := BuildCodeActions(rules, uri, []protocol.Diagnostic{lowercaseDiag("test", rng, "X")}, nil)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}

	action := actions[0]
	if action.Title != TitleUppercase {
		t.Errorf("Title = %q, want %q", action.Title, TitleUppercase)
	}
	if action.Kind != protocol.QuickFix {
		t.Errorf("Kind = %q, want quickfix", action.Kind)
	}
	if action.Edit == nil {
		t.Fatal("Edit is nil")
	}

	edits := action.Edit.Changes[uri]
	if len(edits) != 1 {
		t.Fatalf("got %d edits, want 1", len(edits))
	}
	if edits[0].Range != rng || edits[0].NewText != "X" {
		t.Errorf("edit = %+v, want {%+v X}", edits[0], rng)
	}
	if len(action.Diagnostics) != 1 {
		t.Errorf("action lists %d diagnostics, want 1", len(action.Diagnostics))
	}
}

func TestBuildCodeActions_ListsAllMatchedDiagnostics(t *testing.T) {
	rules := NewRules("test")
	uri := protocol.DocumentURI("file:///a.txt")
	diags := rules.ForChange("ab CD ef")

	actions := BuildCodeActions(rules, uri, diags, nil)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}

	action := actions[0]
	if len(action.Diagnostics) != 2 {
		t.Fatalf("action lists %d diagnostics, want 2", len(action.Diagnostics))
	}
	edits := action.Edit.Changes[uri]
	if len(edits) != 2 {
		t.Fatalf("got %d edits, want 2", len(edits))
	}

	want := []string{"AB", "EF"}
	for i, e := range edits {
		if e.NewText != want[i] {
			t.Errorf("edit[%d].NewText = %q, want %q", i, e.NewText, want[i])
		}
		if e.Range != action.Diagnostics[i].Range {
			t.Errorf("edit[%d].Range = %+v, want %+v", i, e.Range, action.Diagnostics[i].Range)
		}
	}
}

func TestBuildCodeActions_NoMatch(t *testing.T) {
	rules := NewRules("test")
	rng := protocol.Range{End: protocol.Position{Character: 1}}

	tests := []struct {
		name  string
		diags []protocol.Diagnostic
	}{
		{"nil context", nil},
		{"empty context", []protocol.Diagnostic{}},
		{"other source", []protocol.Diagnostic{lowercaseDiag("other", rng, "A")}},
		{"open placeholder", rules.ForOpen("")},
		{"data missing", []protocol.Diagnostic{lowercaseDiag("test", rng, nil)}},
		{"data not a string", []protocol.Diagnostic{lowercaseDiag("test", rng, 42.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := BuildCodeActions(rules, "file:///a.txt", tt.diags, nil)
			if actions == nil || len(actions) != 0 {
				t.Errorf("got %#v, want empty non-nil slice", actions)
			}
		})
	}
}

func TestBuildCodeActions_SkipsForeignDiagnostics(t *testing.T) {
	rules := NewRules("test")
	rng := protocol.Range{End: protocol.Position{Character: 2}}
	diags := []protocol.Diagnostic{
		lowercaseDiag("other", rng, "NO"),
		lowercaseDiag("test", rng, "YES"),
	}

	actions := BuildCodeActions(rules, "file:///a.txt", diags, nil)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	edits := actions[0].Edit.Changes["file:///a.txt"]
	if len(edits) != 1 || edits[0].NewText != "YES" {
		t.Errorf("edits = %+v, want single YES edit", edits)
	}
}

func TestBuildCodeActions_OnlyFilter(t *testing.T) {
	rules := NewRules("test")
	diags := rules.ForChange("abc")

	tests := []struct {
		name string
		only []protocol.CodeActionKind
		want int
	}{
		{"no filter", nil, 1},
		{"empty filter", []protocol.CodeActionKind{}, 1},
		{"quickfix", []protocol.CodeActionKind{protocol.QuickFix}, 1},
		{"quickfix among others", []protocol.CodeActionKind{protocol.Refactor, protocol.QuickFix}, 1},
		{"refactor only", []protocol.CodeActionKind{protocol.Refactor}, 0},
		{"source only", []protocol.CodeActionKind{protocol.Source}, 0},
		{"narrower quickfix kind", []protocol.CodeActionKind{"quickfix.uppercase"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := BuildCodeActions(rules, "file:///a.txt", diags, tt.only)
			if actions == nil {
				t.Fatal("got nil, want non-nil slice")
			}
			if len(actions) != tt.want {
				t.Errorf("got %d actions, want %d", len(actions), tt.want)
			}
		})
	}
}

func TestKindRequested(t *testing.T) {
	tests := []struct {
		only []protocol.CodeActionKind
		kind protocol.CodeActionKind
		want bool
	}{
		{nil, protocol.QuickFix, true},
		{[]protocol.CodeActionKind{protocol.QuickFix}, protocol.QuickFix, true},
		{[]protocol.CodeActionKind{protocol.Refactor}, protocol.RefactorExtract, true},
		{[]protocol.CodeActionKind{protocol.Refactor}, protocol.QuickFix, false},
		{[]protocol.CodeActionKind{"quick"}, protocol.QuickFix, false},
	}

	for _, tt := range tests {
		if got := kindRequested(tt.only, tt.kind); got != tt.want {
			t.Errorf("kindRequested(%v, %q) = %v, want %v", tt.only, tt.kind, got, tt.want)
		}
	}
}

// Diagnostics come back from the client as JSON; data must survive decoding.
func TestBuildCodeActions_FromClientJSON(t *testing.T) {
	rules := NewRules("test")
	published := rules.ForChange("abc")

	raw, err := json.Marshal(protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.txt"},
		Range:        published[0].Range,
		Context:      protocol.CodeActionContext{Diagnostics: published},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var params protocol.CodeActionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	actions := BuildCodeActions(rules, params.TextDocument.URI, params.Context.Diagnostics, params.Context.Only)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if got := actions[0].Edit.Changes["file:///a.txt"][0].NewText; got != "ABC" {
		t.Errorf("NewText = %q, want %q", got, "ABC")
	}
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		newText string
		endLine uint32
	}{
		{"empty", "", "", 1},
		{"trailing newline", "abc\nDEF\n", "ABC\nDEF\n", 3},
		{"no trailing newline", "abc\ndef", "ABC\nDEF", 2},
		{"no lowercase", "ABC 123\n", "ABC 123\n", 2},
		{"mixed", "Hello world", "HELLO WORLD", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := FormatText(tt.text)
			if len(edits) != 1 {
				t.Fatalf("got %d edits, want 1", len(edits))
			}

			e := edits[0]
			if e.NewText != tt.newText {
				t.Errorf("NewText = %q, want %q", e.NewText, tt.newText)
			}
			if e.Range.Start != (protocol.Position{}) {
				t.Errorf("Start = %+v, want 0:0", e.Range.Start)
			}
			if e.Range.End != (protocol.Position{Line: tt.endLine, Character: 0}) {
				t.Errorf("End = %+v, want %d:0", e.Range.End, tt.endLine)
			}
		})
	}
}

func TestFormatText_Idempotent(t *testing.T) {
	for _, text := range []string{"abc\nDEF\n", "mixed Case here", "a1b2c3", "ÅäÖ xyz"} {
		once := FormatText(text)[0].NewText
		twice := FormatText(once)[0].NewText
		if once != twice {
			t.Errorf("FormatText not idempotent for %q: %q then %q", text, once, twice)
		}
	}
}

func TestFormatText_RoundTripWithoutLowercase(t *testing.T) {
	for _, text := range []string{"", "ABC", "123\n456\n", "UPPER_CASE = 1\n"} {
		if strings.ContainsAny(text, "abcdefghijklmnopqrstuvwxyz") {
			t.Fatalf("bad fixture %q", text)
		}
		if got := FormatText(text)[0].NewText; got != text {
			t.Errorf("FormatText(%q) = %q, want unchanged", text, got)
		}
	}
}
