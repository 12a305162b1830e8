package lsp

import (
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
)

// Diagnostic codes produced by the rules. Code actions match on them.
const (
	// CodeOpenPlaceholder marks the fixed diagnostic published on didOpen.
	CodeOpenPlaceholder = "open-placeholder"

	// CodeLowercaseRun marks a run of lowercase ASCII letters found on didChange.
	CodeLowercaseRun = "lowercase-run"
)

// Diagnostic messages.
const (
	MessageOpenPlaceholder = "warning placeholder up to line 5, character 5"
	MessageLowercaseRun    = "lowercase alphabetic character(s)"
)

// DefaultSource is the diagnostic source used when none is configured.
const DefaultSource = "lsesample"

// lowercaseRun matches maximal runs of lowercase ASCII letters.
var lowercaseRun = regexp.MustCompile(`[a-z]+`)

// Rules computes diagnostics from document text. It holds no state besides the
// source identifier, so every method is a pure function of its input.
type Rules struct {
	Source string
}

// NewRules returns rules that stamp diagnostics with source.
// An empty source falls back to DefaultSource.
func NewRules(source string) Rules {
	if source == "" {
		source = DefaultSource
	}
	return Rules{Source: source}
}

// ForOpen returns the diagnostics published when a document is opened.
// The result is the same single warning for every text, including empty text.
func (r Rules) ForOpen(_ string) []protocol.Diagnostic {
	return []protocol.Diagnostic{{
		Source: r.Source,
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 5, Character: 5},
		},
		Message:  MessageOpenPlaceholder,
		Severity: protocol.DiagnosticSeverityWarning,
		Code:     CodeOpenPlaceholder,
	}}
}

// ForChange returns one Information diagnostic per lowercase run, in line
// order and then column order. Data carries the run uppercased.
func (r Rules) ForChange(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for row, line := range splitLines(text) {
		for _, m := range lowercaseRun.FindAllStringIndex(line, -1) {
			run := line[m[0]:m[1]]
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Source:   r.Source,
				Range:    lineRange(row, line, m[0], m[1]),
				Message:  MessageLowercaseRun,
				Severity: protocol.DiagnosticSeverityInformation,
				Code:     CodeLowercaseRun,
				Data:     strings.ToUpper(run),
			})
		}
	}
	return diagnostics
}

// ForSave returns the diagnostics published on save: none, which clears the
// client's decorations for the document.
func (r Rules) ForSave(_ string) []protocol.Diagnostic {
	return []protocol.Diagnostic{}
}

// IsLowercaseRun reports whether d was produced by ForChange under this source.
func (r Rules) IsLowercaseRun(d protocol.Diagnostic) bool {
	if d.Source != r.Source {
		return false
	}
	code, ok := d.Code.(string)
	return ok && code == CodeLowercaseRun
}

// UppercaseRuns replaces every lowercase run in text with its uppercase form.
// All other characters are left unchanged.
func UppercaseRuns(text string) string {
	return lowercaseRun.ReplaceAllStringFunc(text, strings.ToUpper)
}
