// Package analyzer extracts definitions, imports, and unresolved references
// from source file bytes (spec C4's Analyzer abstraction). Parsing is
// per-file and stateless; cross-file resolution is the resolver package's
// job (spec C5).
package analyzer

import (
	"context"

	"github.com/gkg/knowledgegraph/internal/model"
)

// Reference is a syntactic, not-yet-resolved name occurrence — a bare
// identifier or a dotted expression chain ("pkg.Func", "obj.method") found
// somewhere a Definition is referenced or called. The resolver walks
// Chain left to right applying shadowing rules (spec C5).
type Reference struct {
	Chain      []string // e.g. ["pkg", "Func"] for pkg.Func(...)
	Lines      model.LineRange
	IsCall     bool
	FromFQN    string // enclosing definition's FQN, "" if file-scoped
}

// Result is everything a single file analysis produces.
type Result struct {
	Definitions     []model.Definition
	ImportedSymbols []model.ImportedSymbol
	References      []Reference
}

// Analyzer parses one file's bytes into a Result. Implementations are
// pure functions of (path, source) with no shared mutable state (each
// Analyze call uses its own tree-sitter parser), so the pipeline's worker
// pool (C4 Stage B) can share one Analyzer across worker goroutines.
type Analyzer interface {
	// Languages lists the language tags (matching discovery.DetectLanguage
	// output) this Analyzer can parse.
	Languages() []string
	// Analyze parses source and extracts definitions/imports/references.
	// A parse error for one file is local: it never aborts the project.
	Analyze(ctx context.Context, relPath string, source []byte) (Result, error)
}

// Registry dispatches to the right Analyzer for a file's language.
type Registry struct {
	byLanguage map[string]Analyzer
}

// NewRegistry builds a Registry from a set of Analyzers, indexing each by
// every language it declares support for. A later Analyzer registered for
// the same language tag replaces the earlier one.
func NewRegistry(analyzers ...Analyzer) *Registry {
	r := &Registry{byLanguage: make(map[string]Analyzer)}
	for _, a := range analyzers {
		for _, lang := range a.Languages() {
			r.byLanguage[lang] = a
		}
	}
	return r
}

// For returns the Analyzer registered for a language, if any.
func (r *Registry) For(language string) (Analyzer, bool) {
	a, ok := r.byLanguage[language]
	return a, ok
}

// SupportedLanguages lists every language with a registered Analyzer.
func (r *Registry) SupportedLanguages() []string {
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}
