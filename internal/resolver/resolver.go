// Package resolver implements the Cross-File Resolver (spec C5): it joins
// the Parse Pipeline's per-file definitions, imports, and reference chains
// into Relationship edges within one project. Resolution never spans
// projects and never fabricates an edge for a chain it cannot fully walk —
// unresolved tails are dropped silently, per spec.
package resolver

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

const chainCacheSize = 4096

// FileFacts is one file's parse output, as produced by the pipeline and fed
// into the resolver.
type FileFacts struct {
	File        model.File
	Definitions []model.Definition
	Imports     []model.ImportedSymbol
	References  []analyzer.Reference
}

// Resolver builds a project's global symbol index and resolves references
// against it. One Resolver is scoped to a single project and discarded once
// its Resolve pass completes — it owns no state any other component reads.
type Resolver struct {
	projectHash string

	files map[string]*FileFacts

	// defsByFQN groups every Definition sharing an FQN; len > 1 means the
	// FQN is ambiguous across the project (spec 4.5 tie-break rule).
	defsByFQN map[string][]model.Definition

	// packageMembers maps a package/module scope to the simple names it
	// exports, for same-package and wildcard-import lookups.
	packageMembers map[string]map[string][]model.Definition

	// chainCache memoizes chain->FQN resolutions already computed in this
	// pass. This is the resolver's bounded accumulator (spec 4.4): a
	// performance cache, not part of the index itself, since dropping an
	// entry never loses correctness — it only costs a recompute.
	chainCache *lru.Cache[string, string]
}

// New builds a Resolver for one project from its files' parse facts. It
// performs phase 1 (global index construction) immediately; call Resolve to
// run phase 2 (expression resolution) and get back the relationship edges.
func New(projectHash string, facts []FileFacts) (*Resolver, error) {
	cache, err := lru.New[string, string](chainCacheSize)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to create resolver chain cache", err)
	}

	r := &Resolver{
		projectHash:    projectHash,
		files:          make(map[string]*FileFacts, len(facts)),
		defsByFQN:      make(map[string][]model.Definition),
		packageMembers: make(map[string]map[string][]model.Definition),
		chainCache:     cache,
	}

	for i := range facts {
		f := facts[i]
		r.files[f.File.RelPath] = &f
		for _, d := range f.Definitions {
			r.defsByFQN[d.FQN] = append(r.defsByFQN[d.FQN], d)
			scope := packageScope(f, d)
			if r.packageMembers[scope] == nil {
				r.packageMembers[scope] = make(map[string][]model.Definition)
			}
			name := simpleName(d.FQN)
			r.packageMembers[scope][name] = append(r.packageMembers[scope][name], d)
		}
	}

	for fqn, defs := range r.defsByFQN {
		if len(defs) > 1 {
			sortDefinitionsByLocation(defs)
			for i := range defs {
				defs[i].Ambiguous = true
			}
			r.defsByFQN[fqn] = defs
		}
	}

	return r, nil
}

// packageScope derives the scope a Definition's simple name is visible
// under for same-package lookups: its EnclosingScope when the language
// groups definitions under a named package/module (Go), or the defining
// file's path when it doesn't (Python has no cross-file package grouping
// in this model — each file is its own scope besides explicit imports).
func packageScope(f FileFacts, d model.Definition) string {
	if d.EnclosingScope != "" {
		return d.EnclosingScope
	}
	return f.File.RelPath
}

func sortDefinitionsByLocation(defs []model.Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].PrimaryLocation.FilePath != defs[j].PrimaryLocation.FilePath {
			return defs[i].PrimaryLocation.FilePath < defs[j].PrimaryLocation.FilePath
		}
		return defs[i].PrimaryLocation.Lines.StartLine < defs[j].PrimaryLocation.Lines.StartLine
	})
}

func simpleName(fqn string) string {
	for i := len(fqn) - 1; i >= 0; i-- {
		if fqn[i] == '.' {
			return fqn[i+1:]
		}
	}
	return fqn
}
