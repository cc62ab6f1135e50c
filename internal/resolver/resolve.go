package resolver

import (
	"strings"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/model"
)

// Resolve runs phase 2 (expression resolution) over every file's imports
// and references, returning the full set of relationship edges for this
// project. Imports edges are always emitted (they require no resolution);
// references edges are emitted only when the full chain walks to a known
// definition, and resolves-to edges only when the import's target is found
// (a named member's definition, or for a plain module import the file that
// defines that module).
func (r *Resolver) Resolve() []model.Relationship {
	moduleIndex := r.buildModuleIndex()

	var edges []model.Relationship
	for _, f := range r.files {
		for _, imp := range f.Imports {
			edges = append(edges, model.Relationship{
				ProjectHash: r.projectHash,
				Kind:        model.RelImports,
				FromKey:     f.File.Key(),
				ToKey:       imp.Key(),
			})
			if target, ok := r.resolveImport(f, imp, moduleIndex); ok {
				edges = append(edges, model.Relationship{
					ProjectHash: r.projectHash,
					Kind:        model.RelResolvesTo,
					FromKey:     imp.Key(),
					ToKey:       target.ToKey,
					Ambiguous:   target.Ambiguous,
				})
			}
		}

		for _, ref := range f.References {
			target, ambiguous, ok := r.resolveChain(f, ref.Chain)
			if !ok {
				continue
			}
			fromKey := r.enclosingDefinitionKey(f, ref)
			if fromKey == "" {
				continue
			}
			lines := ref.Lines
			edges = append(edges, model.Relationship{
				ProjectHash: r.projectHash,
				Kind:        model.RelReferences,
				FromKey:     fromKey,
				ToKey:       target.Key(),
				CallSite:    &lines,
				Ambiguous:   ambiguous || target.Ambiguous,
			})
		}
	}
	return edges
}

type resolvedTarget struct {
	ToKey     string
	Ambiguous bool
}

// buildModuleIndex maps a plausible module/package path string to the
// scope name used as a packageMembers key, so an import's TargetPath
// (syntactic, e.g. "github.com/org/repo/widgets" or "widgets.shapes") can
// be matched against the packages and files this project actually defines.
func (r *Resolver) buildModuleIndex() map[string]string {
	idx := make(map[string]string)
	for scope := range r.packageMembers {
		idx[scope] = scope
		idx[lastSegment(scope)] = scope
	}
	for relPath := range r.files {
		idx[dottedModulePath(relPath)] = relPath
	}
	return idx
}

func (r *Resolver) resolveImport(f *FileFacts, imp model.ImportedSymbol, moduleIndex map[string]string) (resolvedTarget, bool) {
	if imp.Wildcard {
		return resolvedTarget{}, false
	}
	scope, ok := moduleIndex[imp.TargetPath]
	if !ok {
		scope, ok = moduleIndex[lastSegment(imp.TargetPath)]
	}
	if !ok {
		return resolvedTarget{}, false
	}

	if imp.Form == "from-import" {
		defs, ok := r.packageMembers[scope][imp.Name]
		if !ok || len(defs) == 0 {
			return resolvedTarget{}, false
		}
		return resolvedTarget{ToKey: defs[0].Key(), Ambiguous: len(defs) > 1}, true
	}

	// Plain module import: resolve to the file that defines the target
	// scope, as the closest available representation of "this package".
	if file, ok := r.files[scope]; ok {
		return resolvedTarget{ToKey: file.File.Key()}, true
	}
	for _, other := range r.files {
		for _, d := range other.Definitions {
			if packageScope(*other, d) == scope {
				return resolvedTarget{ToKey: other.File.Key()}, true
			}
		}
	}
	return resolvedTarget{}, false
}

type resolveContext struct {
	def   *model.Definition
	scope string
}

func (r *Resolver) resolveChain(f *FileFacts, chain []string) (model.Definition, bool, bool) {
	if len(chain) == 0 {
		return model.Definition{}, false, false
	}

	cacheKey := f.File.RelPath + "\x00" + strings.Join(chain, ".")
	if cached, ok := r.chainCache.Get(cacheKey); ok {
		if cached == "" {
			return model.Definition{}, false, false
		}
		defs := r.defsByFQN[cached]
		if len(defs) == 0 {
			return model.Definition{}, false, false
		}
		return defs[0], len(defs) > 1, true
	}

	ctx, ok := r.resolveHead(f, chain[0])
	if !ok {
		r.chainCache.Add(cacheKey, "")
		return model.Definition{}, false, false
	}

	ambiguous := false
	for _, seg := range chain[1:] {
		next, nextAmbiguous, ok := r.resolveMember(ctx, seg)
		if !ok {
			r.chainCache.Add(cacheKey, "")
			return model.Definition{}, false, false
		}
		ambiguous = ambiguous || nextAmbiguous
		ctx = next
	}

	if ctx.def == nil {
		r.chainCache.Add(cacheKey, "")
		return model.Definition{}, false, false
	}
	r.chainCache.Add(cacheKey, ctx.def.FQN)
	return *ctx.def, ambiguous || ctx.def.Ambiguous, true
}

// resolveHead applies the shadowing priority from spec 4.5: same-file
// definitions first, then explicit imports, then same-package members,
// then wildcard-imported members.
func (r *Resolver) resolveHead(f *FileFacts, name string) (resolveContext, bool) {
	for _, d := range f.Definitions {
		if simpleName(d.FQN) == name {
			if canon, ok := r.canonical(d.FQN); ok {
				return resolveContext{def: &canon}, true
			}
		}
	}

	for _, imp := range f.Imports {
		if imp.Wildcard {
			continue
		}
		alias := imp.Alias
		if alias == "" {
			alias = imp.Name
		}
		if alias == name {
			if scope := r.scopeForImport(imp); scope != "" {
				return resolveContext{scope: scope}, true
			}
		}
	}

	fileScope := filePackageScope(f)
	if defs, ok := r.packageMembers[fileScope][name]; ok && len(defs) > 0 {
		if d, ok := r.canonical(defs[0].FQN); ok {
			return resolveContext{def: &d}, true
		}
	}

	for _, imp := range f.Imports {
		if !imp.Wildcard {
			continue
		}
		scope := r.scopeForImport(imp)
		if scope == "" {
			continue
		}
		if defs, ok := r.packageMembers[scope][name]; ok && len(defs) > 0 {
			if d, ok := r.canonical(defs[0].FQN); ok {
				return resolveContext{def: &d}, true
			}
		}
	}

	return resolveContext{}, false
}

// canonical returns the defsByFQN copy of a definition, which carries the
// project-wide Ambiguous flag (set after phase 1 groups every Definition by
// FQN); packageMembers entries are separate struct copies from before that
// flag was applied.
func (r *Resolver) canonical(fqn string) (model.Definition, bool) {
	defs, ok := r.defsByFQN[fqn]
	if !ok || len(defs) == 0 {
		return model.Definition{}, false
	}
	return defs[0], true
}

func (r *Resolver) resolveMember(ctx resolveContext, seg string) (resolveContext, bool, bool) {
	if ctx.def != nil {
		fqn := ctx.def.FQN + "." + seg
		defs, ok := r.defsByFQN[fqn]
		if !ok || len(defs) == 0 {
			return resolveContext{}, false, false
		}
		dCopy := defs[0]
		return resolveContext{def: &dCopy}, len(defs) > 1, true
	}
	if ctx.scope != "" {
		defs, ok := r.packageMembers[ctx.scope][seg]
		if !ok || len(defs) == 0 {
			return resolveContext{}, false, false
		}
		d, ok := r.canonical(defs[0].FQN)
		if !ok {
			return resolveContext{}, false, false
		}
		return resolveContext{def: &d}, len(defs) > 1, true
	}
	return resolveContext{}, false, false
}

// scopeForImport resolves an import to the packageMembers scope it points
// at, using the same TargetPath matching as the module index.
func (r *Resolver) scopeForImport(imp model.ImportedSymbol) string {
	if _, ok := r.packageMembers[imp.TargetPath]; ok {
		return imp.TargetPath
	}
	last := lastSegment(imp.TargetPath)
	if _, ok := r.packageMembers[last]; ok {
		return last
	}
	if _, ok := r.files[imp.TargetPath]; ok {
		return imp.TargetPath
	}
	return ""
}

// filePackageScope is the scope name this file's own top-level definitions
// are grouped under (its Go package, or the file itself for languages with
// no cross-file package grouping in this model).
func filePackageScope(f *FileFacts) string {
	for _, d := range f.Definitions {
		if d.EnclosingScope != "" && !strings.Contains(d.EnclosingScope, ".") {
			return d.EnclosingScope
		}
	}
	return f.File.RelPath
}

// enclosingDefinitionKey finds the definition whose primary location
// contains the reference's line range, i.e. the caller side of a
// References edge. Returns "" if the reference sits outside any known
// definition (e.g. a package-level call in an init block) — the narrowest
// containing definition wins, so a call inside a method resolves to the
// method rather than an enclosing type.
func (r *Resolver) enclosingDefinitionKey(f *FileFacts, ref analyzer.Reference) string {
	var best *model.Definition
	bestSpan := -1
	for i, d := range f.Definitions {
		lr := d.PrimaryLocation.Lines
		if ref.Lines.StartLine < lr.StartLine || ref.Lines.StartLine > lr.EndLine {
			continue
		}
		span := lr.EndLine - lr.StartLine
		if best == nil || span < bestSpan {
			best = &f.Definitions[i]
			bestSpan = span
		}
	}
	if best == nil {
		return ""
	}
	return best.Key()
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}

func dottedModulePath(relPath string) string {
	trimmed := relPath
	if idx := strings.LastIndexByte(trimmed, '.'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}
