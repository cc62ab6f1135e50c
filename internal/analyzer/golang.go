package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/gkg/knowledgegraph/internal/model"
)

// NewGoAnalyzer returns an Analyzer for Go source, extracting package-level
// functions, methods (keyed by receiver type), struct/interface/alias type
// declarations, top-level const/var declarations, imports, and call-site
// references.
func NewGoAnalyzer() Analyzer {
	return &treeSitterAnalyzer{
		language:   "go",
		extensions: []string{".go"},
		tsLanguage: golang.GetLanguage(),
		extract:    extractGo,
	}
}

func extractGo(relPath string, root *sitter.Node, source []byte) Result {
	pkg := goPackageName(root, source)

	var res Result
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_declaration":
			if d, ok := goFunctionDef(n, source, relPath, pkg); ok {
				res.Definitions = append(res.Definitions, d)
			}
		case "method_declaration":
			if d, ok := goMethodDef(n, source, relPath, pkg); ok {
				res.Definitions = append(res.Definitions, d)
			}
		case "type_declaration":
			res.Definitions = append(res.Definitions, goTypeDefs(n, source, relPath, pkg)...)
		case "const_declaration":
			res.Definitions = append(res.Definitions, goValueDefs(n, source, relPath, pkg, model.DefKindConstant, "const_spec")...)
		case "var_declaration":
			res.Definitions = append(res.Definitions, goValueDefs(n, source, relPath, pkg, model.DefKindVariable, "var_spec")...)
		case "import_declaration":
			res.ImportedSymbols = append(res.ImportedSymbols, goImports(n, source, relPath)...)
		case "call_expression":
			if ref, ok := goCallReference(n, source); ok {
				res.References = append(res.References, ref)
			}
		}
		return true
	})
	return res
}

func goPackageName(root *sitter.Node, source []byte) string {
	clause := childOfType(root, "package_clause")
	if clause == nil {
		return ""
	}
	if id := childOfType(clause, "package_identifier"); id != nil {
		return content(id, source)
	}
	return ""
}

func goFunctionDef(n *sitter.Node, source []byte, relPath, pkg string) (model.Definition, bool) {
	id := childOfType(n, "identifier")
	if id == nil {
		return model.Definition{}, false
	}
	name := content(id, source)
	lr := lineRange(n)
	return model.Definition{
		FQN:             joinFQN(pkg, name),
		Kind:            model.DefKindFunction,
		PrimaryLocation: locationFor(relPath, n, lr),
		EnclosingScope:  pkg,
	}, true
}

func goMethodDef(n *sitter.Node, source []byte, relPath, pkg string) (model.Definition, bool) {
	nameNode := childOfType(n, "field_identifier")
	if nameNode == nil {
		return model.Definition{}, false
	}
	name := content(nameNode, source)
	receiver := goReceiverType(n, source)
	lr := lineRange(n)
	scope := joinFQN(pkg, receiver)
	return model.Definition{
		FQN:             joinFQN(scope, name),
		Kind:            model.DefKindMethod,
		PrimaryLocation: locationFor(relPath, n, lr),
		EnclosingScope:  scope,
	}, true
}

// goReceiverType extracts the bare type name from a method's receiver
// parameter list, stripping a leading pointer "*".
func goReceiverType(n *sitter.Node, source []byte) string {
	params := childOfType(n, "parameter_list")
	if params == nil {
		return ""
	}
	decl := childOfType(params, "parameter_declaration")
	if decl == nil {
		return ""
	}
	for i := 0; i < int(decl.ChildCount()); i++ {
		c := decl.Child(i)
		switch c.Type() {
		case "type_identifier":
			return content(c, source)
		case "pointer_type":
			if id := childOfType(c, "type_identifier"); id != nil {
				return content(id, source)
			}
		}
	}
	return ""
}

func goTypeDefs(n *sitter.Node, source []byte, relPath, pkg string) []model.Definition {
	var defs []model.Definition
	for _, spec := range append(childrenOfType(n, "type_spec"), childrenOfType(n, "type_alias")...) {
		id := childOfType(spec, "type_identifier")
		if id == nil {
			continue
		}
		name := content(id, source)
		kind := model.DefKindClass
		for i := 0; i < int(spec.ChildCount()); i++ {
			switch spec.Child(i).Type() {
			case "interface_type":
				kind = model.DefKindInterface
			}
		}
		lr := lineRange(spec)
		defs = append(defs, model.Definition{
			FQN:             joinFQN(pkg, name),
			Kind:            kind,
			PrimaryLocation: locationFor(relPath, spec, lr),
			EnclosingScope:  pkg,
		})
	}
	return defs
}

func goValueDefs(n *sitter.Node, source []byte, relPath, pkg string, kind model.DefinitionKind, specType string) []model.Definition {
	var defs []model.Definition
	for _, spec := range childrenOfType(n, specType) {
		for _, id := range childrenOfType(spec, "identifier") {
			name := content(id, source)
			lr := lineRange(spec)
			defs = append(defs, model.Definition{
				FQN:             joinFQN(pkg, name),
				Kind:            kind,
				PrimaryLocation: locationFor(relPath, spec, lr),
				EnclosingScope:  pkg,
			})
		}
	}
	return defs
}

func goImports(n *sitter.Node, source []byte, relPath string) []model.ImportedSymbol {
	var specs []*sitter.Node
	if spec := childOfType(n, "import_spec"); spec != nil {
		specs = append(specs, spec)
	}
	if list := childOfType(n, "import_spec_list"); list != nil {
		specs = append(specs, childrenOfType(list, "import_spec")...)
	}

	var imports []model.ImportedSymbol
	for _, spec := range specs {
		pathNode := childOfType(spec, "interpreted_string_literal")
		if pathNode == nil {
			continue
		}
		rawPath := strings.Trim(content(pathNode, source), `"`)
		alias := ""
		wildcard := false
		name := lastPathSegment(rawPath)
		if id := childOfType(spec, "package_identifier"); id != nil {
			alias = content(id, source)
		} else if blank := childOfType(spec, "blank_identifier"); blank != nil {
			alias = "_"
		} else if dot := childOfType(spec, "dot"); dot != nil {
			wildcard = true
		}
		lr := lineRange(spec)
		imports = append(imports, model.ImportedSymbol{
			FilePath:   relPath,
			Form:       "import",
			Name:       name,
			Wildcard:   wildcard,
			Lines:      model.LineRange{StartLine: lr[0], EndLine: lr[1]},
			TargetPath: rawPath,
			Alias:      alias,
		})
	}
	return imports
}

func goCallReference(n *sitter.Node, source []byte) (Reference, bool) {
	fn := n.Child(0)
	if fn == nil {
		return Reference{}, false
	}
	chain := exprChain(fn, source)
	if len(chain) == 0 {
		return Reference{}, false
	}
	lr := lineRange(n)
	return Reference{
		Chain:  chain,
		Lines:  model.LineRange{StartLine: lr[0], EndLine: lr[1]},
		IsCall: true,
	}, true
}

// exprChain flattens a selector_expression / identifier into a left-to-
// right name chain, e.g. pkg.Sub.Func -> ["pkg", "Sub", "Func"].
func exprChain(n *sitter.Node, source []byte) []string {
	switch n.Type() {
	case "identifier", "field_identifier":
		return []string{content(n, source)}
	case "selector_expression":
		operand := n.ChildByFieldName("operand")
		field := n.ChildByFieldName("field")
		chain := exprChain(operand, source)
		if field != nil {
			chain = append(chain, content(field, source))
		}
		return chain
	default:
		return nil
	}
}

func lastPathSegment(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func joinFQN(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

func locationFor(relPath string, n *sitter.Node, lr [2]int) model.Location {
	return model.Location{
		FilePath: relPath,
		Lines:    model.LineRange{StartLine: lr[0], EndLine: lr[1]},
		Bytes:    model.ByteRange{StartByte: n.StartByte(), EndByte: n.EndByte()},
	}
}
