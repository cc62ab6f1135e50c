package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/gkg/knowledgegraph/internal/model"
)

// NewPythonAnalyzer returns an Analyzer for Python source, extracting
// module-level functions, class definitions and their methods, imports
// (both "import x" and "from x import y" forms), and call references.
func NewPythonAnalyzer() Analyzer {
	return &treeSitterAnalyzer{
		language:   "python",
		extensions: []string{".py", ".pyi", ".pyw"},
		tsLanguage: python.GetLanguage(),
		extract:    extractPython,
	}
}

func extractPython(relPath string, root *sitter.Node, source []byte) Result {
	var res Result
	walkPythonScope(root, source, relPath, "", &res)
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			res.ImportedSymbols = append(res.ImportedSymbols, pythonImports(n, source, relPath)...)
		case "call":
			if ref, ok := pythonCallReference(n, source); ok {
				res.References = append(res.References, ref)
			}
		}
		return true
	})
	return res
}

// walkPythonScope recursively extracts function_definition and
// class_definition nodes, tracking enclosing scope so methods get an
// FQN of Class.method rather than colliding with top-level functions of
// the same name. FQNs carry no module prefix: a top-level function's FQN
// is its bare name, and the resolver scopes it by the defining file.
func walkPythonScope(n *sitter.Node, source []byte, relPath, scope string, res *Result) {
	body := n
	if n.Type() == "module" {
		body = n
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "function_definition":
			if d, ok := pythonFunctionDef(c, source, relPath, scope); ok {
				res.Definitions = append(res.Definitions, d)
			}
		case "class_definition":
			if d, ok := pythonClassDef(c, source, relPath, scope); ok {
				res.Definitions = append(res.Definitions, d)
				classBody := childOfType(c, "block")
				if classBody != nil {
					walkPythonScope(classBody, source, relPath, d.FQN, res)
				}
			}
		case "block", "if_statement", "try_statement", "with_statement":
			walkPythonScope(c, source, relPath, scope, res)
		}
	}
}

func pythonFunctionDef(n *sitter.Node, source []byte, relPath, scope string) (model.Definition, bool) {
	id := childOfType(n, "identifier")
	if id == nil {
		return model.Definition{}, false
	}
	name := content(id, source)
	kind := model.DefKindFunction
	if scope != "" {
		kind = model.DefKindMethod
	}
	lr := lineRange(n)
	return model.Definition{
		FQN:             joinFQN(scope, name),
		Kind:            kind,
		PrimaryLocation: locationFor(relPath, n, lr),
		EnclosingScope:  scope,
	}, true
}

func pythonClassDef(n *sitter.Node, source []byte, relPath, scope string) (model.Definition, bool) {
	id := childOfType(n, "identifier")
	if id == nil {
		return model.Definition{}, false
	}
	name := content(id, source)
	lr := lineRange(n)
	return model.Definition{
		FQN:             joinFQN(scope, name),
		Kind:            model.DefKindClass,
		PrimaryLocation: locationFor(relPath, n, lr),
		EnclosingScope:  scope,
	}, true
}

func pythonImports(n *sitter.Node, source []byte, relPath string) []model.ImportedSymbol {
	lr := lineRange(n)
	lines := model.LineRange{StartLine: lr[0], EndLine: lr[1]}

	if n.Type() == "import_statement" {
		var out []model.ImportedSymbol
		for _, nameNode := range childrenOfType(n, "dotted_name") {
			out = append(out, model.ImportedSymbol{
				FilePath:   relPath,
				Form:       "import",
				Name:       lastDotSegment(content(nameNode, source)),
				Lines:      lines,
				TargetPath: content(nameNode, source),
			})
		}
		for _, aliased := range childrenOfType(n, "aliased_import") {
			dotted := childOfType(aliased, "dotted_name")
			alias := childOfType(aliased, "identifier")
			if dotted == nil {
				continue
			}
			out = append(out, model.ImportedSymbol{
				FilePath:   relPath,
				Form:       "import",
				Name:       lastDotSegment(content(dotted, source)),
				Lines:      lines,
				TargetPath: content(dotted, source),
				Alias:      content(alias, source),
			})
		}
		return out
	}

	// from x import y, z  /  from x import *
	moduleNode := childOfType(n, "dotted_name")
	modulePath := ""
	if moduleNode != nil {
		modulePath = content(moduleNode, source)
	}
	var out []model.ImportedSymbol
	if wildcard := childOfType(n, "wildcard_import"); wildcard != nil {
		out = append(out, model.ImportedSymbol{
			FilePath:   relPath,
			Form:       "from-import",
			Name:       "*",
			Wildcard:   true,
			Lines:      lines,
			TargetPath: modulePath,
		})
		return out
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "dotted_name":
			if content(c, source) == modulePath {
				continue
			}
			out = append(out, model.ImportedSymbol{
				FilePath:   relPath,
				Form:       "from-import",
				Name:       content(c, source),
				Lines:      lines,
				TargetPath: modulePath,
			})
		case "aliased_import":
			dotted := childOfType(c, "dotted_name")
			alias := childOfType(c, "identifier")
			if dotted == nil {
				continue
			}
			out = append(out, model.ImportedSymbol{
				FilePath:   relPath,
				Form:       "from-import",
				Name:       content(dotted, source),
				Lines:      lines,
				TargetPath: modulePath,
				Alias:      content(alias, source),
			})
		}
	}
	return out
}

func pythonCallReference(n *sitter.Node, source []byte) (Reference, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		fn = n.Child(0)
	}
	chain := pythonExprChain(fn, source)
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

func pythonExprChain(n *sitter.Node, source []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []string{content(n, source)}
	case "attribute":
		object := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		chain := pythonExprChain(object, source)
		if attr != nil {
			chain = append(chain, content(attr, source))
		}
		return chain
	default:
		return nil
	}
}

func lastDotSegment(s string) string {
	idx := strings.LastIndexByte(s, '.')
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}
