package analyzer

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
)

// treeSitterAnalyzer is the common shape shared by every tree-sitter-backed
// Analyzer: a single tree-sitter grammar, plus a language-specific
// extraction function run over the parsed tree.
//
// A *sitter.Parser is not safe for concurrent use, so Analyze creates a
// fresh parser on every call; one Analyzer instance can therefore be shared
// by all of the pipeline's worker goroutines (C4 Stage B).
type treeSitterAnalyzer struct {
	language   string
	extensions []string
	tsLanguage *sitter.Language
	extract    func(relPath string, root *sitter.Node, source []byte) Result
}

func (a *treeSitterAnalyzer) Languages() []string { return []string{a.language} }

func (a *treeSitterAnalyzer) Analyze(ctx context.Context, relPath string, source []byte) (Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(a.tsLanguage)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return Result{}, gkgerrors.New(gkgerrors.ErrCodeParseFailed, "failed to parse "+relPath, err)
	}
	if tree == nil {
		return Result{}, gkgerrors.New(gkgerrors.ErrCodeParseFailed, "parser returned no tree for "+relPath, nil)
	}
	defer tree.Close()

	return a.extract(relPath, tree.RootNode(), source), nil
}

// walk calls fn for n and every descendant, depth-first.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

func childOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == nodeType {
			return c
		}
	}
	return nil
}

func childrenOfType(n *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == nodeType {
			out = append(out, c)
		}
	}
	return out
}

func content(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}

func lineRange(n *sitter.Node) (lr [2]int) {
	return [2]int{int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1}
}
