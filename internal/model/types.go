// Package model defines the entities and relationships persisted to the
// graph store. Identity and invariants follow the data model in the
// project specification: node identity is stable across re-indexings, and
// every File belongs to exactly one Directory in the same project.
package model

import (
	"strconv"
	"time"
)

// WorkspaceStatus is the aggregated indexing status of a workspace folder.
type WorkspaceStatus string

const (
	StatusUnindexed WorkspaceStatus = "unindexed"
	StatusIndexing  WorkspaceStatus = "indexing"
	StatusIndexed   WorkspaceStatus = "indexed"
	StatusPartial   WorkspaceStatus = "partial"
	StatusError     WorkspaceStatus = "error"
)

// Workspace is a user-nominated root directory that may contain one or more
// Projects.
type Workspace struct {
	Path            string // canonicalized, trailing-separator normalized
	DataDirName     string // 16-hex digest of Path
	Status          WorkspaceStatus
	LastIndexedAt   time.Time
	FrameworkVersion string
}

// Project is a single version-controlled repository inside a Workspace.
type Project struct {
	WorkspacePath string
	Path          string // absolute path
	Hash          string // 16-hex digest of Path
	Status        WorkspaceStatus
	LastIndexedAt time.Time
	ErrorMessage  string
}

// Directory is a filesystem directory belonging to exactly one Project.
type Directory struct {
	ProjectHash string
	RelPath     string // "." for the project root
	AbsPath     string
	RepoName    string
}

// Key returns the stable node key for this Directory.
func (d Directory) Key() string { return nodeKey(d.ProjectHash, "dir", d.RelPath) }

// File is a source file tracked by a Project.
type File struct {
	ProjectHash string
	RelPath     string
	AbsPath     string
	Language    string // "" if unrecognized
	Extension   string
	ContentHash string // sha256 of file contents
	Size        int64
}

// Key returns the stable node key for this File.
func (f File) Key() string { return nodeKey(f.ProjectHash, "file", f.RelPath) }

// DefinitionKind enumerates the kinds of named code entities an Analyzer can
// produce.
type DefinitionKind string

const (
	DefKindClass     DefinitionKind = "class"
	DefKindFunction  DefinitionKind = "function"
	DefKindMethod    DefinitionKind = "method"
	DefKindInterface DefinitionKind = "interface"
	DefKindEnum      DefinitionKind = "enum"
	DefKindConstant  DefinitionKind = "constant"
	DefKindVariable  DefinitionKind = "variable"
	DefKindLambda    DefinitionKind = "lambda"
)

// LineRange is an inclusive 1-indexed line range.
type LineRange struct {
	StartLine int
	EndLine   int
}

// ByteRange is a half-open byte offset range into the source file.
type ByteRange struct {
	StartByte uint32
	EndByte   uint32
}

// Location pairs a file-relative path with the ranges of a span within it.
type Location struct {
	FilePath string
	Lines    LineRange
	Bytes    ByteRange
}

// Definition is a named, callable-or-declarable code entity.
//
// Identity within a project is (PrimaryLocation.FilePath, FQN, Kind); this
// triple must be stable across re-indexings of unchanged source.
type Definition struct {
	ProjectHash       string
	FQN               string
	Kind              DefinitionKind
	PrimaryLocation   Location
	SecondaryLocations []Location // reopened/partial definitions
	Ambiguous         bool // true if >1 definition in the project shares this FQN
	EnclosingScope    string
}

// Key returns the stable node key for this Definition.
func (d Definition) Key() string {
	return nodeKey(d.ProjectHash, "def", d.PrimaryLocation.FilePath+"\x00"+d.FQN+"\x00"+string(d.Kind))
}

// ImportedSymbol is a syntactic import occurrence, possibly resolvable to a
// Definition.
type ImportedSymbol struct {
	ProjectHash string
	FilePath    string
	Form        string // import / include / require / equivalent
	Name        string // imported name, or "*" for a wildcard import
	Wildcard    bool
	Lines       LineRange
	TargetPath  string // syntactic, unresolved module/path
	Alias       string
}

// Key returns the stable node key for this ImportedSymbol.
func (s ImportedSymbol) Key() string {
	name := s.Name
	if s.Wildcard {
		name = "*"
	}
	return nodeKey(s.ProjectHash, "import", s.FilePath+"\x00"+s.Form+"\x00"+name+"\x00"+lineKey(s.Lines))
}

// RelationshipKind is the closed enumeration of edge types in the graph.
type RelationshipKind string

const (
	RelContainsDirectory RelationshipKind = "contains_directory"
	RelImports           RelationshipKind = "imports"
	RelResolvesTo        RelationshipKind = "resolves_to"
	RelReferences        RelationshipKind = "references"
)

// Relationship is a directed, typed edge between two node keys.
type Relationship struct {
	ProjectHash string
	Kind        RelationshipKind
	FromKey     string
	ToKey       string
	CallSite    *LineRange // set for References edges
	Ambiguous   bool       // propagated from the target Definition, if any
}

func nodeKey(projectHash, table, id string) string {
	return projectHash + ":" + table + ":" + id
}

func lineKey(r LineRange) string {
	return strconv.Itoa(r.StartLine) + "-" + strconv.Itoa(r.EndLine)
}
