package discovery

import (
	"context"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/gitignore"
)

// gitignoreCacheSize bounds the number of per-directory gitignore matchers
// kept resident, mirroring the teacher scanner's cache sizing.
const gitignoreCacheSize = 1000

// File is a single discovered source file, ready for the parse pipeline's
// reader stage. Content hashing and size are deferred to that stage, which
// already reads the file's bytes.
type File struct {
	RelPath  string // relative to the project root
	AbsPath  string
	Language string // "" if unrecognized
}

// Result is sent on the Walk channel for both files and per-file errors,
// so one unreadable entry never aborts the whole walk.
type Result struct {
	File *File
	Err  error
}

// Options configures a Walk.
type Options struct {
	Include          []string
	Exclude          []string
	RespectGitignore bool
	MaxFileSize      int64
	FollowSymlinks   bool
}

// Walker performs gitignore-aware file enumeration under a project root
// (spec C3). It caches parsed .gitignore matchers per directory with LRU
// eviction.
type Walker struct {
	cache *lru.Cache[string, *gitignore.Matcher]
}

// NewWalker creates a Walker.
func NewWalker() (*Walker, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to create gitignore cache", err)
	}
	return &Walker{cache: cache}, nil
}

// Walk streams every indexable file under projectRoot on the returned
// channel, closing it when the walk completes or ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, projectRoot string, opts Options) <-chan Result {
	out := make(chan Result, 256)
	go func() {
		defer close(out)
		root := filepath.Clean(projectRoot)
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				out <- Result{Err: err}
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			if rel == "." {
				return nil
			}
			if d.IsDir() {
				if isAlwaysExcludedDir(d.Name()) {
					return filepath.SkipDir
				}
				if opts.RespectGitignore && w.dirIgnored(root, filepath.Dir(path), rel, true) {
					return filepath.SkipDir
				}
				if gitignore.MatchesAnyPattern(rel+"/", opts.Exclude) {
					return filepath.SkipDir
				}
				return nil
			}
			if !opts.FollowSymlinks && d.Type()&os.ModeSymlink != 0 {
				return nil
			}
			if len(opts.Include) > 0 && !gitignore.MatchesAnyPattern(rel, opts.Include) {
				return nil
			}
			if gitignore.MatchesAnyPattern(rel, opts.Exclude) {
				return nil
			}
			if opts.RespectGitignore && w.dirIgnored(root, filepath.Dir(path), rel, false) {
				return nil
			}
			if opts.MaxFileSize > 0 {
				info, statErr := d.Info()
				if statErr == nil && info.Size() > opts.MaxFileSize {
					return nil
				}
			}
			out <- Result{File: &File{RelPath: rel, AbsPath: path, Language: DetectLanguage(rel)}}
			return nil
		})
	}()
	return out
}

func isAlwaysExcludedDir(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", ".jj", "node_modules", ".gkg":
		return true
	default:
		return false
	}
}

// dirIgnored checks the gitignore chain from the project root down to dir
// for a match against rel. It walks upward looking for .gitignore files,
// caching the combined matcher per directory.
func (w *Walker) dirIgnored(root, dir, rel string, isDir bool) bool {
	matcher := w.matcherFor(root, dir)
	return matcher.Match(rel, isDir)
}

func (w *Walker) matcherFor(root, dir string) *gitignore.Matcher {
	if cached, ok := w.cache.Get(dir); ok {
		return cached
	}
	m := gitignore.New()
	var chain []string
	cur := dir
	for {
		chain = append(chain, cur)
		if cur == root {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		path := filepath.Join(d, ".gitignore")
		if _, err := os.Stat(path); err == nil {
			rel, err := filepath.Rel(root, d)
			if err != nil {
				rel = ""
			}
			if rel == "." {
				rel = ""
			}
			_ = m.AddFromFile(path, rel)
		}
	}
	w.cache.Add(dir, m)
	return m
}
