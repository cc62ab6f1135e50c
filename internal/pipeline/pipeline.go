// Package pipeline implements the two-stage async parse pipeline (spec C4):
// Stage A reads discovered files off disk on a bounded worker pool, Stage B
// hands their bytes to the language Analyzer registry on a separate bounded
// worker pool. Both stages stream through channels so a project's files
// never all sit in memory at once, and backpressure on either stage throttles
// the other via the bounded channel between them.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/discovery"
	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// Options configures pipeline concurrency and limits.
type Options struct {
	ReaderConcurrency int   // Stage A worker count
	ParserConcurrency int   // Stage B worker count
	BufferSize        int   // channel capacity between stages
	MaxFileSize       int64 // files larger than this are skipped with an Item error
}

// Item is one file's pipeline output: either a parsed Result or an Err that
// is local to this file and never aborts the rest of the project.
type Item struct {
	File        discovery.File
	ContentHash string
	Size        int64
	Analysis    analyzer.Result
	Err         error
}

// readJob is the unit of work handed from the discovery walk to Stage A.
type readJob struct {
	file discovery.File
}

// parseJob is the unit of work handed from Stage A to Stage B.
type parseJob struct {
	file        discovery.File
	source      []byte
	contentHash string
	size        int64
}

// Run drives files from in (typically discovery.Walker.Walk's output channel)
// through Stage A (read) and Stage B (analyze), emitting one Item per file on
// the returned channel. The returned channel is closed once every input file
// has been processed or ctx is cancelled.
func Run(ctx context.Context, in <-chan discovery.Result, reg *analyzer.Registry, opts Options) <-chan Item {
	if opts.ReaderConcurrency < 1 {
		opts.ReaderConcurrency = 1
	}
	if opts.ParserConcurrency < 1 {
		opts.ParserConcurrency = 1
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 64
	}

	readJobs := make(chan readJob, opts.BufferSize)
	parseJobs := make(chan parseJob, opts.BufferSize)
	out := make(chan Item, opts.BufferSize)

	// Feed Stage A from the discovery walk, surfacing walk errors directly
	// as Items so a single unreadable directory entry never kills the run.
	go func() {
		defer close(readJobs)
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-in:
				if !ok {
					return
				}
				if res.Err != nil {
					select {
					case out <- Item{Err: res.Err}:
					case <-ctx.Done():
					}
					continue
				}
				select {
				case readJobs <- readJob{file: *res.File}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	stageA, stageACtx := errgroup.WithContext(ctx)
	for i := 0; i < opts.ReaderConcurrency; i++ {
		stageA.Go(func() error {
			for job := range readJobs {
				source, hash, size, err := readFile(job.file.AbsPath, opts.MaxFileSize)
				if err != nil {
					select {
					case out <- Item{File: job.file, Err: err}:
					case <-stageACtx.Done():
						return stageACtx.Err()
					}
					continue
				}
				select {
				case parseJobs <- parseJob{file: job.file, source: source, contentHash: hash, size: size}:
				case <-stageACtx.Done():
					return stageACtx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = stageA.Wait()
		close(parseJobs)
	}()

	stageB, stageBCtx := errgroup.WithContext(ctx)
	for i := 0; i < opts.ParserConcurrency; i++ {
		stageB.Go(func() error {
			for job := range parseJobs {
				item := Item{
					File:        job.file,
					ContentHash: job.contentHash,
					Size:        job.size,
				}
				a, ok := reg.For(job.file.Language)
				if !ok {
					// Unsupported language: the file is still a graph node
					// (File), it just contributes no Definitions/Imports.
					select {
					case out <- item:
					case <-stageBCtx.Done():
						return stageBCtx.Err()
					}
					continue
				}
				result, err := a.Analyze(stageBCtx, job.file.RelPath, job.source)
				if err != nil {
					item.Err = err
				} else {
					item.Analysis = result
				}
				select {
				case out <- item:
				case <-stageBCtx.Done():
					return stageBCtx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = stageB.Wait()
		close(out)
	}()

	return out
}

func readFile(absPath string, maxSize int64) ([]byte, string, int64, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, "", 0, gkgerrors.New(gkgerrors.ErrCodeFileNotFound, "failed to stat "+absPath, err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, "", 0, gkgerrors.New(gkgerrors.ErrCodeFileTooLarge, "file exceeds max size: "+absPath, nil)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, "", 0, gkgerrors.New(gkgerrors.ErrCodeFileNotFound, "failed to read "+absPath, err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), int64(len(data)), nil
}

// ToFileNode builds the graph store's File node for one pipeline Item.
func ToFileNode(projectHash string, item Item) model.File {
	return model.File{
		ProjectHash: projectHash,
		RelPath:     item.File.RelPath,
		AbsPath:     item.File.AbsPath,
		Language:    item.File.Language,
		Extension:   extOf(item.File.RelPath),
		ContentHash: item.ContentHash,
		Size:        item.Size,
	}
}

func extOf(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		switch relPath[i] {
		case '.':
			return relPath[i:]
		case '/':
			return ""
		}
	}
	return ""
}
