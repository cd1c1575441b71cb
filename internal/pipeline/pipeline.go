// Package pipeline orchestrates a full run: clone the project tree,
// build the prepass snapshot, discover and classify functions, write
// the audit dumps, then rewrite eligible files in parallel.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Swingft/dyncall/internal/audit"
	"github.com/Swingft/dyncall/internal/classify"
	"github.com/Swingft/dyncall/internal/discover"
	"github.com/Swingft/dyncall/internal/logx"
	"github.com/Swingft/dyncall/internal/prepass"
	"github.com/Swingft/dyncall/internal/rewrite"
)

// Options configures one run.
type Options struct {
	Source string
	// Target is where the rewritten tree lands. Equal to Source (or
	// empty) means rewrite in place without cloning.
	Target    string
	Overwrite bool

	DryRun          bool
	Inject          bool
	SkipUI          bool
	IncludePackages bool
	IncludeRisky    bool
	Jobs            int

	ExceptionFiles []string
	Policy         classify.Policy
	Dumps          audit.Options
}

// Summary is what a run reports back.
type Summary struct {
	Root             string
	FilesScanned     int
	Discovered       int
	Excluded         int
	Safe             int
	Risky            int
	FilesTouched     int
	FunctionsWrapped int
}

// Run executes the whole pipeline and returns its summary. Exception
// file problems are fatal; per-file read errors during discovery are
// skips.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	root := opts.Target
	if root == "" || samePath(opts.Source, opts.Target) {
		root = opts.Source
	} else {
		if err := CopyTree(opts.Source, opts.Target, opts.Overwrite); err != nil {
			return nil, err
		}
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	rules, err := classify.LoadRules(opts.ExceptionFiles)
	if err != nil {
		return nil, err
	}
	logx.Infof("loaded %d exception rules", len(rules))
	fileExcludes := classify.FileExcludeGlobs(rules)
	if len(fileExcludes) > 0 {
		logx.Debugf("file exclusion patterns: %d", len(fileExcludes))
	}

	// The prepass reads every source in scope, UI files included, so
	// extension resolution sees types declared in skipped files.
	allFiles, err := discover.ListSwiftFiles(rootAbs, discover.WalkOptions{
		IncludePackages: opts.IncludePackages,
		ExcludeGlobs:    fileExcludes,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	snap, err := prepass.Collect(allFiles)
	if err != nil {
		return nil, err
	}
	logx.Debugf("prepass: %s", snap.Describe())

	scanFiles, err := discover.ListSwiftFiles(rootAbs, discover.WalkOptions{
		SkipUI:          opts.SkipUI,
		IncludePackages: opts.IncludePackages,
		ExcludeGlobs:    fileExcludes,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	funcs, err := discover.ScanProject(rootAbs, scanFiles, snap)
	if err != nil {
		return nil, err
	}
	logx.Infof("discovered %d functions", len(funcs))

	included, excluded := classify.PartitionByExceptions(funcs, rules)
	safe, risky := classify.PartitionRisky(included, opts.Policy.KeepOverrides)

	dumps := opts.Dumps
	if dumps.Dir == "" {
		dumps.Dir = filepath.Join(rootAbs, audit.DumpDirName)
	}
	if err := audit.Write(dumps, audit.Stages{
		All:      funcs,
		Clean:    included,
		Excluded: excluded,
		Safe:     safe,
		Risky:    risky,
	}); err != nil {
		return nil, err
	}
	logx.Infof("found %d safe functions to obfuscate", len(safe))

	sum := &Summary{
		Root:         rootAbs,
		FilesScanned: len(scanFiles),
		Discovered:   len(funcs),
		Excluded:     len(excluded),
		Safe:         len(safe),
		Risky:        len(risky),
	}
	if !opts.Inject {
		return sum, nil
	}

	targets := safe
	if opts.IncludeRisky {
		targets = append(append([]discover.FunctionRecord{}, safe...), risky...)
	}
	byFile := map[string][]discover.FunctionRecord{}
	for _, f := range targets {
		byFile[f.File] = append(byFile[f.File], f)
	}

	type workItem struct {
		abs string
		rel string
	}
	var work []workItem
	for _, abs := range scanFiles {
		rel, relErr := filepath.Rel(rootAbs, abs)
		if relErr != nil {
			return nil, relErr
		}
		rel = filepath.ToSlash(rel)
		if len(byFile[rel]) == 0 {
			continue
		}
		work = append(work, workItem{abs: abs, rel: rel})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	rw := &rewrite.Rewriter{Policy: opts.Policy, DryRun: opts.DryRun}
	results := make([]rewrite.FileResult, len(work))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, item := range work {
		i, item := i, item
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := rw.RewriteFile(item.abs, item.rel, byFile[item.rel])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Touched {
			sum.FilesTouched++
		}
		sum.FunctionsWrapped += r.Wrapped
	}
	logx.Infof("in-file injection complete: files_touched=%d, wrapped_funcs=%d", sum.FilesTouched, sum.FunctionsWrapped)
	logx.Infof("output project: %s", rootAbs)
	return sum, nil
}
