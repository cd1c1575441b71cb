// Package api provides the public API for using the obfuscator as a
// library.
//
// It exposes the same pipeline the command line drives: clone a Swift
// project tree, classify its functions, and rewrite eligible calls to
// dispatch through generated per-file route tables.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "dyncall.yaml"})
//	if err != nil {
//	    log.Fatalf("failed to create obfuscator: %v", err)
//	}
//
//	summary, err := obf.ObfuscateTree(context.Background(), "./MyApp", "./MyApp_obf")
//	if err != nil {
//	    log.Fatalf("obfuscation failed: %v", err)
//	}
//	fmt.Printf("wrapped %d functions\n", summary.FunctionsWrapped)
package api

import (
	"context"
	"fmt"

	"github.com/Swingft/dyncall/internal/audit"
	"github.com/Swingft/dyncall/internal/config"
	"github.com/Swingft/dyncall/internal/logx"
	"github.com/Swingft/dyncall/internal/pipeline"
)

// Summary reports what one run did.
type Summary = pipeline.Summary

// Obfuscator encapsulates a loaded configuration and runs the
// rewrite pipeline against project trees.
type Obfuscator struct {
	Config *config.Config
}

// Options configures a new Obfuscator.
type Options struct {
	// ConfigPath is the path to a YAML configuration file. If empty,
	// default configuration is used.
	ConfigPath string

	// Silent suppresses informational messages.
	Silent bool
}

// NewObfuscator creates an Obfuscator from the given options.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if options.Silent {
		cfg.Silent = true
	}
	logx.Silent = cfg.Silent
	logx.Debug = cfg.Debug
	return &Obfuscator{Config: cfg}, nil
}

func (o *Obfuscator) options(src, dst string) pipeline.Options {
	c := o.Config
	return pipeline.Options{
		Source:          src,
		Target:          dst,
		Overwrite:       c.Overwrite,
		DryRun:          c.DryRun,
		Inject:          c.Inject,
		SkipUI:          c.SkipUI,
		IncludePackages: c.IncludePackages,
		IncludeRisky:    c.IncludeRisky,
		Jobs:            c.Jobs,
		ExceptionFiles:  c.Exceptions,
		Policy:          c.Policy.Classify(),
		Dumps:           audit.Options{Dir: c.DumpDir},
	}
}

// ObfuscateTree clones src into dst and rewrites eligible functions.
// Passing dst equal to src (or empty) rewrites in place.
func (o *Obfuscator) ObfuscateTree(ctx context.Context, src, dst string) (*Summary, error) {
	return pipeline.Run(ctx, o.options(src, dst))
}

// ScanTree classifies the project at src and writes the scan dumps
// without modifying any source file.
func (o *Obfuscator) ScanTree(ctx context.Context, src string) (*Summary, error) {
	opts := o.options(src, src)
	opts.DryRun = true
	return pipeline.Run(ctx, opts)
}
