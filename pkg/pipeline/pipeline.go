// Package pipeline runs one complete generation: parse the claim records,
// resolve owners, compose the layers and write them into the output
// directory. Watch mode repeats the run whenever the records change.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/coolbeans/zonegen/pkg/claims"
	"github.com/coolbeans/zonegen/pkg/config"
	"github.com/coolbeans/zonegen/pkg/index"
	"github.com/coolbeans/zonegen/pkg/names"
	"github.com/coolbeans/zonegen/pkg/output"
	"github.com/coolbeans/zonegen/pkg/terrain"
	"github.com/coolbeans/zonegen/pkg/zones"
)

// Options configures a run.
type Options struct {
	RecordsDir string

	// SaveDir is the world save used for corner elevations. Empty disables
	// sampling.
	SaveDir string

	OutputDir string
	Config    config.Config

	// IndexPath is the SQLite claims index. Empty disables indexing.
	IndexPath string

	// HTTPClient overrides the client used for name lookups.
	HTTPClient names.HTTPClient

	Logger *log.Logger
}

// Summary reports what a run did.
type Summary struct {
	Collection   zones.Stats
	Names        names.Stats
	Layers       int
	Zones        int
	Bytes        int
	ZonesPath    string
	ScriptCopied bool
	IndexPatched bool
	RunID        int64
	Duration     time.Duration
}

// String renders the summary as one line for the console.
func (summary Summary) String() string {
	text := fmt.Sprintf("wrote %d layers with %s zones (%s) to %s in %s; %s files, %s accepted, %s dropped",
		summary.Layers,
		humanize.Comma(int64(summary.Zones)),
		humanize.Bytes(uint64(summary.Bytes)),
		summary.ZonesPath,
		summary.Duration.Round(time.Millisecond),
		humanize.Comma(int64(summary.Collection.FilesSeen)),
		humanize.Comma(int64(summary.Collection.Accepted)),
		humanize.Comma(int64(summary.Collection.Dropped)))
	if lookups := summary.Names; lookups.CacheHits+lookups.Lookups > 0 {
		text += fmt.Sprintf("; names: %d cached, %d looked up, %d failed", lookups.CacheHits, lookups.Lookups, lookups.Failures)
	}
	if summary.Collection.CornersSampled > 0 {
		text += fmt.Sprintf("; elevations: %d of %d corners", summary.Collection.CornersFound, summary.Collection.CornersSampled)
	}
	if summary.RunID > 0 {
		text += fmt.Sprintf("; indexed as run %d", summary.RunID)
	}
	return text
}

// Run performs one generation. Bad records, failed lookups and a missing
// script or index file are logged and do not fail the run. The name cache is
// written back even when a later step fails.
func Run(ctx context.Context, opts Options) (summary Summary, err error) {
	started := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config

	writer, err := output.NewWriter(opts.OutputDir, output.WriterConfig{
		ZonesFile:    cfg.Output.ZonesFile,
		ScriptSource: cfg.Output.ScriptSource,
		ScriptName:   cfg.Output.ScriptName,
		IndexFile:    cfg.Output.IndexFile,
		Anchor:       cfg.Output.Anchor,
	}, logger)
	if err != nil {
		return summary, err
	}

	patterns, err := cfg.WorldPatterns()
	if err != nil {
		return summary, err
	}

	var parser *claims.Parser
	if cfg.Names.Enabled {
		lookupConfig := cfg.LookupConfig()
		lookupConfig.HTTPClient = opts.HTTPClient
		resolver := names.NewResolver(
			names.NewCache(filepath.Join(opts.OutputDir, cfg.Names.CacheFile)),
			names.NewLookupClient(lookupConfig),
			logger,
		)
		defer func() {
			summary.Names = resolver.Stats()
			if flushErr := resolver.Flush(); flushErr != nil {
				err = errors.Join(err, fmt.Errorf("writing name cache: %w", flushErr))
			}
		}()
		parser = claims.NewParser(patterns, resolver)
	} else {
		parser = claims.NewParser(patterns, nil)
	}

	var sampler zones.HeightSampler
	if opts.SaveDir != "" {
		regionSampler := terrain.NewRegionSampler(opts.SaveDir, cfg.DiskDirs(), logger)
		defer regionSampler.Close()
		sampler = regionSampler
	}

	aggregator := zones.NewAggregator(parser, cfg.Records.Extension, sampler, logger)
	collection, err := aggregator.Collect(ctx, opts.RecordsDir)
	summary.Collection = collection.Stats
	if err != nil {
		return summary, fmt.Errorf("reading records: %w", err)
	}

	composer, err := zones.NewComposer(cfg.ComposerConfig(), logger)
	if err != nil {
		return summary, err
	}
	document := composer.Compose(collection.Buckets)
	summary.Layers, summary.Zones = document.Counts()

	written, err := writer.WriteDocument(document)
	if err != nil {
		return summary, err
	}
	summary.Bytes = written
	summary.ZonesPath = writer.ZonesPath()

	if summary.ScriptCopied, err = writer.SyncScript(); err != nil {
		return summary, err
	}
	if summary.IndexPatched, err = writer.PatchIndex(); err != nil {
		return summary, err
	}

	if opts.IndexPath != "" {
		if summary.RunID, err = recordRun(ctx, opts, started, collection); err != nil {
			return summary, err
		}
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

func recordRun(ctx context.Context, opts Options, started time.Time, collection zones.Collection) (int64, error) {
	claimsIndex, err := index.OpenSQLite(opts.IndexPath)
	if err != nil {
		return 0, fmt.Errorf("opening claims index: %w", err)
	}
	defer claimsIndex.Close()

	runID, err := claimsIndex.RecordRun(ctx, index.Run{
		StartedAt:  started,
		RecordsDir: opts.RecordsDir,
		Accepted:   collection.Stats.Accepted,
		Dropped:    collection.Stats.Dropped,
	}, collection.Records)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return runID, nil
}
