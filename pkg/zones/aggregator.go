package zones

import (
	"context"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/zonegen/pkg/claims"
)

// DefaultExtension is the suffix of claim record files.
const DefaultExtension = ".yml"

// RecordParser parses one claim record.
type RecordParser interface {
	Parse(ctx context.Context, source string, reader io.Reader) claims.Result
}

// HeightSampler reports the surface height at a block column.
type HeightSampler interface {
	SampleTopSolidY(world claims.World, x, z int) (int, bool)
}

// Stats counts what a collection pass saw.
type Stats struct {
	FilesSeen      int
	Accepted       int
	Dropped        int
	ReadErrors     int
	CornersSampled int
	CornersFound   int
}

// Collection is the result of walking a records directory.
type Collection struct {
	Buckets Buckets

	// Records holds every accepted record, in the order zones were appended.
	Records []claims.Record

	Stats Stats
}

// Aggregator walks a directory of claim records and buckets the parsed zones
// by world.
type Aggregator struct {
	parser    RecordParser
	extension string
	sampler   HeightSampler
	logger    *log.Logger
}

// NewAggregator creates an aggregator. An empty extension means
// DefaultExtension; a nil sampler disables elevation sampling.
func NewAggregator(parser RecordParser, extension string, sampler HeightSampler, logger *log.Logger) *Aggregator {
	if extension == "" {
		extension = DefaultExtension
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		parser:    parser,
		extension: extension,
		sampler:   sampler,
		logger:    logger,
	}
}

// Collect parses every record file under dir. Unreadable files and rejected
// records are logged and skipped; only a failure to walk dir itself is
// returned, together with whatever was collected before it.
func (aggregator *Aggregator) Collect(ctx context.Context, dir string) (Collection, error) {
	collection := Collection{Buckets: make(Buckets)}

	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			aggregator.logger.Printf("warning: skipping %s: %v", path, err)
			collection.Stats.ReadErrors++
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), aggregator.extension) {
			return nil
		}

		collection.Stats.FilesSeen++
		aggregator.collectFile(ctx, path, entry.Name(), &collection)
		return nil
	})

	if aggregator.sampler != nil {
		aggregator.applyElevations(&collection)
	}

	return collection, walkErr
}

func (aggregator *Aggregator) collectFile(ctx context.Context, path, name string, collection *Collection) {
	file, err := os.Open(path)
	if err != nil {
		aggregator.logger.Printf("warning: error parsing %s: %v", name, err)
		collection.Stats.ReadErrors++
		return
	}
	defer file.Close()

	result := aggregator.parser.Parse(ctx, name, file)
	if !result.OK() {
		aggregator.logger.Printf("warning: dropping %v", result.Err)
		collection.Stats.Dropped++
		return
	}

	record := result.Record
	collection.Buckets[record.World] = append(collection.Buckets[record.World], FromRecord(record))
	collection.Records = append(collection.Records, record)
	collection.Stats.Accepted++
}

type column struct {
	x, z int
}

// applyElevations samples each distinct corner column once per world and
// attaches the height to every zone corner at that column.
func (aggregator *Aggregator) applyElevations(collection *Collection) {
	for world, zones := range collection.Buckets {
		heights := make(map[column]*int)
		sample := func(x, z int) *int {
			key := column{x: x, z: z}
			if height, seen := heights[key]; seen {
				return height
			}
			collection.Stats.CornersSampled++
			var height *int
			if y, found := aggregator.sampler.SampleTopSolidY(world, x, z); found {
				height = &y
				collection.Stats.CornersFound++
			}
			heights[key] = height
			return height
		}

		for i := range zones {
			zone := &zones[i]
			zone.ElNE = cloneInt(sample(zone.E, zone.N))
			zone.ElSE = cloneInt(sample(zone.E, zone.S))
			zone.ElNW = cloneInt(sample(zone.W, zone.N))
			zone.ElSW = cloneInt(sample(zone.W, zone.S))
		}
	}
}
