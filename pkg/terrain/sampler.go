package terrain

import (
	"log"
	"path/filepath"

	"github.com/coolbeans/zonegen/pkg/claims"
)

type chunkKey struct {
	world  claims.World
	cx, cz int
}

// RegionSampler answers surface-height queries from a world save. Region
// files and decoded chunks are kept open for the life of the sampler; a region
// or chunk that fails once is remembered and never retried.
type RegionSampler struct {
	saveDir string
	dirs    map[claims.World]string
	logger  *log.Logger

	regions map[string]*Region
	chunks  map[chunkKey]*Chunk
}

// NewRegionSampler creates a sampler for the save at saveDir. dirs maps each
// world to its subdirectory inside the save ("" for the overworld, "DIM-1"
// for the nether, "DIM1" for the end on a stock server). Worlds missing from
// dirs are never sampled.
func NewRegionSampler(saveDir string, dirs map[claims.World]string, logger *log.Logger) *RegionSampler {
	if logger == nil {
		logger = log.Default()
	}
	return &RegionSampler{
		saveDir: saveDir,
		dirs:    dirs,
		logger:  logger,
		regions: make(map[string]*Region),
		chunks:  make(map[chunkKey]*Chunk),
	}
}

// RegionPath returns the region file holding block column x, z of a world.
func (sampler *RegionSampler) RegionPath(world claims.World, x, z int) (string, bool) {
	dir, known := sampler.dirs[world]
	if !known {
		return "", false
	}
	return filepath.Join(sampler.saveDir, dir, "region", RegionFileName(x, z)), true
}

// SampleTopSolidY returns the height of the topmost block that is neither air
// nor bedrock at block column x, z. Any failure reads as not found.
func (sampler *RegionSampler) SampleTopSolidY(world claims.World, x, z int) (int, bool) {
	chunk := sampler.chunk(world, ChunkCoord(x), ChunkCoord(z), x, z)
	if chunk == nil {
		return 0, false
	}
	return chunk.TopSolidY(x, z)
}

func (sampler *RegionSampler) chunk(world claims.World, cx, cz, x, z int) *Chunk {
	key := chunkKey{world: world, cx: cx, cz: cz}
	if chunk, seen := sampler.chunks[key]; seen {
		return chunk
	}

	region := sampler.region(world, x, z)
	if region == nil {
		sampler.chunks[key] = nil
		return nil
	}

	data, err := region.ReadChunk(cx, cz)
	if err != nil {
		sampler.logger.Printf("warning: terrain height unavailable for %s chunk %d,%d: %v", world, cx, cz, err)
		sampler.chunks[key] = nil
		return nil
	}

	chunk, err := DecodeChunk(data)
	if err != nil {
		sampler.logger.Printf("warning: terrain height unavailable for %s chunk %d,%d: %v", world, cx, cz, err)
		sampler.chunks[key] = nil
		return nil
	}

	sampler.chunks[key] = chunk
	return chunk
}

func (sampler *RegionSampler) region(world claims.World, x, z int) *Region {
	path, known := sampler.RegionPath(world, x, z)
	if !known {
		return nil
	}
	if region, seen := sampler.regions[path]; seen {
		return region
	}

	region, err := OpenRegion(path)
	if err != nil {
		sampler.logger.Printf("warning: error loading terrain height from %s: %v", filepath.Base(path), err)
		sampler.regions[path] = nil
		return nil
	}
	sampler.regions[path] = region
	return region
}

// Close releases every open region file.
func (sampler *RegionSampler) Close() error {
	var firstErr error
	for path, region := range sampler.regions {
		if region == nil {
			continue
		}
		if err := region.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(sampler.regions, path)
	}
	return firstErr
}
