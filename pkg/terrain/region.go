// Package terrain samples surface height from a world save's region files so
// zone corners can be drawn at ground level.
package terrain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	sectorSize      = 4096
	regionChunks    = 32
	locationEntries = regionChunks * regionChunks
)

// Chunk payload compression schemes.
const (
	compressionGzip = 1
	compressionZlib = 2
	compressionNone = 3

	// externalFlag marks a payload stored in a separate .mcc file.
	externalFlag = 0x80
)

// ErrChunkAbsent is returned for chunks that were never generated.
var ErrChunkAbsent = errors.New("chunk not present in region")

// RegionFileName returns the region file holding the block column at x, z.
func RegionFileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", ChunkCoord(x)>>5, ChunkCoord(z)>>5)
}

// ChunkCoord converts a block coordinate to a chunk coordinate, rounding down.
func ChunkCoord(block int) int {
	return block >> 4
}

// Region is an open .mca region file.
type Region struct {
	file      *os.File
	locations [locationEntries]uint32
}

// OpenRegion opens a region file and reads its location table.
func OpenRegion(path string) (*Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	header := make([]byte, sectorSize)
	if _, err := io.ReadFull(file, header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("reading location table of %s: %w", path, err)
	}

	region := &Region{file: file}
	for i := range region.locations {
		region.locations[i] = binary.BigEndian.Uint32(header[i*4:])
	}
	return region, nil
}

// Close closes the region file.
func (region *Region) Close() error {
	return region.file.Close()
}

// ReadChunk returns the decompressed NBT payload of the chunk at chunk
// coordinates cx, cz. Coordinates are taken modulo the region size.
func (region *Region) ReadChunk(cx, cz int) ([]byte, error) {
	location := region.locations[(cx&(regionChunks-1))+(cz&(regionChunks-1))*regionChunks]
	offset := int64(location>>8) * sectorSize
	sectors := int64(location & 0xff)
	if offset == 0 || sectors == 0 {
		return nil, ErrChunkAbsent
	}

	header := make([]byte, 5)
	if _, err := region.file.ReadAt(header, offset); err != nil {
		return nil, fmt.Errorf("reading chunk %d,%d header: %w", cx, cz, err)
	}

	length := int64(binary.BigEndian.Uint32(header[:4]))
	if length <= 1 || length+4 > sectors*sectorSize {
		return nil, fmt.Errorf("chunk %d,%d: bad length %d for %d sectors", cx, cz, length, sectors)
	}

	compression := header[4]
	if compression&externalFlag != 0 {
		return nil, fmt.Errorf("chunk %d,%d: external chunk storage is not supported", cx, cz)
	}

	payload := io.NewSectionReader(region.file, offset+5, length-1)

	var reader io.Reader
	switch compression {
	case compressionGzip:
		gzipReader, err := gzip.NewReader(payload)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", cx, cz, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case compressionZlib:
		zlibReader, err := zlib.NewReader(payload)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", cx, cz, err)
		}
		defer zlibReader.Close()
		reader = zlibReader
	case compressionNone:
		reader = payload
	default:
		return nil, fmt.Errorf("chunk %d,%d: unsupported compression %d", cx, cz, compression)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: decompressing: %w", cx, cz, err)
	}
	return data, nil
}
