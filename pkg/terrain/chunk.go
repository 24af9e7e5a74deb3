package terrain

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/Tnze/go-mc/nbt"
)

// spanningDataVersion is the first data version (20w17a) whose block state
// arrays no longer split entries across longs.
const spanningDataVersion = 2527

// Legacy numeric block ids.
const (
	legacyAir     = 0
	legacyBedrock = 7
)

type chunkRoot struct {
	DataVersion int             `nbt:"DataVersion"`
	Sections    []modernSection `nbt:"sections"`
	Level       legacyLevel     `nbt:"Level"`
}

type modernSection struct {
	Y           int         `nbt:"Y"`
	BlockStates blockStates `nbt:"block_states"`
}

type blockStates struct {
	Palette []blockState `nbt:"palette"`
	Data    []int64      `nbt:"data"`
}

type blockState struct {
	Name string `nbt:"Name"`
}

type legacyLevel struct {
	Sections []legacySection `nbt:"Sections"`
}

type legacySection struct {
	Y           int          `nbt:"Y"`
	Palette     []blockState `nbt:"Palette"`
	BlockStates []int64      `nbt:"BlockStates"`
	Blocks      []byte       `nbt:"Blocks"`
	Add         []byte       `nbt:"Add"`
}

// section is a 16x16x16 cube in whichever storage format the save used.
type section struct {
	y        int
	palette  []string
	data     []int64
	spanning bool

	blocks []byte
	add    []byte
}

// Chunk holds the block sections of one decoded chunk, highest first.
type Chunk struct {
	sections []section
}

// DecodeChunk parses an uncompressed chunk NBT payload.
func DecodeChunk(data []byte) (*Chunk, error) {
	var root chunkRoot
	if err := nbt.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding chunk nbt: %w", err)
	}

	chunk := &Chunk{}
	for _, modern := range root.Sections {
		chunk.sections = append(chunk.sections, section{
			y:       modern.Y,
			palette: paletteNames(modern.BlockStates.Palette),
			data:    modern.BlockStates.Data,
		})
	}

	spanning := root.DataVersion < spanningDataVersion
	for _, legacy := range root.Level.Sections {
		chunk.sections = append(chunk.sections, section{
			y:        legacy.Y,
			palette:  paletteNames(legacy.Palette),
			data:     legacy.BlockStates,
			spanning: spanning,
			blocks:   legacy.Blocks,
			add:      legacy.Add,
		})
	}

	sort.Slice(chunk.sections, func(i, j int) bool {
		return chunk.sections[i].y > chunk.sections[j].y
	})
	return chunk, nil
}

func paletteNames(palette []blockState) []string {
	names := make([]string, len(palette))
	for i, state := range palette {
		names[i] = state.Name
	}
	return names
}

// TopSolidY returns the height of the highest block in the column at local
// coordinates x, z (0-15) that is neither air nor bedrock.
func (chunk *Chunk) TopSolidY(x, z int) (int, bool) {
	x &= 15
	z &= 15
	for _, current := range chunk.sections {
		for localY := 15; localY >= 0; localY-- {
			index := localY*256 + z*16 + x
			if current.solidAt(index) {
				return current.y*16 + localY, true
			}
		}
	}
	return 0, false
}

func (current section) solidAt(index int) bool {
	if len(current.blocks) > 0 {
		return current.legacySolidAt(index)
	}

	switch len(current.palette) {
	case 0:
		return false
	case 1:
		return isSolid(current.palette[0])
	}

	if len(current.data) == 0 {
		return isSolid(current.palette[0])
	}

	paletteIndex := current.paletteIndex(index)
	if paletteIndex < 0 || paletteIndex >= len(current.palette) {
		return false
	}
	return isSolid(current.palette[paletteIndex])
}

// paletteIndex unpacks the palette entry for a block index from the packed
// long array.
func (current section) paletteIndex(index int) int {
	width := bits.Len(uint(len(current.palette) - 1))
	if width < 4 {
		width = 4
	}
	mask := uint64(1)<<width - 1

	if current.spanning {
		bitIndex := index * width
		longIndex := bitIndex / 64
		offset := bitIndex % 64
		if longIndex >= len(current.data) {
			return -1
		}
		value := uint64(current.data[longIndex]) >> offset
		if offset+width > 64 && longIndex+1 < len(current.data) {
			value |= uint64(current.data[longIndex+1]) << (64 - offset)
		}
		return int(value & mask)
	}

	perLong := 64 / width
	longIndex := index / perLong
	if longIndex >= len(current.data) {
		return -1
	}
	offset := (index % perLong) * width
	return int((uint64(current.data[longIndex]) >> offset) & mask)
}

func (current section) legacySolidAt(index int) bool {
	if index >= len(current.blocks) {
		return false
	}
	id := int(current.blocks[index])
	if len(current.add) > index/2 {
		nibble := current.add[index/2]
		if index%2 == 0 {
			nibble &= 0x0f
		} else {
			nibble >>= 4
		}
		id |= int(nibble) << 8
	}
	return id != legacyAir && id != legacyBedrock
}

// isSolid reports whether a namespaced block name counts as terrain.
func isSolid(name string) bool {
	switch strings.TrimPrefix(name, "minecraft:") {
	case "", "air", "cave_air", "void_air", "bedrock":
		return false
	}
	return true
}
