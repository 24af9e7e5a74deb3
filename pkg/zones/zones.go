// Package zones turns parsed claims into the layered zone document the map
// overlay script loads: claims are grouped per world, optionally given corner
// elevations, and merged with hand-authored layers.
package zones

import (
	"github.com/coolbeans/zonegen/pkg/claims"
)

// Zone is one rectangle on the map. Elevation fields are only set when the
// terrain height of that corner was sampled.
type Zone struct {
	N       int    `json:"n" yaml:"n"`
	E       int    `json:"e" yaml:"e"`
	S       int    `json:"s" yaml:"s"`
	W       int    `json:"w" yaml:"w"`
	Color   string `json:"color,omitempty" yaml:"color,omitempty"`
	Tooltip string `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`

	ElNE *int `json:"elNE,omitempty" yaml:"-"`
	ElSE *int `json:"elSE,omitempty" yaml:"-"`
	ElNW *int `json:"elNW,omitempty" yaml:"-"`
	ElSW *int `json:"elSW,omitempty" yaml:"-"`
}

// FromRecord converts a parsed claim into a zone, using the owner name as the
// tooltip.
func FromRecord(record claims.Record) Zone {
	return Zone{
		N:       record.North,
		E:       record.East,
		S:       record.South,
		W:       record.West,
		Tooltip: record.Owner,
	}
}

// Layer is a named, colored group of zones toggled together on the map.
type Layer struct {
	Title string `json:"title" yaml:"title"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Zones []Zone `json:"zones" yaml:"zones"`
}

// Document maps a map display name to its layers, in display order.
type Document map[string][]Layer

// Clone returns a deep copy, so a seed document can be reused across runs.
func (document Document) Clone() Document {
	clone := make(Document, len(document))
	for mapName, layers := range document {
		copied := make([]Layer, len(layers))
		for i, layer := range layers {
			copied[i] = layer
			copied[i].Zones = cloneZones(layer.Zones)
		}
		clone[mapName] = copied
	}
	return clone
}

func cloneZones(source []Zone) []Zone {
	zones := make([]Zone, len(source))
	for i, zone := range source {
		zones[i] = zone
		zones[i].ElNE = cloneInt(zone.ElNE)
		zones[i].ElSE = cloneInt(zone.ElSE)
		zones[i].ElNW = cloneInt(zone.ElNW)
		zones[i].ElSW = cloneInt(zone.ElSW)
	}
	return zones
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

// Counts returns the number of layers and zones in the document.
func (document Document) Counts() (layers, zones int) {
	for _, mapLayers := range document {
		layers += len(mapLayers)
		for _, layer := range mapLayers {
			zones += len(layer.Zones)
		}
	}
	return layers, zones
}

// Buckets groups zones by the world they were claimed in.
type Buckets map[claims.World][]Zone

// Total returns the number of zones across all worlds.
func (buckets Buckets) Total() int {
	total := 0
	for _, zones := range buckets {
		total += len(zones)
	}
	return total
}
