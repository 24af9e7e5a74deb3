package zones

import (
	"fmt"
	"log"

	"github.com/coolbeans/zonegen/pkg/claims"
)

// ClaimsPolicy decides when a world gets a claims layer.
type ClaimsPolicy string

const (
	// PolicyNonEmpty appends a claims layer only for worlds with at least one zone.
	PolicyNonEmpty ClaimsPolicy = "nonempty"

	// PolicyAlways appends a claims layer for every mapped world, even when empty.
	PolicyAlways ClaimsPolicy = "always"
)

// Valid reports whether the policy is known.
func (policy ClaimsPolicy) Valid() bool {
	return policy == PolicyNonEmpty || policy == PolicyAlways
}

// Defaults for the claims layer.
const (
	DefaultClaimsTitle = "Claimed Zones"
	DefaultClaimsColor = "#ff7800"
)

// WorldMap names the map a world's claims are drawn on.
type WorldMap struct {
	World   claims.World
	MapName string
}

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	// Seed holds the hand-authored layers every output starts from.
	Seed Document

	// Maps lists the target map of each world, in the order layers are added.
	Maps []WorldMap

	// ClaimsTitle and ClaimsColor style the generated claims layer.
	ClaimsTitle string
	ClaimsColor string

	Policy ClaimsPolicy
}

// Composer merges collected zones into the seed document.
type Composer struct {
	config ComposerConfig
	logger *log.Logger
}

// NewComposer creates a composer, filling unset style fields with defaults.
func NewComposer(config ComposerConfig, logger *log.Logger) (*Composer, error) {
	if config.ClaimsTitle == "" {
		config.ClaimsTitle = DefaultClaimsTitle
	}
	if config.ClaimsColor == "" {
		config.ClaimsColor = DefaultClaimsColor
	}
	if config.Policy == "" {
		config.Policy = PolicyNonEmpty
	}
	if !config.Policy.Valid() {
		return nil, fmt.Errorf("unknown claims layer policy %q", config.Policy)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{config: config, logger: logger}, nil
}

// MapName returns the map a world is drawn on.
func (composer *Composer) MapName(world claims.World) (string, bool) {
	for _, worldMap := range composer.config.Maps {
		if worldMap.World == world {
			return worldMap.MapName, true
		}
	}
	return "", false
}

// Compose returns a new document: the seed layers followed by one claims
// layer per mapped world, according to the policy.
func (composer *Composer) Compose(buckets Buckets) Document {
	document := composer.config.Seed.Clone()

	added := make(map[claims.World]bool)
	for _, worldMap := range composer.config.Maps {
		if added[worldMap.World] {
			continue
		}
		added[worldMap.World] = true

		zones := buckets[worldMap.World]
		if len(zones) == 0 && composer.config.Policy != PolicyAlways {
			continue
		}

		layer := Layer{
			Title: composer.config.ClaimsTitle,
			Color: composer.config.ClaimsColor,
			Zones: cloneZones(zones),
		}
		document[worldMap.MapName] = append(document[worldMap.MapName], layer)
	}

	for _, world := range sortedWorlds(buckets) {
		if !added[world] && len(buckets[world]) > 0 {
			composer.logger.Printf("warning: world %q has no target map, skipping %d zones", world, len(buckets[world]))
		}
	}

	return document
}

// sortedWorlds lists bucket keys in a stable order for logging.
func sortedWorlds(buckets Buckets) []claims.World {
	worlds := make([]claims.World, 0, len(buckets))
	for _, world := range claims.Worlds {
		if _, present := buckets[world]; present {
			worlds = append(worlds, world)
		}
	}
	for world := range buckets {
		if !world.Valid() {
			worlds = append(worlds, world)
		}
	}
	return worlds
}
