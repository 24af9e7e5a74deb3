// Package config loads zonegen settings from YAML. Every field has a built-in
// default, so a config file only needs to name what it changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/zonegen/pkg/claims"
	"github.com/coolbeans/zonegen/pkg/names"
	"github.com/coolbeans/zonegen/pkg/zones"
)

// Map display names used by the default configuration.
const (
	MapOverworld = "Overworld - overworld"
	MapNether    = "Nether - nether"
	MapEnd       = "The End - end"
)

// Output defaults.
const (
	DefaultZonesFile  = "zones.json"
	DefaultScriptName = "claimzones.js"
	DefaultIndexFile  = "index.html"
	DefaultAnchor     = `baseMarkers.js"></script>`
)

// Config is the complete zonegen configuration.
type Config struct {
	Records RecordsConfig `yaml:"records"`
	Worlds  []WorldConfig `yaml:"worlds"`
	Names   NamesConfig   `yaml:"names"`
	Layers  LayersConfig  `yaml:"layers"`
	Output  OutputConfig  `yaml:"output"`
}

// RecordsConfig selects which files in the records directory are parsed.
type RecordsConfig struct {
	Extension string `yaml:"extension"`
}

// WorldConfig ties the world token found in corner lines to a world, the map
// its claims are drawn on, and its directory inside the world save.
type WorldConfig struct {
	Token   string       `yaml:"token"`
	World   claims.World `yaml:"world"`
	Map     string       `yaml:"map"`
	DiskDir string       `yaml:"disk_dir"`
}

// NamesConfig configures owner name resolution.
type NamesConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Endpoint  string           `yaml:"endpoint"`
	Pick      names.PickPolicy `yaml:"pick"`
	Timeout   time.Duration    `yaml:"timeout"`
	CacheFile string           `yaml:"cache_file"`
	UserAgent string           `yaml:"user_agent"`
}

// LayersConfig configures the generated claims layer and the hand-authored
// layers every document starts from.
type LayersConfig struct {
	ClaimsTitle  string             `yaml:"claims_title"`
	ClaimsColor  string             `yaml:"claims_color"`
	ClaimsPolicy zones.ClaimsPolicy `yaml:"claims_policy"`
	Seed         []SeedMap          `yaml:"seed"`
}

// SeedMap lists the predefined layers of one map.
type SeedMap struct {
	Map    string        `yaml:"map"`
	Layers []zones.Layer `yaml:"layers"`
}

// OutputConfig names the files written into the output directory.
type OutputConfig struct {
	ZonesFile string `yaml:"zones_file"`

	// ScriptSource is the overlay script copied into the output directory.
	// Empty installs the built-in overlay script.
	ScriptSource string `yaml:"script_source"`
	ScriptName   string `yaml:"script_name"`

	IndexFile string `yaml:"index_file"`
	Anchor    string `yaml:"anchor"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Records: RecordsConfig{Extension: zones.DefaultExtension},
		Worlds: []WorldConfig{
			{Token: "world_nether", World: claims.WorldNether, Map: MapNether, DiskDir: "DIM-1"},
			{Token: "world_the_end", World: claims.WorldEnd, Map: MapEnd, DiskDir: "DIM1"},
			{Token: "world", World: claims.WorldOverworld, Map: MapOverworld, DiskDir: ""},
		},
		Names: NamesConfig{
			Enabled:   true,
			Endpoint:  names.DefaultEndpoint,
			Pick:      names.PickLast,
			Timeout:   names.DefaultTimeout,
			CacheFile: names.DefaultCacheFile,
			UserAgent: names.DefaultUserAgent,
		},
		Layers: LayersConfig{
			ClaimsTitle:  zones.DefaultClaimsTitle,
			ClaimsColor:  zones.DefaultClaimsColor,
			ClaimsPolicy: zones.PolicyNonEmpty,
			Seed: []SeedMap{
				{
					Map: MapOverworld,
					Layers: []zones.Layer{{
						Title: "Build Zone",
						Color: "#ff7800",
						Zones: []zones.Zone{{N: -1500, E: 1500, S: 1500, W: -1500, Tooltip: "Build Zone"}},
					}},
				},
				{Map: MapNether, Layers: []zones.Layer{}},
				{Map: MapEnd, Layers: []zones.Layer{}},
			},
		},
		Output: OutputConfig{
			ZonesFile:  DefaultZonesFile,
			ScriptName: DefaultScriptName,
			IndexFile:  DefaultIndexFile,
			Anchor:     DefaultAnchor,
		},
	}
}

// Load reads a YAML file over the defaults. Lists in the file replace the
// default lists entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and enumerations.
func (cfg Config) Validate() error {
	var problems []string

	if cfg.Records.Extension == "" {
		problems = append(problems, "records.extension is empty")
	}

	if len(cfg.Worlds) == 0 {
		problems = append(problems, "no worlds configured")
	}
	tokens := make(map[string]bool)
	for i, world := range cfg.Worlds {
		if world.Token == "" {
			problems = append(problems, fmt.Sprintf("worlds[%d]: token is empty", i))
		} else if tokens[world.Token] {
			problems = append(problems, fmt.Sprintf("worlds[%d]: duplicate token %q", i, world.Token))
		}
		tokens[world.Token] = true
		if !world.World.Valid() {
			problems = append(problems, fmt.Sprintf("worlds[%d]: unknown world %q", i, world.World))
		}
		if world.Map == "" {
			problems = append(problems, fmt.Sprintf("worlds[%d]: map is empty", i))
		}
	}

	if cfg.Names.Enabled {
		if cfg.Names.Endpoint == "" {
			problems = append(problems, "names.endpoint is empty")
		}
		if !cfg.Names.Pick.Valid() {
			problems = append(problems, fmt.Sprintf("names.pick: unknown policy %q", cfg.Names.Pick))
		}
		if cfg.Names.Timeout <= 0 {
			problems = append(problems, "names.timeout must be positive")
		}
		if cfg.Names.CacheFile == "" {
			problems = append(problems, "names.cache_file is empty")
		}
	}

	if !cfg.Layers.ClaimsPolicy.Valid() {
		problems = append(problems, fmt.Sprintf("layers.claims_policy: unknown policy %q", cfg.Layers.ClaimsPolicy))
	}
	for i, seed := range cfg.Layers.Seed {
		if seed.Map == "" {
			problems = append(problems, fmt.Sprintf("layers.seed[%d]: map is empty", i))
		}
		for j, layer := range seed.Layers {
			if layer.Title == "" {
				problems = append(problems, fmt.Sprintf("layers.seed[%d].layers[%d]: title is empty", i, j))
			}
		}
	}

	if cfg.Output.ZonesFile == "" {
		problems = append(problems, "output.zones_file is empty")
	}
	if cfg.Output.ScriptName == "" {
		problems = append(problems, "output.script_name is empty")
	}
	if cfg.Output.IndexFile == "" {
		problems = append(problems, "output.index_file is empty")
	}
	if cfg.Output.Anchor == "" {
		problems = append(problems, "output.anchor is empty")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// WorldPatterns returns the corner-line patterns in configured priority order.
func (cfg Config) WorldPatterns() ([]claims.WorldPattern, error) {
	patterns := make([]claims.WorldPattern, 0, len(cfg.Worlds))
	for _, world := range cfg.Worlds {
		pattern, err := claims.NewWorldPattern(world.World, world.Token)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

// WorldMaps returns the target map of each world. When several tokens share a
// world the first one listed names the map.
func (cfg Config) WorldMaps() []zones.WorldMap {
	seen := make(map[claims.World]bool)
	var maps []zones.WorldMap
	for _, world := range cfg.Worlds {
		if seen[world.World] {
			continue
		}
		seen[world.World] = true
		maps = append(maps, zones.WorldMap{World: world.World, MapName: world.Map})
	}
	return maps
}

// DiskDirs returns each world's directory inside the world save.
func (cfg Config) DiskDirs() map[claims.World]string {
	dirs := make(map[claims.World]string)
	for _, world := range cfg.Worlds {
		if _, present := dirs[world.World]; !present {
			dirs[world.World] = world.DiskDir
		}
	}
	return dirs
}

// SeedDocument builds the document every run starts from. Every configured
// map is present, even without seed layers.
func (cfg Config) SeedDocument() zones.Document {
	document := make(zones.Document)
	for _, world := range cfg.Worlds {
		if _, present := document[world.Map]; !present {
			document[world.Map] = []zones.Layer{}
		}
	}
	for _, seed := range cfg.Layers.Seed {
		document[seed.Map] = append(document[seed.Map], seed.Layers...)
	}
	return document.Clone()
}

// ComposerConfig returns the layer composer settings.
func (cfg Config) ComposerConfig() zones.ComposerConfig {
	return zones.ComposerConfig{
		Seed:        cfg.SeedDocument(),
		Maps:        cfg.WorldMaps(),
		ClaimsTitle: cfg.Layers.ClaimsTitle,
		ClaimsColor: cfg.Layers.ClaimsColor,
		Policy:      cfg.Layers.ClaimsPolicy,
	}
}

// LookupConfig returns the name lookup client settings.
func (cfg Config) LookupConfig() names.LookupConfig {
	lookup := names.DefaultLookupConfig()
	lookup.Endpoint = cfg.Names.Endpoint
	lookup.Pick = cfg.Names.Pick
	lookup.Timeout = cfg.Names.Timeout
	if cfg.Names.UserAgent != "" {
		lookup.UserAgent = cfg.Names.UserAgent
	}
	return lookup
}
