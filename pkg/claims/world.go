// Package claims parses land-claim records written by the server-side claim
// plugin into bounding rectangles, owners, and the world they belong to.
package claims

import (
	"fmt"
	"regexp"
	"strings"
)

// World identifies one of the independent game dimensions a claim can live in.
type World string

const (
	WorldOverworld World = "overworld"
	WorldNether    World = "nether"
	WorldEnd       World = "end"
)

// Worlds lists every known world in display order.
var Worlds = []World{WorldOverworld, WorldNether, WorldEnd}

// Valid reports whether the world is one of the known dimensions.
func (world World) Valid() bool {
	switch world {
	case WorldOverworld, WorldNether, WorldEnd:
		return true
	}
	return false
}

// ParseWorld converts a configuration value into a World.
func ParseWorld(value string) (World, error) {
	world := World(strings.ToLower(strings.TrimSpace(value)))
	if !world.Valid() {
		return "", fmt.Errorf("unknown world %q (want overworld, nether or end)", value)
	}
	return world, nil
}

// WorldPattern pairs a world with the compiled corner-line pattern for the
// world token the claim plugin writes for it.
type WorldPattern struct {
	World World
	Token string

	compiled *regexp.Regexp
}

// NewWorldPattern compiles the corner pattern for a world token. The pattern
// accepts anything before the token, followed by three semicolon separated
// integers of which the middle one (height) is ignored.
func NewWorldPattern(world World, token string) (WorldPattern, error) {
	if !world.Valid() {
		return WorldPattern{}, fmt.Errorf("unknown world %q", world)
	}
	if token == "" {
		return WorldPattern{}, fmt.Errorf("empty world token for %s", world)
	}

	expression := `^.*?` + regexp.QuoteMeta(token) + `;(-?[0-9]+);-?[0-9]+;(-?[0-9]+)['"]?$`
	compiled, err := regexp.Compile(expression)
	if err != nil {
		return WorldPattern{}, fmt.Errorf("compiling pattern for token %q: %w", token, err)
	}

	return WorldPattern{World: world, Token: token, compiled: compiled}, nil
}

// Match returns the two horizontal coordinates captured from a corner line.
func (pattern WorldPattern) Match(line string) (first, second string, ok bool) {
	if pattern.compiled == nil {
		return "", "", false
	}
	groups := pattern.compiled.FindStringSubmatch(line)
	if groups == nil {
		return "", "", false
	}
	return groups[1], groups[2], true
}

// DefaultPatterns returns the world tokens used by a stock server, in the
// priority order they are tried.
func DefaultPatterns() []WorldPattern {
	tokens := []struct {
		world World
		token string
	}{
		{WorldNether, "world_nether"},
		{WorldEnd, "world_the_end"},
		{WorldOverworld, "world"},
	}

	patterns := make([]WorldPattern, 0, len(tokens))
	for _, entry := range tokens {
		pattern, err := NewWorldPattern(entry.world, entry.token)
		if err != nil {
			panic(err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns
}
