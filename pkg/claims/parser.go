package claims

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Line prefixes recognized in a claim record. All other lines are ignored.
const (
	LesserCornerPrefix  = "Lesser Boundary Corner"
	GreaterCornerPrefix = "Greater Boundary Corner"
	OwnerPrefix         = "Owner:"
)

// genericCorner matches any corner value shaped like token;x;y;z, used to tell
// an unknown world token apart from a malformed line.
var genericCorner = regexp.MustCompile(`([A-Za-z0-9_.\-]+);-?[0-9]+;-?[0-9]+;-?[0-9]+['"]?$`)

// Record is one parsed claim. Coordinates are kept exactly as written: an
// inverted rectangle (West > East or North > South) is not corrected.
type Record struct {
	World World `json:"world"`

	West  int `json:"west"`
	North int `json:"north"`
	East  int `json:"east"`
	South int `json:"south"`

	// OwnerID is the normalized owner identifier, empty for ownerless claims.
	OwnerID string `json:"owner_id,omitempty"`

	// Owner is the resolved display name, empty when unresolved.
	Owner string `json:"owner,omitempty"`

	// Source is the record file the claim was read from.
	Source string `json:"source"`
}

// ErrorKind classifies why a record was dropped.
type ErrorKind string

const (
	KindMalformedCorner ErrorKind = "malformed corner"
	KindUnknownWorld    ErrorKind = "unknown world"
	KindMissingCorner   ErrorKind = "missing corner"
	KindBadCoordinate   ErrorKind = "bad coordinate"
	KindRead            ErrorKind = "read"
)

// ParseError describes a dropped record.
type ParseError struct {
	Source  string
	Line    int
	Kind    ErrorKind
	Message string
}

func (parseError *ParseError) Error() string {
	if parseError.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", parseError.Source, parseError.Line, parseError.Kind, parseError.Message)
	}
	return fmt.Sprintf("%s: %s: %s", parseError.Source, parseError.Kind, parseError.Message)
}

// Result is the outcome of parsing one record: either a Record or the reason
// it was dropped.
type Result struct {
	Record Record
	Err    *ParseError
}

// OK reports whether the record was accepted.
func (result Result) OK() bool {
	return result.Err == nil
}

// OwnerResolver turns an owner identifier into a display name. An empty
// string means the owner is unknown.
type OwnerResolver interface {
	Resolve(ctx context.Context, ownerID string) string
}

// Parser extracts claims from record files.
type Parser struct {
	patterns []WorldPattern
	owners   OwnerResolver
}

// NewParser creates a parser trying the patterns in order. When owners is nil
// owner identifiers are kept but never resolved.
func NewParser(patterns []WorldPattern, owners OwnerResolver) *Parser {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Parser{
		patterns: patterns,
		owners:   owners,
	}
}

// cornerLine is the world and horizontal coordinates read from one corner.
type cornerLine struct {
	world  World
	first  int
	second int
}

// Parse reads one claim record. A malformed record yields a Result carrying
// a ParseError; Parse itself never fails.
func (parser *Parser) Parse(ctx context.Context, source string, reader io.Reader) Result {
	var (
		record       = Record{Source: source}
		haveLesser   bool
		haveGreater  bool
		lineNumber   int
		rawOwnerLine string
	)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r\n\t ")

		switch {
		case strings.HasPrefix(line, LesserCornerPrefix):
			corner, parseErr := parser.parseCorner(source, lineNumber, line)
			if parseErr != nil {
				return Result{Err: parseErr}
			}
			record.World = corner.world
			record.West = corner.first
			record.North = corner.second
			haveLesser = true

		case strings.HasPrefix(line, GreaterCornerPrefix):
			corner, parseErr := parser.parseCorner(source, lineNumber, line)
			if parseErr != nil {
				return Result{Err: parseErr}
			}
			record.World = corner.world
			record.East = corner.first
			record.South = corner.second
			haveGreater = true

		case strings.HasPrefix(line, OwnerPrefix):
			rawOwnerLine = strings.TrimPrefix(line, OwnerPrefix)
		}
	}

	if err := scanner.Err(); err != nil {
		return Result{Err: &ParseError{Source: source, Kind: KindRead, Message: err.Error()}}
	}

	if !haveLesser || !haveGreater {
		missing := LesserCornerPrefix
		if haveLesser {
			missing = GreaterCornerPrefix
		}
		return Result{Err: &ParseError{Source: source, Kind: KindMissingCorner, Message: "no " + missing + " line"}}
	}

	record.OwnerID = NormalizeOwnerID(rawOwnerLine)
	if record.OwnerID != "" && parser.owners != nil {
		record.Owner = parser.owners.Resolve(ctx, record.OwnerID)
	}

	return Result{Record: record}
}

// parseCorner matches a corner line against every known world pattern in
// priority order.
func (parser *Parser) parseCorner(source string, lineNumber int, line string) (cornerLine, *ParseError) {
	for _, pattern := range parser.patterns {
		firstText, secondText, ok := pattern.Match(line)
		if !ok {
			continue
		}

		first, err := strconv.Atoi(firstText)
		if err != nil {
			return cornerLine{}, &ParseError{Source: source, Line: lineNumber, Kind: KindBadCoordinate, Message: err.Error()}
		}
		second, err := strconv.Atoi(secondText)
		if err != nil {
			return cornerLine{}, &ParseError{Source: source, Line: lineNumber, Kind: KindBadCoordinate, Message: err.Error()}
		}

		return cornerLine{world: pattern.World, first: first, second: second}, nil
	}

	if groups := genericCorner.FindStringSubmatch(line); groups != nil {
		return cornerLine{}, &ParseError{
			Source:  source,
			Line:    lineNumber,
			Kind:    KindUnknownWorld,
			Message: fmt.Sprintf("world token %q is not configured", groups[1]),
		}
	}

	return cornerLine{}, &ParseError{
		Source:  source,
		Line:    lineNumber,
		Kind:    KindMalformedCorner,
		Message: fmt.Sprintf("couldn't parse %q", line),
	}
}

// NormalizeOwnerID strips quoting, surrounding whitespace and hyphens from a
// raw owner value. Letter case is kept, so ids match existing cache keys.
func NormalizeOwnerID(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.Trim(value, `'"`)
	value = strings.TrimSpace(value)
	return strings.ReplaceAll(value, "-", "")
}
