package claims

import (
	"context"
	"strings"
	"testing"
)

type stubResolver struct {
	names map[string]string
	calls []string
}

func (resolver *stubResolver) Resolve(ctx context.Context, ownerID string) string {
	resolver.calls = append(resolver.calls, ownerID)
	return resolver.names[ownerID]
}

const overworldRecord = `Lesser Boundary Corner: world;-120;64;-40
Greater Boundary Corner: world;35;70;80
Owner: 069a79f4-44e9-4726-a5be-fca90e38aaf5
Builders: []
Containers: []
Accessors: []
Managers: []
Parent Claim ID: -1
`

func TestParseOverworldRecord(t *testing.T) {
	resolver := &stubResolver{names: map[string]string{"069a79f444e94726a5befca90e38aaf5": "Notch"}}
	parser := NewParser(DefaultPatterns(), resolver)

	result := parser.Parse(context.Background(), "12.yml", strings.NewReader(overworldRecord))
	if !result.OK() {
		t.Fatalf("Parse() dropped record: %v", result.Err)
	}

	record := result.Record
	if record.World != WorldOverworld {
		t.Errorf("World = %q, want %q", record.World, WorldOverworld)
	}
	if record.West != -120 || record.North != -40 || record.East != 35 || record.South != 80 {
		t.Errorf("rectangle = w%d n%d e%d s%d, want w-120 n-40 e35 s80", record.West, record.North, record.East, record.South)
	}
	if record.OwnerID != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("OwnerID = %q", record.OwnerID)
	}
	if record.Owner != "Notch" {
		t.Errorf("Owner = %q, want %q", record.Owner, "Notch")
	}
	if record.Source != "12.yml" {
		t.Errorf("Source = %q", record.Source)
	}
}

func TestParseWorldTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  World
	}{
		{"overworld", "world", WorldOverworld},
		{"nether", "world_nether", WorldNether},
		{"end", "world_the_end", WorldEnd},
	}

	parser := NewParser(DefaultPatterns(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := "Lesser Boundary Corner: " + tt.token + ";1;10;2\n" +
				"Greater Boundary Corner: " + tt.token + ";3;10;4\n"
			result := parser.Parse(context.Background(), tt.name+".yml", strings.NewReader(record))
			if !result.OK() {
				t.Fatalf("Parse() dropped record: %v", result.Err)
			}
			if result.Record.World != tt.want {
				t.Errorf("World = %q, want %q", result.Record.World, tt.want)
			}
		})
	}
}

func TestParseKeepsInvertedRectangle(t *testing.T) {
	record := "Lesser Boundary Corner: world;100;64;50\nGreater Boundary Corner: world;-100;64;-50\n"
	result := NewParser(nil, nil).Parse(context.Background(), "inverted.yml", strings.NewReader(record))
	if !result.OK() {
		t.Fatalf("Parse() dropped record: %v", result.Err)
	}
	if result.Record.West != 100 || result.Record.East != -100 {
		t.Errorf("West/East = %d/%d, want 100/-100", result.Record.West, result.Record.East)
	}
	if result.Record.North != 50 || result.Record.South != -50 {
		t.Errorf("North/South = %d/%d, want 50/-50", result.Record.North, result.Record.South)
	}
}

func TestParseDropsRecords(t *testing.T) {
	tests := []struct {
		name   string
		record string
		kind   ErrorKind
	}{
		{
			name:   "no corners",
			record: "Owner: abc\nBuilders: []\n",
			kind:   KindMissingCorner,
		},
		{
			name:   "only lesser corner",
			record: "Lesser Boundary Corner: world;1;2;3\n",
			kind:   KindMissingCorner,
		},
		{
			name:   "unknown world token",
			record: "Lesser Boundary Corner: creative;1;2;3\nGreater Boundary Corner: creative;4;5;6\n",
			kind:   KindUnknownWorld,
		},
		{
			name:   "malformed lesser corner",
			record: "Lesser Boundary Corner: world;abc;2;3\nGreater Boundary Corner: world;4;5;6\n",
			kind:   KindMalformedCorner,
		},
		{
			name:   "malformed greater corner",
			record: "Lesser Boundary Corner: world;1;2;3\nGreater Boundary Corner: somewhere\n",
			kind:   KindMalformedCorner,
		},
		{
			name:   "coordinate out of range",
			record: "Lesser Boundary Corner: world;99999999999999999999;2;3\nGreater Boundary Corner: world;4;5;6\n",
			kind:   KindBadCoordinate,
		},
	}

	parser := NewParser(DefaultPatterns(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.Parse(context.Background(), "bad.yml", strings.NewReader(tt.record))
			if result.OK() {
				t.Fatalf("Parse() accepted record %+v", result.Record)
			}
			if result.Err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q (%v)", result.Err.Kind, tt.kind, result.Err)
			}
			if !strings.Contains(result.Err.Error(), "bad.yml") {
				t.Errorf("Error() = %q, want it to name the file", result.Err.Error())
			}
		})
	}
}

func TestParseSkipsResolutionForDroppedRecords(t *testing.T) {
	resolver := &stubResolver{}
	parser := NewParser(DefaultPatterns(), resolver)

	record := "Owner: abc\nLesser Boundary Corner: nowhere\nGreater Boundary Corner: world;1;2;3\n"
	result := parser.Parse(context.Background(), "bad.yml", strings.NewReader(record))
	if result.OK() {
		t.Fatal("Parse() accepted a malformed record")
	}
	if len(resolver.calls) != 0 {
		t.Errorf("resolver called %d times, want 0", len(resolver.calls))
	}
}

func TestParseUnresolvedOwner(t *testing.T) {
	resolver := &stubResolver{names: map[string]string{}}
	parser := NewParser(DefaultPatterns(), resolver)

	result := parser.Parse(context.Background(), "7.yml", strings.NewReader(overworldRecord))
	if !result.OK() {
		t.Fatalf("Parse() dropped record: %v", result.Err)
	}
	if result.Record.Owner != "" {
		t.Errorf("Owner = %q, want empty", result.Record.Owner)
	}
	if len(resolver.calls) != 1 {
		t.Errorf("resolver called %d times, want 1", len(resolver.calls))
	}
}

func TestParseAdminClaimHasNoOwner(t *testing.T) {
	resolver := &stubResolver{}
	parser := NewParser(DefaultPatterns(), resolver)

	record := "Lesser Boundary Corner: world;1;2;3\nGreater Boundary Corner: world;4;5;6\nOwner: ''\n"
	result := parser.Parse(context.Background(), "admin.yml", strings.NewReader(record))
	if !result.OK() {
		t.Fatalf("Parse() dropped record: %v", result.Err)
	}
	if result.Record.OwnerID != "" {
		t.Errorf("OwnerID = %q, want empty", result.Record.OwnerID)
	}
	if len(resolver.calls) != 0 {
		t.Errorf("resolver called %d times, want 0", len(resolver.calls))
	}
}

func TestParseToleratesWindowsLineEndings(t *testing.T) {
	record := "Lesser Boundary Corner: world_nether;-5;40;-6\r\nGreater Boundary Corner: world_nether;5;90;6\r\n"
	result := NewParser(nil, nil).Parse(context.Background(), "crlf.yml", strings.NewReader(record))
	if !result.OK() {
		t.Fatalf("Parse() dropped record: %v", result.Err)
	}
	if result.Record.World != WorldNether || result.Record.West != -5 || result.Record.South != 6 {
		t.Errorf("record = %+v", result.Record)
	}
}

func TestPatternPriority(t *testing.T) {
	// Both tokens match "world_the_end;..."; the first listed pattern wins.
	short, err := NewWorldPattern(WorldEnd, "the_end")
	if err != nil {
		t.Fatal(err)
	}
	long, err := NewWorldPattern(WorldNether, "world_the_end")
	if err != nil {
		t.Fatal(err)
	}

	record := "Lesser Boundary Corner: world_the_end;1;2;3\nGreater Boundary Corner: world_the_end;4;5;6\n"
	orders := []struct {
		patterns []WorldPattern
		want     World
	}{
		{[]WorldPattern{short, long}, WorldEnd},
		{[]WorldPattern{long, short}, WorldNether},
	}

	for _, order := range orders {
		result := NewParser(order.patterns, nil).Parse(context.Background(), "p.yml", strings.NewReader(record))
		if !result.OK() {
			t.Fatalf("Parse() dropped record: %v", result.Err)
		}
		if result.Record.World != order.want {
			t.Errorf("World = %q, want %q", result.Record.World, order.want)
		}
	}
}

func TestNewWorldPatternRejectsBadInput(t *testing.T) {
	if _, err := NewWorldPattern("moon", "world_moon"); err == nil {
		t.Error("NewWorldPattern() with unknown world should fail")
	}
	if _, err := NewWorldPattern(WorldOverworld, ""); err == nil {
		t.Error("NewWorldPattern() with empty token should fail")
	}
}

func TestNormalizeOwnerID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{" 069A79F4-44E9-4726-A5BE-FCA90E38AAF5", "069A79F444E94726A5BEFCA90E38AAF5"},
		{"069a79f4-44e9-4726-a5be-fca90e38aaf5", "069a79f444e94726a5befca90e38aaf5"},
		{"069a79f444e94726a5befca90e38aaf5", "069a79f444e94726a5befca90e38aaf5"},
		{" 'abc-def'", "abcdef"},
		{"  ", ""},
		{`""`, ""},
	}
	for _, tt := range tests {
		if got := NormalizeOwnerID(tt.raw); got != tt.want {
			t.Errorf("NormalizeOwnerID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseWorld(t *testing.T) {
	if world, err := ParseWorld(" Nether "); err != nil || world != WorldNether {
		t.Errorf("ParseWorld(Nether) = %q, %v", world, err)
	}
	if _, err := ParseWorld("aether"); err == nil {
		t.Error("ParseWorld(aether) should fail")
	}
}
