package output

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolbeans/zonegen/pkg/zones"
)

const testAnchor = `baseMarkers.js"></script>`

const testIndex = `<html>
  <head>
    <script type="text/javascript" src="baseMarkers.js"></script>
    <script type="text/javascript" src="overviewer.js"></script>
  </head>
</html>
`

func newTestWriter(t *testing.T, scriptSource string) (*Writer, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var logs bytes.Buffer
	writer, err := NewWriter(dir, WriterConfig{
		ZonesFile:    "zones.json",
		ScriptSource: scriptSource,
		ScriptName:   "claimzones.js",
		IndexFile:    "index.html",
		Anchor:       testAnchor,
	}, log.New(&logs, "", 0))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	return writer, dir, &logs
}

func installScript(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "claimzones.js"), []byte("// zones\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func intPtr(value int) *int {
	return &value
}

func TestWriteDocument(t *testing.T) {
	writer, dir, _ := newTestWriter(t, "")
	document := zones.Document{
		"Overworld - overworld": {
			{Title: "Claimed Zones", Color: "#ff7800", Zones: []zones.Zone{
				{N: -2147483648, E: 2147483647, S: 12, W: -30000000, Tooltip: "Steve & <Alex>", ElNE: intPtr(70)},
			}},
		},
		"Nether - nether": {},
	}

	written, err := writer.WriteDocument(document)
	if err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "zones.json"))
	if err != nil {
		t.Fatal(err)
	}
	if written != len(data) {
		t.Errorf("WriteDocument() = %d bytes, file has %d", written, len(data))
	}
	if bytes.ContainsAny(data, "\n") {
		t.Error("document is not compact")
	}
	if !bytes.Contains(data, []byte("Steve & <Alex>")) {
		t.Errorf("tooltip was escaped: %s", data)
	}
	if bytes.Contains(data, []byte("elSE")) {
		t.Error("unset elevation was written")
	}

	decoded, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	zone := decoded["Overworld - overworld"][0].Zones[0]
	if zone.N != -2147483648 || zone.E != 2147483647 || zone.W != -30000000 {
		t.Errorf("coordinates changed: %+v", zone)
	}
	if zone.ElNE == nil || *zone.ElNE != 70 {
		t.Errorf("ElNE = %v, want 70", zone.ElNE)
	}
}

func TestWriteDocumentReplacesFile(t *testing.T) {
	writer, dir, _ := newTestWriter(t, "")
	path := filepath.Join(dir, "zones.json")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.WriteDocument(zones.Document{}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{}" {
		t.Errorf("zones.json = %q, want {}", data)
	}
}

func TestValidateDocumentRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"a":`},
		{"not an object", `[]`},
		{"layers not a list", `{"m": {"title": "x"}}`},
		{"layer without title", `{"m": [{"zones": []}]}`},
		{"zones null", `{"m": [{"title": "x", "zones": null}]}`},
		{"fractional coordinate", `{"m": [{"title": "x", "zones": [{"n": 1.5, "e": 0, "s": 0, "w": 0}]}]}`},
		{"missing edge", `{"m": [{"title": "x", "zones": [{"n": 1, "e": 0, "s": 0}]}]}`},
		{"unknown field", `{"m": [{"title": "x", "zones": [{"n": 1, "e": 0, "s": 0, "w": 0, "z": 1}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateDocument([]byte(tt.data)); err == nil {
				t.Error("ValidateDocument() accepted an invalid document")
			}
		})
	}

	valid := `{"m": [{"title": "x", "zones": [{"n": 1, "e": 0, "s": 0, "w": 0, "tooltip": "t", "elSW": 3}]}], "empty": []}`
	if err := ValidateDocument([]byte(valid)); err != nil {
		t.Errorf("ValidateDocument() rejected a valid document: %v", err)
	}
}

func TestNewWriterRequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWriter(file, WriterConfig{}, nil); err == nil {
		t.Error("NewWriter() accepted a regular file")
	}
	if _, err := NewWriter(filepath.Join(file, "missing"), WriterConfig{}, nil); err == nil {
		t.Error("NewWriter() accepted a missing directory")
	}
}

func TestSyncScript(t *testing.T) {
	source := filepath.Join(t.TempDir(), "claimzones.js")
	if err := os.WriteFile(source, []byte("console.log('zones');\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writer, dir, _ := newTestWriter(t, source)

	copied, err := writer.SyncScript()
	if err != nil || !copied {
		t.Fatalf("SyncScript() = %v, %v; want true, nil", copied, err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "claimzones.js"))
	if string(data) != "console.log('zones');\n" {
		t.Errorf("copied script = %q", data)
	}

	if err := os.WriteFile(source, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	copied, err = writer.SyncScript()
	if err != nil || copied {
		t.Fatalf("second SyncScript() = %v, %v; want false, nil", copied, err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "claimzones.js"))
	if string(data) != "console.log('zones');\n" {
		t.Error("SyncScript() overwrote an existing script")
	}
}

func TestSyncScriptMissingSource(t *testing.T) {
	writer, dir, logs := newTestWriter(t, filepath.Join(t.TempDir(), "absent.js"))
	copied, err := writer.SyncScript()
	if err != nil || copied {
		t.Fatalf("SyncScript() = %v, %v; want false, nil", copied, err)
	}
	if !strings.Contains(logs.String(), "can't find script source") {
		t.Errorf("log = %q", logs.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "claimzones.js")); !os.IsNotExist(err) {
		t.Error("a script file was created without a source")
	}
}

func TestSyncScriptBuiltin(t *testing.T) {
	writer, dir, _ := newTestWriter(t, "")

	copied, err := writer.SyncScript()
	if err != nil || !copied {
		t.Fatalf("SyncScript() = %v, %v; want true, nil", copied, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "claimzones.js"))
	if err != nil {
		t.Fatal(err)
	}
	if len(OverlayScript) == 0 || !bytes.Equal(data, OverlayScript) {
		t.Errorf("installed script differs from the built-in one (%d bytes)", len(data))
	}
	if !bytes.Contains(data, []byte("zones.json")) {
		t.Error("built-in script does not load zones.json")
	}
}

func TestPatchIndexWithoutScript(t *testing.T) {
	writer, dir, logs := newTestWriter(t, filepath.Join(t.TempDir(), "absent.js"))
	indexPath := filepath.Join(dir, "index.html")
	if err := os.WriteFile(indexPath, []byte(testIndex), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := writer.SyncScript(); err != nil {
		t.Fatal(err)
	}
	patched, err := writer.PatchIndex()
	if err != nil || patched {
		t.Fatalf("PatchIndex() = %v, %v; want false, nil", patched, err)
	}
	if !strings.Contains(logs.String(), "index not patched") {
		t.Errorf("log = %q", logs.String())
	}
	data, _ := os.ReadFile(indexPath)
	if string(data) != testIndex {
		t.Error("index was patched to reference a missing script")
	}
}

func TestPatchIndex(t *testing.T) {
	writer, dir, _ := newTestWriter(t, "")
	installScript(t, dir)
	indexPath := filepath.Join(dir, "index.html")
	if err := os.WriteFile(indexPath, []byte(testIndex), 0o644); err != nil {
		t.Fatal(err)
	}

	patched, err := writer.PatchIndex()
	if err != nil || !patched {
		t.Fatalf("PatchIndex() = %v, %v; want true, nil", patched, err)
	}
	data, _ := os.ReadFile(indexPath)
	want := strings.Replace(testIndex, testAnchor,
		testAnchor+"\n    "+`<script type="text/javascript" src="claimzones.js"></script>`, 1)
	if string(data) != want {
		t.Errorf("index.html =\n%s\nwant\n%s", data, want)
	}

	patched, err = writer.PatchIndex()
	if err != nil || patched {
		t.Fatalf("second PatchIndex() = %v, %v; want false, nil", patched, err)
	}
	again, _ := os.ReadFile(indexPath)
	if !bytes.Equal(again, data) {
		t.Error("PatchIndex() is not idempotent")
	}
}

func TestPatchIndexFirstAnchorOnly(t *testing.T) {
	writer, dir, _ := newTestWriter(t, "")
	installScript(t, dir)
	indexPath := filepath.Join(dir, "index.html")
	twice := testAnchor + "\n" + testAnchor + "\n"
	if err := os.WriteFile(indexPath, []byte(twice), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.PatchIndex(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(indexPath)
	if got := strings.Count(string(data), "claimzones.js"); got != 1 {
		t.Errorf("script referenced %d times, want 1", got)
	}
}

func TestPatchIndexSoftFailures(t *testing.T) {
	writer, dir, logs := newTestWriter(t, "")
	installScript(t, dir)

	patched, err := writer.PatchIndex()
	if err != nil || patched {
		t.Fatalf("PatchIndex() without index = %v, %v", patched, err)
	}
	if !strings.Contains(logs.String(), "index.html not found") {
		t.Errorf("log = %q", logs.String())
	}

	indexPath := filepath.Join(dir, "index.html")
	if err := os.WriteFile(indexPath, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	patched, err = writer.PatchIndex()
	if err != nil || patched {
		t.Fatalf("PatchIndex() without anchor = %v, %v", patched, err)
	}
	if !strings.Contains(logs.String(), "anchor") {
		t.Errorf("log = %q", logs.String())
	}
	data, _ := os.ReadFile(indexPath)
	if string(data) != "<html></html>" {
		t.Error("index without anchor was modified")
	}
}

func TestEncodeDocumentNil(t *testing.T) {
	data, err := EncodeDocument(nil)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 0 {
		t.Errorf("EncodeDocument(nil) = %s", data)
	}
}
