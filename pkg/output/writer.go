// Package output writes the generated zone document into a map renderer's
// output directory and makes sure the overlay script is installed there.
package output

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/coolbeans/zonegen/pkg/zones"
)

//go:embed zones.schema.json
var schemaSource string

var documentSchema = jsonschema.MustCompileString("zones.schema.json", schemaSource)

// OverlayScript is the built-in overlay script installed when no script
// source is configured.
//
//go:embed claimzones.js
var OverlayScript []byte

// ScriptTag returns the HTML element that loads the named script.
func ScriptTag(scriptName string) string {
	return fmt.Sprintf(`<script type="text/javascript" src="%s"></script>`, scriptName)
}

// WriterConfig names the files a Writer touches inside its directory.
type WriterConfig struct {
	ZonesFile string

	// ScriptSource is the path the overlay script is copied from. Empty
	// installs OverlayScript.
	ScriptSource string
	ScriptName   string

	IndexFile string

	// Anchor is the text in the index file after which the script tag is
	// inserted.
	Anchor string
}

// Writer writes into one output directory.
type Writer struct {
	dir    string
	config WriterConfig
	logger *log.Logger
}

// NewWriter creates a writer for dir. The directory must already exist.
func NewWriter(dir string, config WriterConfig, logger *log.Logger) (*Writer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", dir)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{dir: dir, config: config, logger: logger}, nil
}

// ZonesPath returns the path of the written document.
func (writer *Writer) ZonesPath() string {
	return filepath.Join(writer.dir, writer.config.ZonesFile)
}

// WriteDocument validates the document and writes it as compact JSON,
// replacing any previous file. It returns the number of bytes written.
func (writer *Writer) WriteDocument(document zones.Document) (int, error) {
	data, err := EncodeDocument(document)
	if err != nil {
		return 0, err
	}
	if err := ValidateDocument(data); err != nil {
		return 0, err
	}
	if err := os.WriteFile(writer.ZonesPath(), data, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", writer.config.ZonesFile, err)
	}
	return len(data), nil
}

// EncodeDocument renders a document as compact JSON without HTML escaping.
func EncodeDocument(document zones.Document) ([]byte, error) {
	if document == nil {
		document = zones.Document{}
	}
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(document); err != nil {
		return nil, fmt.Errorf("encoding zones: %w", err)
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}

// ValidateDocument checks raw JSON against the zone document schema.
func ValidateDocument(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("parsing zones: %w", err)
	}
	if err := documentSchema.Validate(decoded); err != nil {
		return fmt.Errorf("zones document does not match schema: %w", err)
	}
	return nil
}

// DecodeDocument validates raw JSON and decodes it.
func DecodeDocument(data []byte) (zones.Document, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var document zones.Document
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("decoding zones: %w", err)
	}
	return document, nil
}

// SyncScript copies the overlay script into the output directory unless a
// file of that name is already there. A missing source is logged and not an
// error. It reports whether a copy was made.
func (writer *Writer) SyncScript() (bool, error) {
	destination := filepath.Join(writer.dir, writer.config.ScriptName)
	if _, err := os.Stat(destination); err == nil {
		return false, nil
	}

	var source io.Reader = bytes.NewReader(OverlayScript)
	if writer.config.ScriptSource != "" {
		file, err := os.Open(writer.config.ScriptSource)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writer.logger.Printf("warning: can't find script source %s", writer.config.ScriptSource)
				return false, nil
			}
			return false, fmt.Errorf("opening script source: %w", err)
		}
		defer file.Close()
		source = file
	}

	target, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("creating %s: %w", writer.config.ScriptName, err)
	}

	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		os.Remove(destination)
		return false, fmt.Errorf("copying %s: %w", writer.config.ScriptName, err)
	}
	if err := target.Close(); err != nil {
		os.Remove(destination)
		return false, fmt.Errorf("closing %s: %w", writer.config.ScriptName, err)
	}
	return true, nil
}

// PatchIndex inserts the script tag after the first anchor in the index file
// when the file does not mention the script yet. The index is left alone
// while the script itself is missing from the directory. A missing script,
// index file or anchor is logged and not an error. It reports whether the
// file changed.
func (writer *Writer) PatchIndex() (bool, error) {
	scriptPath := filepath.Join(writer.dir, writer.config.ScriptName)
	if _, err := os.Stat(scriptPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writer.logger.Printf("warning: %s not found in %s, index not patched", writer.config.ScriptName, writer.dir)
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", writer.config.ScriptName, err)
	}

	indexPath := filepath.Join(writer.dir, writer.config.IndexFile)
	info, err := os.Stat(indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writer.logger.Printf("warning: %s not found in %s, script not referenced", writer.config.IndexFile, writer.dir)
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", writer.config.IndexFile, err)
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", writer.config.IndexFile, err)
	}
	contents := string(data)

	if strings.Contains(contents, writer.config.ScriptName) {
		return false, nil
	}
	if !strings.Contains(contents, writer.config.Anchor) {
		writer.logger.Printf("warning: anchor %q not found in %s, script not referenced", writer.config.Anchor, writer.config.IndexFile)
		return false, nil
	}

	patched := strings.Replace(contents, writer.config.Anchor,
		writer.config.Anchor+"\n    "+ScriptTag(writer.config.ScriptName), 1)
	if err := os.WriteFile(indexPath, []byte(patched), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing %s: %w", writer.config.IndexFile, err)
	}
	return true, nil
}
