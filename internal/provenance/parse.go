package provenance

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/mapclient-tools/provenance-setup/internal/report"
)

//go:embed schema.cue
var schemaCUE string

// parseStage is the pipeline stage name every parse failure reports.
const parseStage = "provenance"

// document mirrors the JSON file shape. Map iteration order is
// meaningless, so install and synchronization order come from a
// separate token-level scan of the raw bytes.
type document struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	SoftwareInfo struct {
		Python    *PythonInfo         `json:"python"`
		MapClient *struct {
			Version string `json:"version"`
		} `json:"mapclient"`
		Packages map[string]pinnedSource `json:"packages"`
		Plugins  map[string]pinnedSource `json:"plugins"`
	} `json:"software_info"`
}

type pinnedSource struct {
	Version  string `json:"version"`
	Location string `json:"location"`
}

// Parse reads and validates one provenance file and returns the fully
// decoded record. The only side effect is reading that file.
//
// Validation is aggregate-all: every schema violation found in the
// file is folded into the single returned error, so a capture with
// three missing fields is fixed in one round trip, not three.
func Parse(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, report.WrapStageError(report.CodeProvenanceFileInvalid, parseStage, err,
			"cannot read provenance file %s", path)
	}
	return parseBytes(path, data)
}

func parseBytes(path string, data []byte) (*Record, error) {
	var violations []string

	invalid, err := validateSchema(path, data)
	if err != nil {
		// Not JSON at all, or the CUE schema itself failed to build.
		return nil, report.WrapStageError(report.CodeProvenanceFileInvalid, parseStage, err,
			"provenance file %s is not a valid record", path)
	}
	for _, e := range cueerrors.Errors(invalid) {
		violations = append(violations, e.Error())
	}

	var doc document
	if len(violations) == 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, report.WrapStageError(report.CodeProvenanceFileInvalid, parseStage, err,
				"provenance file %s is not a valid record", path)
		}
		if doc.SoftwareInfo.Python == nil && doc.Version != legacyVersion {
			violations = append(violations,
				fmt.Sprintf("software_info.python: required for record version %s", doc.Version))
		}
	}

	if len(violations) > 0 {
		return nil, report.NewStageError(report.CodeProvenanceFileInvalid, parseStage,
			"provenance file %s is not a valid record:\n  %s", path, strings.Join(violations, "\n  "))
	}

	return buildRecord(data, &doc)
}

// validateSchema unifies the JSON document with the embedded schema.
// invalid carries every schema violation (nil when the document
// conforms); fatal reports unparseable JSON or a broken schema.
func validateSchema(path string, data []byte) (invalid, fatal error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}

	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return nil, err
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return nil, err
	}

	return schema.Unify(value).Validate(cue.Final(), cue.Concrete(true)), nil
}

// buildRecord assembles the Record from the decoded document, restoring
// document order for packages and plugins from the raw bytes.
func buildRecord(data []byte, doc *document) (*Record, error) {
	rec := &Record{
		ID:      doc.ID,
		Version: doc.Version,
		Python:  doc.SoftwareInfo.Python,
	}

	if doc.SoftwareInfo.MapClient != nil {
		rec.MapClientVersion = doc.SoftwareInfo.MapClient.Version
		rec.Dependencies = append(rec.Dependencies, Dependency{
			Name:     "mapclient",
			Version:  doc.SoftwareInfo.MapClient.Version,
			Location: "PyPI",
		})
	}

	packageOrder, err := objectKeys(data, "software_info", "packages")
	if err != nil {
		return nil, report.WrapStageError(report.CodeProvenanceFileInvalid, parseStage, err,
			"cannot recover package order")
	}
	for _, name := range packageOrder {
		pin := doc.SoftwareInfo.Packages[name]
		rec.Dependencies = append(rec.Dependencies, Dependency{
			Name:     name,
			Version:  pin.Version,
			Location: pin.Location,
		})
		if pin.Location != "PyPI" {
			rec.Warnings = append(rec.Warnings,
				fmt.Sprintf("package %s is not installed from PyPI (location: %s)", name, pin.Location))
		}
	}

	pluginOrder, err := objectKeys(data, "software_info", "plugins")
	if err != nil {
		return nil, report.WrapStageError(report.CodeProvenanceFileInvalid, parseStage, err,
			"cannot recover plugin order")
	}
	for _, name := range pluginOrder {
		pin := doc.SoftwareInfo.Plugins[name]
		rec.Plugins = append(rec.Plugins, Source{
			LocalName: name,
			Location:  pin.Location,
			Version:   pin.Version,
			Revision:  "v" + pin.Version,
		})
	}

	return rec, nil
}

// objectKeys returns the keys of the JSON object found at path, in
// document order. The schema has already guaranteed the path exists
// and denotes an object.
func objectKeys(data []byte, path ...string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	return scanObject(dec, path)
}

func scanObject(dec *json.Decoder, path []string) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, found %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, found %v", tok)
		}

		switch {
		case len(path) == 0:
			keys = append(keys, key)
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		case key == path[0]:
			return scanObject(dec, path[1:])
		default:
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		}
	}

	if len(path) > 0 {
		return nil, fmt.Errorf("object %q not found", path[0])
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, err
	}
	return keys, nil
}

// skipValue consumes one complete JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
