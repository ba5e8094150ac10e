package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapclient-tools/provenance-setup/internal/report"
)

const fullRecord = `{
  "id": "map-client-provenance-record-report",
  "version": "0.2.0",
  "software_info": {
    "python": {"version": "3.11.9", "platform": "linux", "executable": "/usr/bin/python3"},
    "mapclient": {"version": "0.20.1"},
    "packages": {
      "scipy": {"version": "1.13.0", "location": "PyPI"},
      "numpy": {"version": "1.26.4", "location": "PyPI"}
    },
    "plugins": {
      "pointcloudserializerstep": {"version": "0.3.1", "location": "https://github.com/mapclient-plugins/pointcloudserializerstep.git"},
      "imagesourcestep": {"version": "1.0.2", "location": "https://github.com/mapclient-plugins/imagesourcestep.git"}
    }
  }
}`

func writeRecord(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provenance.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFullRecord(t *testing.T) {
	rec, err := Parse(writeRecord(t, fullRecord))
	require.NoError(t, err)

	assert.Equal(t, DocumentID, rec.ID)
	assert.Equal(t, "0.2.0", rec.Version)
	assert.False(t, rec.Legacy())

	require.NotNil(t, rec.Python)
	assert.Equal(t, "3.11.9", rec.Python.Version)
	assert.Equal(t, "linux", rec.Python.Platform)
	assert.Equal(t, "/usr/bin/python3", rec.Python.Executable)

	assert.Equal(t, "0.20.1", rec.MapClientVersion)
	assert.Empty(t, rec.Warnings)
}

func TestParsePreservesDocumentOrder(t *testing.T) {
	rec, err := Parse(writeRecord(t, fullRecord))
	require.NoError(t, err)

	// The mapclient pin installs first, then packages in document
	// order (scipy precedes numpy in the file, despite sorting after
	// it alphabetically).
	require.Len(t, rec.Dependencies, 3)
	assert.Equal(t, "mapclient == 0.20.1", rec.Dependencies[0].Pin())
	assert.Equal(t, "scipy == 1.13.0", rec.Dependencies[1].Pin())
	assert.Equal(t, "numpy == 1.26.4", rec.Dependencies[2].Pin())

	require.Len(t, rec.Plugins, 2)
	assert.Equal(t, "pointcloudserializerstep", rec.Plugins[0].LocalName)
	assert.Equal(t, "imagesourcestep", rec.Plugins[1].LocalName)
}

func TestParseDerivesRevisionFromVersion(t *testing.T) {
	rec, err := Parse(writeRecord(t, fullRecord))
	require.NoError(t, err)

	assert.Equal(t, "v0.3.1", rec.Plugins[0].Revision)
	assert.Equal(t, "v1.0.2", rec.Plugins[1].Revision)
}

func TestParseWarnsAboutNonPyPIPackages(t *testing.T) {
	rec, err := Parse(writeRecord(t, `{
	  "id": "map-client-provenance-record-report",
	  "version": "0.2.0",
	  "software_info": {
	    "python": {"version": "3.11.9", "platform": "linux"},
	    "packages": {
	      "localtool": {"version": "0.1.0", "location": "/home/user/localtool"}
	    },
	    "plugins": {}
	  }
	}`))
	require.NoError(t, err)

	require.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Warnings[0], "localtool")
	assert.Contains(t, rec.Warnings[0], "/home/user/localtool")
}

func TestParseEmptyRecordIsValid(t *testing.T) {
	rec, err := Parse(writeRecord(t, `{
	  "id": "map-client-provenance-record-report",
	  "version": "0.2.0",
	  "software_info": {
	    "python": {"version": "3.11.9", "platform": "linux"},
	    "packages": {},
	    "plugins": {}
	  }
	}`))
	require.NoError(t, err)

	assert.Empty(t, rec.Dependencies)
	assert.Empty(t, rec.Plugins)
	assert.Empty(t, rec.MapClientVersion)
}

func TestParseLegacyRecordOmitsPython(t *testing.T) {
	rec, err := Parse(writeRecord(t, `{
	  "id": "map-client-provenance-record-report",
	  "version": "0.1.0",
	  "software_info": {
	    "packages": {},
	    "plugins": {}
	  }
	}`))
	require.NoError(t, err)

	assert.True(t, rec.Legacy())
	assert.Nil(t, rec.Python)
}

func TestParseModernRecordRequiresPython(t *testing.T) {
	_, err := Parse(writeRecord(t, `{
	  "id": "map-client-provenance-record-report",
	  "version": "0.2.0",
	  "software_info": {
	    "packages": {},
	    "plugins": {}
	  }
	}`))
	require.Error(t, err)

	assert.Equal(t, report.CodeProvenanceFileInvalid, report.CodeOf(err))
	assert.Contains(t, err.Error(), "software_info.python")
}

func TestParseAggregatesAllViolations(t *testing.T) {
	// Missing version, wrong id, and packages absent: one error names
	// every violation.
	_, err := Parse(writeRecord(t, `{
	  "id": "some-other-report",
	  "software_info": {
	    "python": {"version": "3.11.9", "platform": "linux"},
	    "plugins": {}
	  }
	}`))
	require.Error(t, err)

	assert.Equal(t, report.CodeProvenanceFileInvalid, report.CodeOf(err))
	assert.Contains(t, err.Error(), "id")
	assert.Contains(t, err.Error(), "version")
	assert.Contains(t, err.Error(), "packages")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse(writeRecord(t, `{"id": "map-client-`))
	require.Error(t, err)
	assert.Equal(t, report.CodeProvenanceFileInvalid, report.CodeOf(err))
}

func TestParseRejectsMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, report.CodeProvenanceFileInvalid, report.CodeOf(err))
}

func TestObjectKeysScansNestedPath(t *testing.T) {
	keys, err := objectKeys([]byte(`{
	  "skip": {"nested": [1, 2, {"deep": true}]},
	  "outer": {"inner": {"z": 1, "a": 2, "m": 3}}
	}`), "outer", "inner")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, keys)
}
