package provenance

// DocumentID is the literal "id" value every MAP Client provenance
// record carries. Files without it are not provenance records at all.
const DocumentID = "map-client-provenance-record-report"

// legacyVersion is the record format version that legitimately omits
// the python section. The validator substitutes a built-in default for
// these records; anything newer must carry the section itself.
const legacyVersion = "0.1.0"

// PythonInfo describes the interpreter the record was captured with.
type PythonInfo struct {
	// Version is the interpreter version, e.g. "3.11.11".
	Version string `json:"version"`

	// Platform is the capture host's platform tag in sys.platform
	// form: "linux", "darwin", "win32".
	Platform string `json:"platform"`

	// Executable is the recorded interpreter path, when the capture
	// included one. Optional.
	Executable string `json:"executable,omitempty"`
}

// Dependency is one pinned package the environment must contain.
type Dependency struct {
	Name     string
	Version  string
	Location string // "PyPI" or wherever the capture installed it from
}

// Pin renders the dependency as a requirements line.
func (d Dependency) Pin() string {
	return d.Name + " == " + d.Version
}

// Source is one plugin repository reference: where to clone it from,
// the exact revision to check out, and the directory name it lives
// under inside the plugins root.
type Source struct {
	LocalName string
	Location  string
	Version   string

	// Revision is the git reference to check out, derived from Version
	// using the capture tool's tag convention ("v" + version).
	Revision string
}

// Record is a fully validated provenance record. It is either
// constructed whole by Parse or not at all; no partially populated
// Record escapes this package.
type Record struct {
	ID      string
	Version string

	// Python is nil only for legacy-version records, which substitute
	// a built-in default at validation time.
	Python *PythonInfo

	// MapClientVersion is the recorded MAP Client release. Empty when
	// the record carries no mapclient section.
	MapClientVersion string

	// Dependencies lists every pin in install order: the mapclient pin
	// first, then each recorded package in document order.
	Dependencies []Dependency

	// Plugins lists every plugin source in document order.
	Plugins []Source

	// Warnings carries non-fatal observations from parsing, currently
	// one per package whose recorded location is not PyPI.
	Warnings []string
}

// Legacy reports whether the record predates embedded python info.
func (r *Record) Legacy() bool {
	return r.Version == legacyVersion
}
