// Package hostcheck validates host preconditions before any stage with
// side effects runs. Checks run in a fixed order (setup directory,
// interpreter, platform, git) and short-circuit on the first failure;
// nothing here touches the filesystem beyond stat and path lookups.
package hostcheck

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/mapclient-tools/provenance-setup/internal/provenance"
	"github.com/mapclient-tools/provenance-setup/internal/report"
)

// legacyPython is the interpreter info substituted for records whose
// format version predates embedded python info. The capture tool only
// ever produced such records on macOS.
var legacyPython = provenance.PythonInfo{Version: "3.11.11", Platform: "darwin"}

// Facts are the host observations the checks run against. Every probe
// is injectable so tests never depend on the machine they run on.
type Facts struct {
	// GOOS is the host operating system in runtime.GOOS form.
	GOOS string

	// LookPath resolves an executable name against the search path.
	LookPath func(name string) (string, error)

	// Stat probes a filesystem path.
	Stat func(path string) (os.FileInfo, error)

	// PythonOverride is an interpreter forced via configuration. It
	// outranks every discovered interpreter but not the recorded one.
	PythonOverride string

	// GitExecutable is the git command to resolve, normally "git".
	GitExecutable string
}

// DefaultFacts observes the real host.
func DefaultFacts() Facts {
	return Facts{
		GOOS:          runtime.GOOS,
		LookPath:      exec.LookPath,
		Stat:          os.Stat,
		GitExecutable: "git",
	}
}

// Host is the outcome of a successful validation: the resolved tools
// the later stages drive.
type Host struct {
	// Platform is the host platform tag, in the sys.platform form the
	// records use.
	Platform string

	// Python is the interpreter the environment builder will invoke.
	Python string

	// Git is the resolved revision-control executable.
	Git string
}

// PlatformTag maps a GOOS value onto the platform tags records carry.
// Only Windows differs; everything else matches verbatim.
func PlatformTag(goos string) string {
	if goos == "windows" {
		return "win32"
	}
	return goos
}

// CheckSetupDir verifies the setup directory exists and is a
// directory. The directory is owned by the caller; it is never created
// here.
func CheckSetupDir(dir string, facts Facts) error {
	info, err := facts.Stat(dir)
	if err != nil {
		return report.WrapStageError(report.CodeSetupDirInvalid, "setup-dir", err,
			"setup directory %s does not exist", dir)
	}
	if !info.IsDir() {
		return report.NewStageError(report.CodeSetupDirInvalid, "setup-dir",
			"setup path %s is not a directory", dir)
	}
	return nil
}

// Check validates the record against the host and resolves the tools
// the pipeline needs. Order: interpreter, platform, git.
func Check(rec *provenance.Record, facts Facts) (Host, error) {
	python := rec.Python
	if rec.Legacy() && python == nil {
		if PlatformTag(facts.GOOS) != legacyPython.Platform {
			return Host{}, report.NewStageError(report.CodeDefaultPythonNotSet, "host-validate",
				"record version %s carries no interpreter info and the built-in default only covers %s (host is %s)",
				rec.Version, legacyPython.Platform, PlatformTag(facts.GOOS))
		}
		python = &legacyPython
	}

	interpreter, err := resolveInterpreter(python, facts)
	if err != nil {
		return Host{}, err
	}

	hostTag := PlatformTag(facts.GOOS)
	if python.Platform != hostTag {
		return Host{}, report.NewStageError(report.CodePlatformMismatch, "host-validate",
			"record was captured on %s but this host is %s", python.Platform, hostTag)
	}

	git, err := facts.LookPath(facts.GitExecutable)
	if err != nil {
		return Host{}, report.WrapStageError(report.CodeGitExecutableNotFound, "host-validate", err,
			"git executable %q not found on the search path", facts.GitExecutable)
	}

	return Host{Platform: hostTag, Python: interpreter, Git: git}, nil
}

// resolveInterpreter walks the resolution chain: recorded executable,
// configured override, then python3 and python on the search path.
func resolveInterpreter(python *provenance.PythonInfo, facts Facts) (string, error) {
	if python != nil && python.Executable != "" {
		if info, err := facts.Stat(python.Executable); err == nil && !info.IsDir() {
			return python.Executable, nil
		}
	}
	if facts.PythonOverride != "" {
		if path, err := facts.LookPath(facts.PythonOverride); err == nil {
			return path, nil
		}
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := facts.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", report.NewStageError(report.CodeDefaultPythonNotSet, "host-validate",
		"no usable python interpreter: record, MAPCLIENT_SETUP_PYTHON, python3 and python all failed to resolve")
}
