// Package report defines the stable outcome contract of the setup tool:
// the fixed exit-code taxonomy, the typed stage error that carries a code
// through the pipeline, and the run summary rendered at exit.
//
// The numeric codes are a stable contract consumed by calling tooling
// and must never be renumbered.
package report

import (
	"fmt"
	"strings"
)

// Code is a process exit code with a fixed meaning.
type Code int

// Exit codes. Each failure kind is raised at exactly one pipeline stage
// and is terminal; the process reports and exits with the mapped code.
const (
	// CodeSuccess means the environment was rebuilt and activated.
	CodeSuccess Code = 0

	// CodeSetupDirInvalid means the setup directory does not exist or is
	// not a directory.
	CodeSetupDirInvalid Code = 1

	// CodeProvenanceFileInvalid means the provenance file is unreadable,
	// malformed, or missing required fields.
	CodeProvenanceFileInvalid Code = 2

	// CodeDefaultPythonNotSet means no usable Python interpreter was
	// recorded, configured, or discoverable on the host.
	CodeDefaultPythonNotSet Code = 3

	// CodePlatformMismatch means the recorded platform tag differs from
	// the host platform tag.
	CodePlatformMismatch Code = 4

	// CodeGitExecutableNotFound means the git executable is not on the
	// host search path.
	CodeGitExecutableNotFound Code = 5

	// CodeVirtualEnvSetupFailed means virtual environment creation did
	// not complete.
	CodeVirtualEnvSetupFailed Code = 6

	// CodeRequirementsInstallFailed means installing the recorded
	// dependency list failed. Partial installs are left in place.
	CodeRequirementsInstallFailed Code = 7

	// CodePluginCloneFailed means cloning a plugin repository failed.
	CodePluginCloneFailed Code = 8

	// CodeGitSwitchFailed means switching a plugin working tree to the
	// recorded revision failed.
	CodeGitSwitchFailed Code = 9

	// CodeMapClientUseFailed means the MAP Client activation smoke test
	// exited non-zero or could not start.
	CodeMapClientUseFailed Code = 10
)

// codeNames maps each code to its contract name, in code order.
var codeNames = []struct {
	code Code
	name string
}{
	{CodeSuccess, "SUCCESS"},
	{CodeSetupDirInvalid, "SETUP_DIR_INVALID"},
	{CodeProvenanceFileInvalid, "PROVENANCE_FILE_INVALID"},
	{CodeDefaultPythonNotSet, "DEFAULT_PYTHON_NOT_SET"},
	{CodePlatformMismatch, "PLATFORM_MISMATCH"},
	{CodeGitExecutableNotFound, "GIT_EXECUTABLE_NOT_FOUND"},
	{CodeVirtualEnvSetupFailed, "VIRTUALENV_SETUP_FAILED"},
	{CodeRequirementsInstallFailed, "REQUIREMENTS_INSTALL_FAILED"},
	{CodePluginCloneFailed, "PLUGIN_CLONE_FAILED"},
	{CodeGitSwitchFailed, "GIT_SWITCH_FAILED"},
	{CodeMapClientUseFailed, "MAPCLIENT_USE_FAILED"},
}

// String returns the contract name for the code, or "UNKNOWN(<n>)" for
// values outside the taxonomy.
func (c Code) String() string {
	for _, entry := range codeNames {
		if entry.code == c {
			return entry.name
		}
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

// DescribeCodes renders the return-code table for help text, one
// "  <n> - <NAME>" line per code. The rendering is embedded in the CLI
// usage description so the contract is visible to operators.
func DescribeCodes() string {
	var b strings.Builder
	for _, entry := range codeNames {
		fmt.Fprintf(&b, "  %2d - %s\n", int(entry.code), entry.name)
	}
	return strings.TrimRight(b.String(), "\n")
}
