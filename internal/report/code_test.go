package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeValues(t *testing.T) {
	// The numeric values are a stable contract; renumbering breaks
	// every caller that matches on exit status.
	assert.Equal(t, 0, int(CodeSuccess))
	assert.Equal(t, 1, int(CodeSetupDirInvalid))
	assert.Equal(t, 2, int(CodeProvenanceFileInvalid))
	assert.Equal(t, 3, int(CodeDefaultPythonNotSet))
	assert.Equal(t, 4, int(CodePlatformMismatch))
	assert.Equal(t, 5, int(CodeGitExecutableNotFound))
	assert.Equal(t, 6, int(CodeVirtualEnvSetupFailed))
	assert.Equal(t, 7, int(CodeRequirementsInstallFailed))
	assert.Equal(t, 8, int(CodePluginCloneFailed))
	assert.Equal(t, 9, int(CodeGitSwitchFailed))
	assert.Equal(t, 10, int(CodeMapClientUseFailed))
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
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

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
		})
	}
}

func TestCodeString_Unknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN(42)", Code(42).String())
}

func TestDescribeCodes(t *testing.T) {
	table := DescribeCodes()

	lines := strings.Split(table, "\n")
	require.Len(t, lines, 11, "one line per code")

	// Every contract name appears, in code order.
	for i, name := range []string{
		"SUCCESS", "SETUP_DIR_INVALID", "PROVENANCE_FILE_INVALID",
		"DEFAULT_PYTHON_NOT_SET", "PLATFORM_MISMATCH", "GIT_EXECUTABLE_NOT_FOUND",
		"VIRTUALENV_SETUP_FAILED", "REQUIREMENTS_INSTALL_FAILED",
		"PLUGIN_CLONE_FAILED", "GIT_SWITCH_FAILED", "MAPCLIENT_USE_FAILED",
	} {
		assert.Contains(t, lines[i], name)
	}
}
