package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	requireTool(t, "sh")

	result, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireTool(t, "sh")

	result, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	})
	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, err.Error(), "broken", "stderr folded into the error")
}

func TestExecRunner_StartFailure(t *testing.T) {
	result, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "/nonexistent/tool-xyzzy",
	})
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
}

func TestExecRunner_WorkingDirectory(t *testing.T) {
	requireTool(t, "sh")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	result, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "ls"},
		Dir:  dir,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "marker.txt")
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}
