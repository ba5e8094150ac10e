package venv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapclient-tools/provenance-setup/internal/provenance"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
)

func TestEnvironmentBinLayout(t *testing.T) {
	posix := Environment{Root: "/setup/venv_map_client", GOOS: "linux"}
	assert.Equal(t, filepath.Join("/setup/venv_map_client", "bin", "pip"), posix.Bin("pip"))

	win := Environment{Root: `C:\setup\venv_map_client`, GOOS: "windows"}
	assert.Equal(t, filepath.Join(`C:\setup\venv_map_client`, "Scripts", "pip.exe"), win.Bin("pip"))
}

func TestCreateRunsVenvModule(t *testing.T) {
	setupDir := t.TempDir()
	script := runner.NewScriptRunner(runner.Expectation{
		Argv: []string{"/usr/bin/python3", "-m", "venv", DirName},
		Dir:  setupDir,
	})
	b := &Builder{Runner: script, GOOS: "linux"}

	env, reused, err := b.Create(context.Background(), setupDir, "/usr/bin/python3")
	require.NoError(t, err)

	assert.False(t, reused)
	assert.Equal(t, filepath.Join(setupDir, DirName), env.Root)
	assert.Zero(t, script.Remaining())
}

func TestCreateReusesExistingEnvironment(t *testing.T) {
	setupDir := t.TempDir()
	root := filepath.Join(setupDir, DirName)
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("home = /usr\n"), 0o644))

	// An empty script: any spawned process would fail the run.
	script := runner.NewScriptRunner()
	b := &Builder{Runner: script, GOOS: "linux"}

	env, reused, err := b.Create(context.Background(), setupDir, "/usr/bin/python3")
	require.NoError(t, err)

	assert.True(t, reused)
	assert.Equal(t, root, env.Root)
	assert.Empty(t, script.Calls())
}

func TestCreateFailure(t *testing.T) {
	setupDir := t.TempDir()
	script := runner.NewScriptRunner(runner.Expectation{
		Argv:   []string{"/usr/bin/python3", "-m", "venv", DirName},
		Dir:    setupDir,
		Exit:   1,
		Stderr: "Error: unable to create directory",
	})
	b := &Builder{Runner: script, GOOS: "linux"}

	_, _, err := b.Create(context.Background(), setupDir, "/usr/bin/python3")
	require.Error(t, err)
	assert.Equal(t, report.CodeVirtualEnvSetupFailed, report.CodeOf(err))
	assert.Equal(t, "virtualenv", report.StageOf(err))
}

func TestInstallWritesPinsInRecordedOrder(t *testing.T) {
	setupDir := t.TempDir()
	env := Environment{Root: filepath.Join(setupDir, DirName), GOOS: "linux"}
	script := runner.NewScriptRunner(runner.Expectation{
		Argv: []string{env.Bin("pip"), "install", "-r", "requirements.txt"},
		Dir:  setupDir,
	})
	b := &Builder{Runner: script, GOOS: "linux"}

	deps := []provenance.Dependency{
		{Name: "mapclient", Version: "0.20.1"},
		{Name: "scipy", Version: "1.13.0"},
		{Name: "numpy", Version: "1.26.4"},
	}
	require.NoError(t, b.Install(context.Background(), setupDir, env, deps))

	written, err := os.ReadFile(filepath.Join(setupDir, "requirements.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mapclient == 0.20.1\nscipy == 1.13.0\nnumpy == 1.26.4\n", string(written))
	assert.Zero(t, script.Remaining())
}

func TestInstallSkipsEmptyDependencyList(t *testing.T) {
	setupDir := t.TempDir()
	env := Environment{Root: filepath.Join(setupDir, DirName), GOOS: "linux"}
	script := runner.NewScriptRunner()
	b := &Builder{Runner: script, GOOS: "linux"}

	require.NoError(t, b.Install(context.Background(), setupDir, env, nil))

	_, err := os.Stat(filepath.Join(setupDir, "requirements.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, script.Calls())
}

func TestInstallFailure(t *testing.T) {
	setupDir := t.TempDir()
	env := Environment{Root: filepath.Join(setupDir, DirName), GOOS: "linux"}
	script := runner.NewScriptRunner(runner.Expectation{
		Argv:   []string{env.Bin("pip"), "install", "-r", "requirements.txt"},
		Dir:    setupDir,
		Exit:   1,
		Stderr: "ERROR: No matching distribution found for numpy==9.9.9",
	})
	b := &Builder{Runner: script, GOOS: "linux"}

	err := b.Install(context.Background(), setupDir, env, []provenance.Dependency{
		{Name: "numpy", Version: "9.9.9"},
	})
	require.Error(t, err)
	assert.Equal(t, report.CodeRequirementsInstallFailed, report.CodeOf(err))
	assert.Equal(t, "requirements", report.StageOf(err))
	assert.Contains(t, err.Error(), "No matching distribution")
}
