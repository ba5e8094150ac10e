// Package venv builds the isolated Python environment the record
// describes: a virtual environment under the setup directory plus the
// recorded dependency pins installed into it.
package venv

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mapclient-tools/provenance-setup/internal/provenance"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
)

// DirName is the virtual environment's directory name under the setup
// directory. The capture tool uses the same literal, so replayed and
// originally captured setups are laid out identically.
const DirName = "venv_map_client"

// requirementsName is the pin file written next to the environment.
const requirementsName = "requirements.txt"

// Environment is the handle to a created virtual environment.
type Environment struct {
	// Root is the environment directory, <setupDir>/venv_map_client.
	Root string

	// GOOS selects the bin layout: Scripts/*.exe on Windows, bin/*
	// everywhere else.
	GOOS string
}

// Bin returns the path of a named executable inside the environment.
func (e Environment) Bin(name string) string {
	if e.GOOS == "windows" {
		return filepath.Join(e.Root, "Scripts", name+".exe")
	}
	return filepath.Join(e.Root, "bin", name)
}

// Builder creates environments and installs dependency pins through
// the external tools (python -m venv, pip).
type Builder struct {
	Runner runner.Runner
	GOOS   string
	Log    *slog.Logger
}

func (b *Builder) log() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

// Create produces the virtual environment under setupDir using the
// given interpreter. An environment that already exists (detected by
// its pyvenv.cfg marker) is reused rather than rebuilt, so re-running
// against a built setup directory never corrupts it; reused reports
// which case occurred.
func (b *Builder) Create(ctx context.Context, setupDir, python string) (env Environment, reused bool, err error) {
	env = Environment{Root: filepath.Join(setupDir, DirName), GOOS: b.GOOS}

	if _, statErr := os.Stat(filepath.Join(env.Root, "pyvenv.cfg")); statErr == nil {
		b.log().Info("reusing existing virtual environment", "root", env.Root)
		return env, true, nil
	}

	b.log().Info("creating virtual environment", "root", env.Root, "python", python)
	_, err = b.Runner.Run(ctx, runner.Command{
		Path: python,
		Args: []string{"-m", "venv", DirName},
		Dir:  setupDir,
	})
	if err != nil {
		return Environment{}, false, report.WrapStageError(report.CodeVirtualEnvSetupFailed, "virtualenv", err,
			"virtual environment creation failed in %s", setupDir)
	}
	return env, false, nil
}

// Install writes the recorded pins to requirements.txt and installs
// them with the environment's own pip, in recorded order. A record
// with no dependencies skips both the file write and the pip call. A
// failing install leaves whatever pip managed to install in place;
// there is no rollback.
func (b *Builder) Install(ctx context.Context, setupDir string, env Environment, deps []provenance.Dependency) error {
	if len(deps) == 0 {
		b.log().Debug("no dependencies recorded, skipping install")
		return nil
	}

	pins := make([]string, len(deps))
	for i, dep := range deps {
		pins[i] = dep.Pin()
	}
	requirements := filepath.Join(setupDir, requirementsName)
	if err := os.WriteFile(requirements, []byte(strings.Join(pins, "\n")+"\n"), 0o644); err != nil {
		return report.WrapStageError(report.CodeRequirementsInstallFailed, "requirements", err,
			"cannot write %s", requirements)
	}

	b.log().Info("installing dependencies", "count", len(deps), "requirements", requirements)
	_, err := b.Runner.Run(ctx, runner.Command{
		Path: env.Bin("pip"),
		Args: []string{"install", "-r", requirementsName},
		Dir:  setupDir,
	})
	if err != nil {
		return report.WrapStageError(report.CodeRequirementsInstallFailed, "requirements", err,
			"dependency install failed, partial installs are left in place")
	}
	return nil
}
