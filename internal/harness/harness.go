// Package harness runs declarative conformance scenarios against the
// whole CLI surface: YAML fixtures describe the record, the faked host
// and the exact external commands a run may issue; golden files pin
// the resulting command transcript and outcome.
package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mapclient-tools/provenance-setup/internal/cli"
	"github.com/mapclient-tools/provenance-setup/internal/hostcheck"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
	"github.com/mapclient-tools/provenance-setup/internal/venv"
)

// setupDirToken is the placeholder scenarios use for the run's setup
// directory, which only exists at execution time.
const setupDirToken = "$SETUP_DIR"

// Result captures everything a scenario run produced.
type Result struct {
	Name         string
	ExitCode     int
	FailureStage string
	Err          error
	Stdout       string
	Stderr       string

	// Transcript is every external command issued, in order, with the
	// setup directory folded back to $SETUP_DIR so the rendering is
	// machine-independent.
	Transcript []string

	// ScriptRemaining counts scripted commands the run never issued.
	ScriptRemaining int
}

// RunScenario executes one scenario in a fresh temp setup directory
// and returns the observed result. Scenario infrastructure problems
// fail the test immediately; pipeline failures land in the Result.
func RunScenario(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	setupDir := t.TempDir()
	provenancePath := filepath.Join(setupDir, "provenance.json")
	if scenario.Provenance != "" {
		if err := os.WriteFile(provenancePath, []byte(scenario.Provenance), 0o644); err != nil {
			t.Fatalf("write provenance fixture: %v", err)
		}
	}
	if scenario.PrebuiltEnv {
		root := filepath.Join(setupDir, venv.DirName)
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatalf("plant environment: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("home = /usr\n"), 0o644); err != nil {
			t.Fatalf("plant pyvenv.cfg: %v", err)
		}
	}
	for _, dir := range scenario.PreexistingDirs {
		if err := os.MkdirAll(filepath.Join(setupDir, dir), 0o755); err != nil {
			t.Fatalf("plant directory %s: %v", dir, err)
		}
	}

	script := runner.NewScriptRunner(bindScript(scenario.Script, setupDir)...)
	opts := &cli.Options{
		Runner: script,
		Facts: &hostcheck.Facts{
			GOOS:          scenario.Host.Platform,
			LookPath:      lookPathIn(scenario.Host.Executables),
			Stat:          os.Stat,
			GitExecutable: "git",
		},
		Config: &cli.Config{Git: "git", Journal: false},
	}

	cmd := cli.NewRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"-p", provenancePath, setupDir})
	err := cmd.Execute()

	result := &Result{
		Name:            scenario.Name,
		ExitCode:        int(report.CodeOf(err)),
		FailureStage:    report.StageOf(err),
		Err:             err,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ScriptRemaining: script.Remaining(),
	}
	for _, call := range script.Calls() {
		result.Transcript = append(result.Transcript, renderCall(call, setupDir))
	}
	return result
}

// AssertOutcome checks the scenario's expected exit code and failing
// stage, and that the run consumed its entire command script.
func AssertOutcome(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	if result.ExitCode != scenario.Expect.ExitCode {
		t.Errorf("exit code = %d (%s), want %d; err: %v",
			result.ExitCode, report.Code(result.ExitCode), scenario.Expect.ExitCode, result.Err)
	}
	if result.FailureStage != scenario.Expect.FailureStage {
		t.Errorf("failing stage = %q, want %q", result.FailureStage, scenario.Expect.FailureStage)
	}
	if result.ScriptRemaining != 0 {
		t.Errorf("%d scripted commands were never issued", result.ScriptRemaining)
	}
}

// Render produces the canonical transcript text golden files pin.
func (r *Result) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Name)
	fmt.Fprintf(&b, "exit: %d (%s)\n", r.ExitCode, report.Code(r.ExitCode))
	stage := r.FailureStage
	if stage == "" {
		stage = "-"
	}
	fmt.Fprintf(&b, "stage: %s\n", stage)
	b.WriteString("commands:\n")
	for i, line := range r.Transcript {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, line)
	}
	return b.String()
}

// bindScript substitutes the setup directory into the scripted
// expectations.
func bindScript(script []runner.Expectation, setupDir string) []runner.Expectation {
	bound := make([]runner.Expectation, len(script))
	for i, expect := range script {
		bound[i] = expect
		bound[i].Dir = strings.ReplaceAll(expect.Dir, setupDirToken, setupDir)
		bound[i].Argv = make([]string, len(expect.Argv))
		for k, arg := range expect.Argv {
			bound[i].Argv[k] = strings.ReplaceAll(arg, setupDirToken, setupDir)
		}
	}
	return bound
}

func renderCall(call runner.Command, setupDir string) string {
	line := strings.Join(call.Argv(), " ")
	if call.Dir != "" {
		line += " [in " + call.Dir + "]"
	}
	return strings.ReplaceAll(line, setupDir, setupDirToken)
}

func lookPathIn(executables map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if path, ok := executables[name]; ok {
			return path, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}
