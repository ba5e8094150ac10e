package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mapclient-tools/provenance-setup/internal/runner"
)

// Scenario is one declarative conformance case: a provenance document,
// the host facts to fake, the filesystem state the setup directory
// starts with, the exact external commands the pipeline is allowed to
// issue, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Provenance is the record document written to provenance.json in
	// the setup directory. Empty means no file is written, so the
	// pipeline sees a missing record.
	Provenance string `yaml:"provenance,omitempty"`

	// Host fakes the host observations validation runs against.
	Host HostFacts `yaml:"host"`

	// PrebuiltEnv plants the virtual environment marker before the
	// run, simulating a setup directory built by an earlier run.
	PrebuiltEnv bool `yaml:"prebuilt_env,omitempty"`

	// PreexistingDirs are directories created under the setup
	// directory before the run (e.g. already-cloned plugins).
	PreexistingDirs []string `yaml:"preexisting_dirs,omitempty"`

	// Script lists every external command the run may issue, in order.
	// The literal $SETUP_DIR is replaced with the actual directory.
	Script []runner.Expectation `yaml:"script,omitempty"`

	// Expect is the required outcome.
	Expect Outcome `yaml:"expect"`
}

// HostFacts describes the fake host.
type HostFacts struct {
	// Platform is the host operating system in runtime.GOOS form.
	Platform string `yaml:"platform"`

	// Executables maps names to resolved paths; lookups of anything
	// else fail.
	Executables map[string]string `yaml:"executables,omitempty"`
}

// Outcome is the expected end state of a scenario run.
type Outcome struct {
	ExitCode     int    `yaml:"exit_code"`
	FailureStage string `yaml:"failure_stage,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file. Unknown
// fields are rejected so fixture typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Host.Platform == "" {
		return fmt.Errorf("host.platform is required")
	}
	for i, expect := range s.Script {
		if len(expect.Argv) == 0 {
			return fmt.Errorf("script[%d]: argv is required", i)
		}
	}
	return nil
}
