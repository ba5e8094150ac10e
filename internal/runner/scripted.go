package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Expectation is one scripted command: the argv the ScriptRunner will
// accept next and the outcome it plays back.
type Expectation struct {
	// Argv is the full expected argument vector, program included.
	Argv []string `yaml:"argv"`

	// Dir is the expected working directory. Empty skips the check.
	Dir string `yaml:"dir,omitempty"`

	// Exit is the exit code to play back. Non-zero turns the call into
	// a failure, exactly as ExecRunner reports one.
	Exit int `yaml:"exit,omitempty"`

	// Stdout and Stderr are played back verbatim.
	Stdout string `yaml:"stdout,omitempty"`
	Stderr string `yaml:"stderr,omitempty"`
}

// ScriptRunner is a deterministic Runner for tests. It holds an ordered
// script of expectations; each Run call must match the next entry
// exactly (same argv, same dir when specified) or the call fails. The
// strict ordering is the point: the pipeline's error-reporting contract
// depends on sequential, deterministic command order, and the script
// asserts it.
type ScriptRunner struct {
	mu     sync.Mutex
	script []Expectation
	next   int
	calls  []Command
}

// NewScriptRunner creates a ScriptRunner that will accept the given
// expectations in order.
func NewScriptRunner(script ...Expectation) *ScriptRunner {
	return &ScriptRunner{script: script}
}

// Run matches the command against the next expectation and plays back
// its outcome. Out-of-script commands and argv mismatches fail the call.
func (s *ScriptRunner) Run(_ context.Context, cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cmd)

	if s.next >= len(s.script) {
		return Result{ExitCode: -1}, fmt.Errorf("unexpected command (script exhausted): %v", cmd.Argv())
	}
	expect := s.script[s.next]
	s.next++

	if !argvEqual(expect.Argv, cmd.Argv()) {
		return Result{ExitCode: -1}, fmt.Errorf("command out of order: want %v, got %v", expect.Argv, cmd.Argv())
	}
	if expect.Dir != "" && expect.Dir != cmd.Dir {
		return Result{ExitCode: -1}, fmt.Errorf("command %v: want dir %q, got %q", cmd.Argv(), expect.Dir, cmd.Dir)
	}

	result := Result{
		ExitCode: expect.Exit,
		Stdout:   expect.Stdout,
		Stderr:   expect.Stderr,
	}
	if expect.Exit != 0 {
		return result, fmt.Errorf("%s: exit status %d%s", describe(cmd), expect.Exit, stderrSuffix(expect.Stderr))
	}
	return result, nil
}

// Calls returns every command observed so far, in order. This is the
// transcript golden tests compare.
func (s *ScriptRunner) Calls() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]Command, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// Remaining returns how many scripted expectations were never consumed.
// Tests assert zero to prove the pipeline issued every expected command.
func (s *ScriptRunner) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script) - s.next
}

// LoadScript reads an ordered expectation script from a YAML file.
// Unknown fields are rejected so fixture typos fail loudly.
func LoadScript(path string) ([]Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script []Expectation
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return script, nil
}

func argvEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
