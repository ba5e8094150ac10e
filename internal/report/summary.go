package report

import (
	"fmt"
	"strings"
)

// StageStatus is the recorded outcome of one pipeline stage.
type StageStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`           // "ok" or "failed"
	Detail string `json:"detail,omitempty"` // failure message or notable context
}

// Summary is the end-of-run report. It identifies what was rebuilt and
// where, and on failure names the first failing stage. There is no
// partial-success accounting beyond that.
type Summary struct {
	SetupDir       string        `json:"setup_dir"`
	ProvenanceFile string        `json:"provenance_file"`
	Environment    string        `json:"environment,omitempty"` // venv root, once built
	RecordDigest   string        `json:"record_digest,omitempty"`
	RunID          string        `json:"run_id,omitempty"`
	Stages         []StageStatus `json:"stages"`
	ExitCode       int           `json:"exit_code"`
	Failure        string        `json:"failure,omitempty"` // failing stage name
	Plugins        []string      `json:"plugins,omitempty"` // synchronized plugin local names
}

// RenderText renders the human-readable summary. Successes get a short
// confirmation; failures lead with the failing stage and code name so
// the first line alone explains the exit status.
func (s *Summary) RenderText() string {
	var b strings.Builder

	if s.ExitCode == int(CodeSuccess) {
		fmt.Fprintf(&b, "Environment ready in %s\n", s.SetupDir)
		if s.Environment != "" {
			fmt.Fprintf(&b, "  environment: %s\n", s.Environment)
		}
		if len(s.Plugins) > 0 {
			fmt.Fprintf(&b, "  plugins:     %s\n", strings.Join(s.Plugins, ", "))
		}
		if s.RecordDigest != "" {
			fmt.Fprintf(&b, "  record:      %s\n", s.RecordDigest)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Setup failed at stage %q: %s\n", s.Failure, Code(s.ExitCode))
	for _, stage := range s.Stages {
		marker := "ok"
		if stage.Status != "ok" {
			marker = "FAILED"
		}
		fmt.Fprintf(&b, "  %-12s %s", stage.Name, marker)
		if stage.Detail != "" {
			fmt.Fprintf(&b, "  %s", stage.Detail)
		}
		fmt.Fprintln(&b)
	}
	return b.String()
}
