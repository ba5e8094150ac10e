package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mapclient-tools/provenance-setup/internal/report"
)

// ValidFormats are the allowed --format values.
var ValidFormats = []string{"text", "json"}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// OutputFormatter renders the outcome report to stdout in the selected
// format. Diagnostics never go through here; they travel via slog on
// stderr so stdout stays machine-consumable.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for --format json output.
type CLIResponse struct {
	Status string          `json:"status"` // "ok" or "error"
	Data   *report.Summary `json:"data"`
	Error  *CLIError       `json:"error,omitempty"`
}

// CLIError carries the failure taxonomy entry in JSON output.
type CLIError struct {
	Code    string `json:"code"` // contract name, e.g. "GIT_SWITCH_FAILED"
	Message string `json:"message"`
}

// Outcome renders the end-of-run summary. err is the pipeline failure,
// nil on success.
func (f *OutputFormatter) Outcome(summary *report.Summary, err error) error {
	if f.Format == "json" {
		response := CLIResponse{Status: "ok", Data: summary}
		if err != nil {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    report.CodeOf(err).String(),
				Message: err.Error(),
			}
		}
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	_, writeErr := fmt.Fprint(f.Writer, summary.RenderText())
	return writeErr
}
