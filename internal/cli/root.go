package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapclient-tools/provenance-setup/internal/hostcheck"
	"github.com/mapclient-tools/provenance-setup/internal/journal"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
)

// Options holds the flag values plus the collaborator seams tests
// substitute. Zero-value fields are defaulted when the command runs:
// a real process runner, real host facts, UUIDv7 run ids and
// environment-variable configuration.
type Options struct {
	Verbose        bool
	Format         string // "text" | "json"
	ProvenanceFile string
	NoJournal      bool

	// Runner executes external processes. Defaults to ExecRunner.
	Runner runner.Runner

	// Facts are the host observations validation runs against.
	// Defaults to the real host, configured from the environment.
	Facts *hostcheck.Facts

	// IDs generates run identifiers for the journal.
	IDs journal.IDGenerator

	// Config overrides environment-variable configuration.
	Config *Config
}

// NewRootCommand creates the setup_from_provenance command. The tool
// has exactly one job, so there are no subcommands.
func NewRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup_from_provenance [flags] setup_dir",
		Short: "Set up a MAP Client environment exactly as recorded in a provenance file",
		Long: fmt.Sprintf(`Set up a MAP Client environment exactly as recorded in a provenance file.

Rebuilds the virtual environment, installs the recorded dependency pins
and clones every recorded plugin repository at its pinned revision into
the given setup directory, then launches MAP Client once to confirm the
environment works. The setup directory must already exist.

Return codes:
%s`, report.DescribeCodes()),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ProvenanceFile, "provenance-file", "p", "provenance.json", "provenance record file to replay")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "disable the run journal")

	return cmd
}
