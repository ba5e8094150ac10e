package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapclient-tools/provenance-setup/internal/hostcheck"
	"github.com/mapclient-tools/provenance-setup/internal/journal"
	"github.com/mapclient-tools/provenance-setup/internal/pipeline"
	"github.com/mapclient-tools/provenance-setup/internal/plugin"
	"github.com/mapclient-tools/provenance-setup/internal/provenance"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
	"github.com/mapclient-tools/provenance-setup/internal/venv"
)

// runSetup drives the whole replay: validate, build the environment,
// install dependencies, synchronize plugins, activate. Strictly
// sequential, fail-fast, no retries.
func runSetup(opts *Options, setupDir string, cmd *cobra.Command) error {
	ctx := context.Background()

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := opts.Config
	if cfg == nil {
		loaded := LoadConfigFromEnv()
		cfg = &loaded
	}
	run := opts.Runner
	if run == nil {
		run = runner.ExecRunner{}
	}
	facts := opts.Facts
	if facts == nil {
		defaults := hostcheck.DefaultFacts()
		defaults.PythonOverride = cfg.Python
		if cfg.Git != "" {
			defaults.GitExecutable = cfg.Git
		}
		facts = &defaults
	}
	ids := opts.IDs
	if ids == nil {
		ids = journal.UUIDv7Generator{}
	}

	summary := &report.Summary{
		SetupDir:       setupDir,
		ProvenanceFile: opts.ProvenanceFile,
	}

	// Pipeline state threaded between stages.
	var (
		rec    *provenance.Record
		digest string
		host   hostcheck.Host
		env    venv.Environment
	)
	builder := &venv.Builder{Runner: run, GOOS: facts.GOOS, Log: log}

	stages := []pipeline.Stage{
		{Name: "setup-dir", Run: func(context.Context) error {
			return hostcheck.CheckSetupDir(setupDir, *facts)
		}},
		{Name: "provenance", Run: func(context.Context) error {
			parsed, err := provenance.Parse(opts.ProvenanceFile)
			if err != nil {
				return err
			}
			rec = parsed
			for _, warning := range rec.Warnings {
				log.Warn(warning)
			}
			if digest, err = provenance.Digest(rec); err != nil {
				log.Warn("cannot digest record", "error", err)
			}
			summary.RecordDigest = digest
			log.Info("provenance record parsed",
				"version", rec.Version, "dependencies", len(rec.Dependencies), "plugins", len(rec.Plugins))
			return nil
		}},
		{Name: "host-validate", Run: func(context.Context) error {
			var err error
			host, err = hostcheck.Check(rec, *facts)
			if err != nil {
				return err
			}
			log.Debug("host validated", "platform", host.Platform, "python", host.Python, "git", host.Git)
			return nil
		}},
		{Name: "virtualenv", Run: func(ctx context.Context) error {
			created, reused, err := builder.Create(ctx, setupDir, host.Python)
			if err != nil {
				return err
			}
			env = created
			summary.Environment = env.Root
			if reused {
				log.Debug("environment reuse policy applied", "root", env.Root)
			}
			return nil
		}},
		{Name: "requirements", Run: func(ctx context.Context) error {
			return builder.Install(ctx, setupDir, env, rec.Dependencies)
		}},
		{Name: "plugins", Run: func(ctx context.Context) error {
			sync := &plugin.Synchronizer{Runner: run, Git: host.Git, Log: log}
			synced, err := sync.Sync(ctx, setupDir, rec.Plugins)
			summary.Plugins = synced
			return err
		}},
		{Name: "activate", Run: func(ctx context.Context) error {
			log.Info("launching MAP Client smoke test")
			_, err := run.Run(ctx, runner.Command{
				Path: env.Bin("mapclient_use"),
				Args: []string{setupDir, "-d", plugin.Root(setupDir)},
			})
			if err != nil {
				return report.WrapStageError(report.CodeMapClientUseFailed, "activate", err,
					"MAP Client failed to start in %s", env.Root)
			}
			return nil
		}},
	}

	startedAt := time.Now()
	var executed []pipeline.StageResult
	pipelineErr := pipeline.Run(ctx, stages, pipeline.RecorderFunc(func(res pipeline.StageResult) {
		executed = append(executed, res)
		log.Debug("stage finished", "stage", res.Name, "status", res.Status)
	}))

	summary.ExitCode = int(report.CodeOf(pipelineErr))
	summary.Failure = report.StageOf(pipelineErr)
	for _, res := range executed {
		summary.Stages = append(summary.Stages, report.StageStatus{
			Name:   res.Name,
			Status: res.Status,
			Detail: res.Detail,
		})
	}

	if journalEnabled(opts, cfg, executed) {
		summary.RunID = writeJournal(ctx, log, ids, setupDir, opts.ProvenanceFile,
			digest, host.Platform, startedAt, executed, summary)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if outErr := formatter.Outcome(summary, pipelineErr); outErr != nil {
		log.Warn("cannot render outcome report", "error", outErr)
	}

	return pipelineErr
}

// journalEnabled decides whether this run gets journaled. The journal
// lives inside the setup directory, so a run that never got past the
// directory check has nowhere to write one.
func journalEnabled(opts *Options, cfg *Config, executed []pipeline.StageResult) bool {
	if opts.NoJournal || !cfg.Journal {
		return false
	}
	return len(executed) > 0 &&
		executed[0].Name == "setup-dir" && executed[0].Status == pipeline.StatusOK
}

// writeJournal records the finished run. It runs after the pipeline so
// a journal problem can never change the outcome; every failure here
// is a logged warning. Returns the run id, or "" when nothing was
// written.
func writeJournal(ctx context.Context, log *slog.Logger, ids journal.IDGenerator,
	setupDir, provenanceFile, digest, platform string, startedAt time.Time,
	executed []pipeline.StageResult, summary *report.Summary) string {

	j, err := journal.Open(filepath.Join(setupDir, journal.DBName))
	if err != nil {
		log.Warn("cannot open run journal", "error", err)
		return ""
	}
	defer j.Close()

	if previous, err := j.LastDigest(ctx, setupDir); err != nil {
		log.Warn("cannot read previous run digest", "error", err)
	} else if previous != "" && digest != "" && previous != digest {
		log.Warn("provenance record changed since the last run against this setup directory",
			"previous", previous, "current", digest)
	}

	runID := ids.Generate()
	if err := j.BeginRun(ctx, journal.Run{
		ID:             runID,
		StartedAt:      startedAt,
		SetupDir:       setupDir,
		ProvenanceFile: provenanceFile,
		RecordDigest:   digest,
		Platform:       platform,
	}); err != nil {
		log.Warn("cannot journal run", "error", err)
		return ""
	}
	for _, res := range executed {
		if err := j.RecordStage(ctx, runID, res); err != nil {
			log.Warn("cannot journal stage", "stage", res.Name, "error", err)
		}
	}
	if err := j.FinishRun(ctx, runID, summary.ExitCode, summary.Failure, time.Now()); err != nil {
		log.Warn("cannot finish journaled run", "error", err)
	}
	return runID
}
