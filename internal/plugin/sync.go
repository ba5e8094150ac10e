// Package plugin synchronizes the recorded plugin repositories: each
// source is cloned under the plugins root when absent, then its working
// tree is switched to the recorded revision. Both operations are
// naturally idempotent, so a second run against a fully synchronized
// setup directory issues no clone and leaves every tree where it was.
package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mapclient-tools/provenance-setup/internal/provenance"
	"github.com/mapclient-tools/provenance-setup/internal/report"
	"github.com/mapclient-tools/provenance-setup/internal/runner"
)

// RootName is the directory under the setup directory all plugin
// clones live in.
const RootName = "plugins"

// syncStage is the pipeline stage name synchronizer failures report.
const syncStage = "plugins"

// Synchronizer drives git to reconcile plugin working trees with the
// record.
type Synchronizer struct {
	Runner runner.Runner

	// Git is the resolved git executable.
	Git string

	Log *slog.Logger
}

func (s *Synchronizer) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Root returns the plugins directory for a setup directory.
func Root(setupDir string) string {
	return filepath.Join(setupDir, RootName)
}

// Sync processes sources in record order and fails fast: the first
// plugin that cannot be cloned or switched aborts the rest, and the
// returned error names that plugin and revision. It returns the local
// names synchronized so far.
func (s *Synchronizer) Sync(ctx context.Context, setupDir string, sources []provenance.Source) ([]string, error) {
	root := Root(setupDir)
	if len(sources) > 0 {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, &report.StageError{
				Code:    report.CodePluginCloneFailed,
				Stage:   syncStage,
				Message: "cannot create plugins directory " + root,
				Err:     err,
			}
		}
	}

	var synced []string
	for _, src := range sources {
		if err := s.syncOne(ctx, root, src); err != nil {
			return synced, err
		}
		synced = append(synced, src.LocalName)
	}
	return synced, nil
}

func (s *Synchronizer) syncOne(ctx context.Context, root string, src provenance.Source) error {
	dir := filepath.Join(root, src.LocalName)

	if _, err := os.Stat(dir); err != nil {
		s.log().Info("cloning plugin", "plugin", src.LocalName, "revision", src.Revision, "location", src.Location)
		_, runErr := s.Runner.Run(ctx, runner.Command{
			Path: s.Git,
			Args: []string{"clone", "--depth", "1", "--branch", src.Revision, src.Location, src.LocalName},
			Dir:  root,
		})
		if runErr != nil {
			return &report.StageError{
				Code:     report.CodePluginCloneFailed,
				Stage:    syncStage,
				Message:  "clone failed from " + src.Location,
				Plugin:   src.LocalName,
				Revision: src.Revision,
				Err:      runErr,
			}
		}
	} else {
		s.log().Debug("plugin already present", "plugin", src.LocalName, "dir", dir)
	}

	// switch --detach both proves the revision resolves and pins the
	// working tree to it; on an already-pinned tree it is a no-op.
	_, err := s.Runner.Run(ctx, runner.Command{
		Path: s.Git,
		Args: []string{"-C", dir, "switch", "--detach", src.Revision},
	})
	if err != nil {
		return &report.StageError{
			Code:     report.CodeGitSwitchFailed,
			Stage:    syncStage,
			Message:  "cannot switch working tree to recorded revision",
			Plugin:   src.LocalName,
			Revision: src.Revision,
			Err:      err,
		}
	}
	return nil
}
