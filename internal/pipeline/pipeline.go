// Package pipeline runs an ordered list of setup stages sequentially,
// short-circuiting on the first error. There is no retry, no rollback
// and no concurrency: the error-reporting contract depends on exactly
// one stage failing first, deterministically.
package pipeline

import (
	"context"
	"time"
)

// Stage is one step of the setup pipeline: a name for reporting and a
// blocking body.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// StageResult records one executed stage for the journal and the
// outcome report.
type StageResult struct {
	Seq      int
	Name     string
	Status   string // StatusOK or StatusFailed
	Detail   string // failure message, empty on success
	Started  time.Time
	Finished time.Time
}

// Stage statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder observes executed stages. Implementations must not fail the
// pipeline; anything that goes wrong recording degrades to a logged
// warning inside the implementation.
type Recorder interface {
	RecordStage(res StageResult)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(res StageResult)

func (f RecorderFunc) RecordStage(res StageResult) { f(res) }

// MultiRecorder fans one stage result out to several recorders.
func MultiRecorder(recorders ...Recorder) Recorder {
	return RecorderFunc(func(res StageResult) {
		for _, r := range recorders {
			if r != nil {
				r.RecordStage(res)
			}
		}
	})
}

// Run executes the stages in order and returns the first error. Every
// stage that started is reported to rec, including the failing one;
// stages after the failure never run and are never reported.
func Run(ctx context.Context, stages []Stage, rec Recorder) error {
	for i, stage := range stages {
		res := StageResult{Seq: i + 1, Name: stage.Name, Started: time.Now()}

		err := stage.Run(ctx)
		res.Finished = time.Now()
		if err != nil {
			res.Status = StatusFailed
			res.Detail = err.Error()
			if rec != nil {
				rec.RecordStage(res)
			}
			return err
		}

		res.Status = StatusOK
		if rec != nil {
			rec.RecordStage(res)
		}
	}
	return nil
}
