package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesStagesInOrder(t *testing.T) {
	var order []string
	stage := func(name string) Stage {
		return Stage{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	var recorded []StageResult
	err := Run(context.Background(),
		[]Stage{stage("first"), stage("second"), stage("third")},
		RecorderFunc(func(res StageResult) { recorded = append(recorded, res) }))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	require.Len(t, recorded, 3)
	for i, res := range recorded {
		assert.Equal(t, i+1, res.Seq)
		assert.Equal(t, StatusOK, res.Status)
		assert.Empty(t, res.Detail)
		assert.False(t, res.Finished.Before(res.Started))
	}
}

func TestRunShortCircuitsOnFirstError(t *testing.T) {
	boom := errors.New("venv exploded")
	ran := map[string]bool{}
	stage := func(name string, err error) Stage {
		return Stage{Name: name, Run: func(context.Context) error {
			ran[name] = true
			return err
		}}
	}

	var recorded []StageResult
	err := Run(context.Background(),
		[]Stage{stage("ok", nil), stage("fails", boom), stage("never", nil)},
		RecorderFunc(func(res StageResult) { recorded = append(recorded, res) }))

	require.ErrorIs(t, err, boom)
	assert.True(t, ran["ok"])
	assert.True(t, ran["fails"])
	assert.False(t, ran["never"])

	// The failing stage is recorded; the skipped one is not.
	require.Len(t, recorded, 2)
	assert.Equal(t, StatusFailed, recorded[1].Status)
	assert.Equal(t, "venv exploded", recorded[1].Detail)
}

func TestRunNilRecorder(t *testing.T) {
	err := Run(context.Background(), []Stage{
		{Name: "only", Run: func(context.Context) error { return nil }},
	}, nil)
	assert.NoError(t, err)
}

func TestMultiRecorderFansOut(t *testing.T) {
	var a, b []string
	rec := MultiRecorder(
		RecorderFunc(func(res StageResult) { a = append(a, res.Name) }),
		nil,
		RecorderFunc(func(res StageResult) { b = append(b, res.Name) }),
	)

	err := Run(context.Background(), []Stage{
		{Name: "one", Run: func(context.Context) error { return nil }},
		{Name: "two", Run: func(context.Context) error { return nil }},
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, a)
	assert.Equal(t, a, b)
}
