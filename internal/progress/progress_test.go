package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
)

func TestHooksEmitClampsPercent(t *testing.T) {
	var got []Update
	h := Hooks{OnProgress: func(u Update) { got = append(got, u) }}

	h.Emit(Update{Stage: StageDownload, Percent: 150})
	h.Emit(Update{Stage: StageDownload, Percent: -3})

	require.Len(t, got, 2)
	assert.Equal(t, 100, got[0].Percent)
	assert.Equal(t, 0, got[1].Percent)
}

func TestHooksZeroValueIsNoOp(t *testing.T) {
	var h Hooks
	h.Emit(Update{Stage: StageDone, Percent: 100})
	h.Pause("anything")
	assert.NoError(t, h.Checkpoint("anything"))
}

func TestHooksCheckpointAbort(t *testing.T) {
	aborted := false
	h := Hooks{ShouldAbort: func() bool { return aborted }}

	require.NoError(t, h.Checkpoint("url"))

	aborted = true
	err := h.Checkpoint("url")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorwrapper.ErrCancelled))
}

func TestScalePercent(t *testing.T) {
	tests := []struct {
		name                     string
		done, total, floor, ceil int
		expected                 int
	}{
		{"zero total returns floor", 5, 0, 10, 90, 10},
		{"halfway", 5, 10, 0, 100, 50},
		{"complete hits ceiling", 10, 10, 8, 24, 24},
		{"never exceeds ceiling", 20, 10, 8, 24, 24},
		{"start stays at floor", 0, 10, 8, 24, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScalePercent(tt.done, tt.total, tt.floor, tt.ceil))
		})
	}
}
