package mobilenet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSchedule_Canonical(t *testing.T) {
	s, err := DeriveSchedule(1.0, 224)
	require.NoError(t, err)

	assert.Equal(t, canonicalChannels[:], s.Channels())
	assert.Equal(t, canonicalResolutions[:], s.Resolutions())
}

func TestDeriveSchedule_Scaled(t *testing.T) {
	s, err := DeriveSchedule(0.5, 32)
	require.NoError(t, err)

	assert.Equal(t, []int{16, 32, 64, 64, 128, 128, 256, 256, 256, 256, 256, 256, 512, 512}, s.Channels())
	assert.Equal(t, []int{16, 16, 8, 8, 4, 4, 2, 2, 2, 2, 2, 2, 1, 1}, s.Resolutions())
}

func TestDeriveSchedule_Truncates(t *testing.T) {
	s, err := DeriveSchedule(0.75, 224)
	require.NoError(t, err)
	// 32*0.75 = 24, 1024*0.75 = 768; 0.35 truncates 32*0.35 = 11.2 to 11.
	assert.Equal(t, 24, s[0].Channels)
	assert.Equal(t, 768, s[13].Channels)

	s, err = DeriveSchedule(0.35, 100)
	require.NoError(t, err)
	assert.Equal(t, 11, s[0].Channels)
	assert.Equal(t, 50, s[0].Resolution) // 112*100/224
	assert.Equal(t, 12, s[4].Resolution) // 28*100/224 = 12.5
	assert.Equal(t, 3, s[13].Resolution) // 7*100/224 = 3.125
}

func TestDeriveSchedule_ValidResolutions(t *testing.T) {
	for _, res := range []int{32, 64, 96, 128, 160, 192, 224, 256, 448} {
		for _, alpha := range []float64{0.25, 0.5, 0.75, 1.0, 1.4} {
			s, err := DeriveSchedule(alpha, res)
			require.NoError(t, err)
			require.Len(t, s, NumStages)

			for i := 1; i < len(s); i++ {
				assert.LessOrEqual(t, s[i].Resolution, s[i-1].Resolution, "res=%d stage=%d", res, i)
			}

			transitions, err := s.Transitions()
			require.NoError(t, err, "res=%d alpha=%v", res, alpha)
			require.Len(t, transitions, NumStages-1)
			for i, tr := range transitions {
				assert.Equal(t, s[i].Channels, tr.In)
				assert.Equal(t, s[i+1].Channels, tr.Out)
				assert.Equal(t, s[i].Resolution, tr.Stride*s[i+1].Resolution)
			}
		}
	}
}

func TestTransitions_Canonical(t *testing.T) {
	s, err := DeriveSchedule(1.0, 224)
	require.NoError(t, err)
	transitions, err := s.Transitions()
	require.NoError(t, err)

	strides := make([]int, len(transitions))
	for i, tr := range transitions {
		strides[i] = tr.Stride
	}
	assert.Equal(t, []int{1, 2, 1, 2, 1, 2, 1, 1, 1, 1, 1, 2, 1}, strides)
	assert.Equal(t, Transition{In: 32, Out: 64, Stride: 1}, transitions[0])
	assert.Equal(t, Transition{In: 512, Out: 1024, Stride: 2}, transitions[11])
}

func TestDeriveSchedule_InvalidArguments(t *testing.T) {
	tests := []struct {
		name  string
		alpha float64
		res   int
		field string
	}{
		{"zero alpha", 0, 224, "alpha"},
		{"negative alpha", -1, 224, "alpha"},
		{"zero resolution", 1, 0, "input_resolution"},
		{"negative resolution", 1, -32, "input_resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveSchedule(tt.alpha, tt.res)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTransitions_NonIntegerStride(t *testing.T) {
	s, err := DeriveSchedule(1.0, 100)
	require.NoError(t, err)

	_, err = s.Transitions()
	require.Error(t, err)

	var serr *ScheduleError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 3, serr.Index)
	assert.Equal(t, 25, serr.InResolution)
	assert.Equal(t, 12, serr.OutResolution)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "does not divide evenly")
}

func TestTransitions_DegenerateStages(t *testing.T) {
	// 7*16/224 = 0.5 truncates to a zero-pixel final stage.
	s, err := DeriveSchedule(1.0, 16)
	require.NoError(t, err)
	_, err = s.Transitions()
	var serr *ScheduleError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 12, serr.Index)

	// 32*0.01 truncates to zero channels.
	s, err = DeriveSchedule(0.01, 224)
	require.NoError(t, err)
	_, err = s.Transitions()
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 0, serr.Index)
	assert.Contains(t, serr.Reason, "0 channels")
}
