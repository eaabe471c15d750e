package mobilenet

import (
	"fmt"
	"math"
)

// ReferenceResolution is the input size the canonical schedule is defined for.
const ReferenceResolution = 224

// NumStages is the number of (channels, resolution) stages in a schedule.
const NumStages = 14

var (
	canonicalChannels    = [NumStages]int{32, 64, 128, 128, 256, 256, 512, 512, 512, 512, 512, 512, 1024, 1024}
	canonicalResolutions = [NumStages]int{112, 112, 56, 56, 28, 28, 14, 14, 14, 14, 14, 14, 7, 7}
)

// Stage is the output channel count and spatial resolution of one stage.
type Stage struct {
	Channels   int
	Resolution int
}

// Schedule is the ordered list of stages of a MobileNet body.
type Schedule []Stage

// Transition describes the separable-convolution block between two stages.
type Transition struct {
	In     int // input channels
	Out    int // output channels
	Stride int // depthwise stride, in_resolution / out_resolution
}

// DeriveSchedule scales the canonical 224-pixel MobileNet schedule by the
// width multiplier alpha and by inputResolution/224. Both products are
// truncated toward zero.
func DeriveSchedule(alpha float64, inputResolution int) (Schedule, error) {
	if !(alpha > 0) || math.IsInf(alpha, 1) {
		return nil, &ValidationError{Field: "alpha", Value: alpha, Reason: "must be a finite number > 0"}
	}
	if inputResolution < 1 {
		return nil, &ValidationError{Field: "input_resolution", Value: inputResolution, Reason: "must be >= 1"}
	}

	s := make(Schedule, NumStages)
	for i := range s {
		s[i] = Stage{
			Channels:   int(float64(canonicalChannels[i]) * alpha),
			Resolution: int(float64(canonicalResolutions[i]) * float64(inputResolution) / ReferenceResolution),
		}
	}
	return s, nil
}

// Channels returns the per-stage channel counts.
func (s Schedule) Channels() []int {
	out := make([]int, len(s))
	for i, st := range s {
		out[i] = st.Channels
	}
	return out
}

// Resolutions returns the per-stage spatial resolutions.
func (s Schedule) Resolutions() []int {
	out := make([]int, len(s))
	for i, st := range s {
		out[i] = st.Resolution
	}
	return out
}

// Transitions returns the len(s)-1 blocks linking consecutive stages.
//
// Every stage needs at least one channel and a resolution of at least one
// pixel, and each resolution must divide the previous one exactly so the
// stride is an integer. Violations return a *ScheduleError.
func (s Schedule) Transitions() ([]Transition, error) {
	for i, st := range s {
		if st.Channels < 1 {
			return nil, &ScheduleError{
				Index: i, InResolution: st.Resolution, OutResolution: st.Resolution,
				Reason: fmt.Sprintf("width multiplier leaves %d channels", st.Channels),
			}
		}
		if st.Resolution < 1 {
			return nil, &ScheduleError{
				Index: i, InResolution: st.Resolution, OutResolution: st.Resolution,
				Reason: "input resolution too small, stage resolution is 0",
			}
		}
	}

	transitions := make([]Transition, 0, max(len(s)-1, 0))
	for i := 0; i+1 < len(s); i++ {
		in, out := s[i], s[i+1]
		if in.Resolution%out.Resolution != 0 {
			return nil, &ScheduleError{
				Index: i, InResolution: in.Resolution, OutResolution: out.Resolution,
				Reason: "resolution does not divide evenly",
			}
		}
		transitions = append(transitions, Transition{
			In:     in.Channels,
			Out:    out.Channels,
			Stride: in.Resolution / out.Resolution,
		})
	}
	return transitions, nil
}
