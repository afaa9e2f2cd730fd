package camera

import (
	"math"
	"sort"

	"macrocam/internal/config"
	"macrocam/internal/macro"
)

// CumulativeSeries turns a sparse, irregular sample list into a continuous
// cumulative-displacement function over [start, end]. The series is
// anchored at zero at start and held flat to end when the last sample
// precedes it.
type CumulativeSeries struct {
	times []float64
	cumX  []float64
	cumY  []float64
}

// NewCumulativeSeries builds the series from samples, ordering them by
// timestamp and clamping each into [start, end].
func NewCumulativeSeries(start, end float64, samples []macro.RawSample) *CumulativeSeries {
	ordered := make([]macro.RawSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	s := &CumulativeSeries{
		times: []float64{start},
		cumX:  []float64{0},
		cumY:  []float64{0},
	}
	var totalX, totalY float64
	for _, sample := range ordered {
		ts := sample.Timestamp
		if ts < start {
			ts = start
		}
		if ts > end {
			ts = end
		}
		totalX += sample.AngleDX
		totalY += sample.AngleDY
		s.times = append(s.times, ts)
		s.cumX = append(s.cumX, totalX)
		s.cumY = append(s.cumY, totalY)
	}
	if s.times[len(s.times)-1] < end {
		s.times = append(s.times, end)
		s.cumX = append(s.cumX, totalX)
		s.cumY = append(s.cumY, totalY)
	}
	return s
}

// ValueAt returns the interpolated cumulative displacement at timestamp.
// Lookups outside the series interval clamp to the boundary values.
func (s *CumulativeSeries) ValueAt(timestamp float64) (float64, float64) {
	if timestamp <= s.times[0] {
		return 0, 0
	}
	last := len(s.times) - 1
	if timestamp >= s.times[last] {
		return s.cumX[last], s.cumY[last]
	}
	// rightmost interval whose left edge is <= timestamp
	idx := sort.SearchFloat64s(s.times, timestamp)
	if idx >= len(s.times) || s.times[idx] > timestamp {
		idx--
	}
	if idx > last-1 {
		idx = last - 1
	}
	left := s.times[idx]
	right := s.times[idx+1]
	if right <= left {
		return s.cumX[idx], s.cumY[idx]
	}
	ratio := (timestamp - left) / (right - left)
	x := s.cumX[idx] + (s.cumX[idx+1]-s.cumX[idx])*ratio
	y := s.cumY[idx] + (s.cumY[idx+1]-s.cumY[idx])*ratio
	return x, y
}

// TotalVector returns the series' net displacement.
func (s *CumulativeSeries) TotalVector() (float64, float64) {
	last := len(s.times) - 1
	return s.cumX[last], s.cumY[last]
}

// TotalLength returns the net displacement vector length.
func (s *CumulativeSeries) TotalLength() float64 {
	x, y := s.TotalVector()
	return math.Hypot(x, y)
}

func (s *CumulativeSeries) checkpoints() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

// Comparison reports the pointwise error between two trajectories over the
// same interval. Diagnostics only; never used to correct playback.
type Comparison struct {
	MaxErrorDeg      float64
	MeanErrorDeg     float64
	FinalErrorDeg    float64
	RecordedTotalDeg float64
	PlaybackTotalDeg float64
}

// Trajectory is the continuous interpolation of one camera segment's
// cumulative displacement, supporting resampling onto a fixed rate.
type Trajectory struct {
	segment  macro.CameraSegment
	cal      config.Calibration
	Series   *CumulativeSeries
	Duration float64
}

// NewTrajectory builds the trajectory for a segment under a calibration.
func NewTrajectory(segment macro.CameraSegment, cal config.Calibration) *Trajectory {
	return &Trajectory{
		segment:  segment,
		cal:      cal,
		Series:   NewCumulativeSeries(segment.PressTimestamp, segment.ReleaseTimestamp, segment.Samples),
		Duration: segment.Duration(),
	}
}

// Resample re-partitions the trajectory onto evenly spaced ticks from
// press+1/rate to release, always including release as the final tick.
// The sum of emitted deltas equals the original cumulative total to
// floating-point precision: resampling only re-partitions a continuous
// interpolation of the same monotone integral.
func (t *Trajectory) Resample(rateHz float64) []macro.RawSample {
	if rateHz < 1 {
		rateHz = 1
	}
	if len(t.segment.Samples) == 0 || t.Duration <= 0 {
		return nil
	}
	step := 1.0 / rateHz
	var ticks []float64
	for ts := t.segment.PressTimestamp + step; ts < t.segment.ReleaseTimestamp-1e-6; ts += step {
		ticks = append(ticks, ts)
	}
	ticks = append(ticks, t.segment.ReleaseTimestamp)

	out := make([]macro.RawSample, 0, len(ticks))
	var prevX, prevY float64
	for _, tick := range ticks {
		cumX, cumY := t.Series.ValueAt(tick)
		deltaX := cumX - prevX
		deltaY := cumY - prevY
		prevX, prevY = cumX, cumY
		out = append(out, macro.RawSample{
			Timestamp: tick,
			AngleDX:   deltaX,
			AngleDY:   deltaY,
			RawDX:     deltaX * t.cal.CountsPerDegreeX,
			RawDY:     deltaY * t.cal.CountsPerDegreeY,
		})
	}
	return out
}

// CompareWith builds a second series over the same interval from the given
// samples and reports max/mean pointwise error plus the final offset,
// evaluated across the union of both series' checkpoints.
func (t *Trajectory) CompareWith(playback []macro.RawSample) Comparison {
	playbackSeries := NewCumulativeSeries(t.segment.PressTimestamp, t.segment.ReleaseTimestamp, playback)

	checkpoints := append(t.Series.checkpoints(), playbackSeries.checkpoints()...)
	sort.Float64s(checkpoints)

	var maxErr, sumErr float64
	count := 0
	prev := math.Inf(-1)
	for _, checkpoint := range checkpoints {
		if checkpoint == prev {
			continue
		}
		prev = checkpoint
		recX, recY := t.Series.ValueAt(checkpoint)
		pbX, pbY := playbackSeries.ValueAt(checkpoint)
		err := math.Hypot(recX-pbX, recY-pbY)
		sumErr += err
		if err > maxErr {
			maxErr = err
		}
		count++
	}
	meanErr := 0.0
	if count > 0 {
		meanErr = sumErr / float64(count)
	}
	recX, recY := t.Series.TotalVector()
	pbX, pbY := playbackSeries.TotalVector()
	return Comparison{
		MaxErrorDeg:      maxErr,
		MeanErrorDeg:     meanErr,
		FinalErrorDeg:    math.Hypot(recX-pbX, recY-pbY),
		RecordedTotalDeg: t.Series.TotalLength(),
		PlaybackTotalDeg: playbackSeries.TotalLength(),
	}
}
