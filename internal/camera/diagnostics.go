package camera

import (
	"fmt"

	"macrocam/internal/config"
	"macrocam/internal/macro"
)

// PlaybackDiagnostics is the per-segment accuracy report produced once a
// segment's playback is finalized. It is never persisted.
type PlaybackDiagnostics struct {
	SegmentIndex   int
	RecordedSumDeg [2]float64
	PlaybackSumDeg [2]float64
	MaxErrorDeg    float64
	MeanErrorDeg   float64
	FinalErrorDeg  float64
	AchievedRateHz float64
	SentSamples    int
}

// String renders the one-line summary shown in logs and notifications.
func (d PlaybackDiagnostics) String() string {
	return fmt.Sprintf("segment #%d: recorded delta (%.3f, %.3f) deg, playback delta (%.3f, %.3f) deg, error <= %.3f deg",
		d.SegmentIndex,
		d.RecordedSumDeg[0], d.RecordedSumDeg[1],
		d.PlaybackSumDeg[0], d.PlaybackSumDeg[1],
		d.MaxErrorDeg)
}

// SummarizePlayback compares the recorded trajectory against the angle
// equivalents of what was actually emitted and reports the error bounds
// and achieved rate.
func SummarizePlayback(segment macro.CameraSegment, playback []macro.RawSample, cal config.Calibration) PlaybackDiagnostics {
	trajectory := NewTrajectory(segment, cal)
	comparison := trajectory.CompareWith(playback)

	recX, recY := trajectory.Series.TotalVector()
	playbackSeries := NewCumulativeSeries(segment.PressTimestamp, segment.ReleaseTimestamp, playback)
	pbX, pbY := playbackSeries.TotalVector()

	achieved := float64(len(playback))
	if trajectory.Duration > 0 {
		achieved = float64(len(playback)) / trajectory.Duration
	}
	return PlaybackDiagnostics{
		SegmentIndex:   segment.PressEventIndex,
		RecordedSumDeg: [2]float64{recX, recY},
		PlaybackSumDeg: [2]float64{pbX, pbY},
		MaxErrorDeg:    comparison.MaxErrorDeg,
		MeanErrorDeg:   comparison.MeanErrorDeg,
		FinalErrorDeg:  comparison.FinalErrorDeg,
		AchievedRateHz: achieved,
		SentSamples:    len(playback),
	}
}
