package macro

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// firstDeltas is how many leading samples each segment report includes.
const firstDeltas = 15

// SegmentReport carries offline statistics for one camera segment.
type SegmentReport struct {
	Index             int
	PressEventIndex   int
	ReleaseEventIndex int
	Duration          float64
	Samples           int
	AbsoluteMoves     int
	SumDX             float64
	SumDY             float64
	AvgRateHz         float64
	MinIntervalMs     float64
	MaxIntervalMs     float64
	AvgIntervalMs     float64
	Warnings          []string
}

// Length returns the segment's net displacement vector length in counts.
func (r SegmentReport) Length() float64 {
	return math.Hypot(r.SumDX, r.SumDY)
}

// Diagnosis is the result of offline analysis of a recording.
type Diagnosis struct {
	Report   string
	Issues   []string
	Segments []SegmentReport
}

// Analyze inspects a recording without replaying it: event type counts,
// per-segment sample statistics and timing intervals, plus warnings for
// patterns that will degrade playback fidelity.
func Analyze(rec *Recording) Diagnosis {
	var issues []string
	typeCounts := make(map[string]int)
	for _, ev := range rec.Events {
		typeCounts[ev.Type]++
	}

	reports := make([]SegmentReport, 0, len(rec.CameraSegments))
	for i, seg := range rec.CameraSegments {
		report := SegmentReport{
			Index:             i + 1,
			PressEventIndex:   seg.PressEventIndex,
			ReleaseEventIndex: seg.ReleaseEventIndex,
			Duration:          seg.Duration(),
			Samples:           len(seg.Samples),
		}
		for _, sample := range seg.Samples {
			report.SumDX += sample.RawDX
			report.SumDY += sample.RawDY
		}
		for _, ev := range rec.Events {
			if ev.Type == EventMouseMove &&
				ev.Timestamp >= seg.PressTimestamp && ev.Timestamp <= seg.ReleaseTimestamp {
				report.AbsoluteMoves++
			}
		}
		if len(seg.Samples) > 1 {
			intervals := make([]float64, 0, len(seg.Samples)-1)
			for j := 1; j < len(seg.Samples); j++ {
				gap := (seg.Samples[j].Timestamp - seg.Samples[j-1].Timestamp) * 1000.0
				if gap < 0 {
					gap = 0
				}
				intervals = append(intervals, gap)
			}
			report.MinIntervalMs = intervals[0]
			report.MaxIntervalMs = intervals[0]
			var sum float64
			for _, gap := range intervals {
				sum += gap
				report.MinIntervalMs = math.Min(report.MinIntervalMs, gap)
				report.MaxIntervalMs = math.Max(report.MaxIntervalMs, gap)
			}
			report.AvgIntervalMs = sum / float64(len(intervals))
		}
		if report.Duration > 0 {
			report.AvgRateHz = float64(report.Samples) / report.Duration
		} else {
			report.AvgRateHz = float64(report.Samples)
		}

		if report.AbsoluteMoves > 0 {
			report.Warnings = append(report.Warnings,
				"absolute pointer moves inside the segment; they are ignored during playback")
		}
		if report.Samples == 0 {
			report.Warnings = append(report.Warnings, "segment contains no motion samples")
		}
		if report.Duration <= 0 && report.Samples > 0 {
			report.Warnings = append(report.Warnings, "zero duration between press and release despite motion samples")
		}
		issues = append(issues, report.Warnings...)
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		issues = append(issues, "no camera segments found; check that the recording contains right-button drags")
	}

	totalSamples := 0
	for _, r := range reports {
		totalSamples += r.Samples
	}
	if totalSamples > 0 && totalSamples <= 5 {
		issues = append(issues, "very few motion samples recorded; capture may be misconfigured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== recording analysis: %s ===\n", rec.Name)
	fmt.Fprintf(&b, "events: %d\n", len(rec.Events))
	names := make([]string, 0, len(typeCounts))
	for name := range typeCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %d\n", name, typeCounts[name])
	}
	fmt.Fprintf(&b, "camera segments: %d\n", len(reports))
	for _, r := range reports {
		fmt.Fprintf(&b, "\n--- segment #%d ---\n", r.Index)
		fmt.Fprintf(&b, "events: press=%d release=%d, duration %.4fs\n",
			r.PressEventIndex, r.ReleaseEventIndex, r.Duration)
		fmt.Fprintf(&b, "samples: %d (%.1f Hz), sum delta (%.0f, %.0f), length %.1f counts\n",
			r.Samples, r.AvgRateHz, r.SumDX, r.SumDY, r.Length())
		if r.Samples > 1 {
			fmt.Fprintf(&b, "intervals: min=%.3fms max=%.3fms avg=%.3fms\n",
				r.MinIntervalMs, r.MaxIntervalMs, r.AvgIntervalMs)
		}
		seg := rec.CameraSegments[r.Index-1]
		limit := len(seg.Samples)
		if limit > firstDeltas {
			limit = firstDeltas
		}
		for j := 0; j < limit; j++ {
			sample := seg.Samples[j]
			fmt.Fprintf(&b, "  #%d: delta (%.0f, %.0f) @ %.4fs\n",
				j+1, sample.RawDX, sample.RawDY, sample.Timestamp-seg.PressTimestamp)
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "warning: %s\n", warning)
		}
	}
	b.WriteString("\n")
	if len(issues) > 0 {
		b.WriteString("issues:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, " - %s\n", issue)
		}
	} else {
		b.WriteString("no issues found\n")
	}

	return Diagnosis{Report: b.String(), Issues: issues, Segments: reports}
}
