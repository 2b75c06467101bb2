// Package diagnostics grades each stage of the analysis pipeline from the
// engine's metrics payload.
package diagnostics

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// RegionCount is one skin region's frame or sample count.
type RegionCount struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// StageResult is the graded health of one stage.
type StageResult struct {
	Stage   Stage         `json:"stage"`
	Status  Status        `json:"status"`
	Summary string        `json:"summary"`
	Regions []RegionCount `json:"regions,omitempty"`
}

// Derive grades all four stages in pipeline order. Every stage is always
// graded so that a failure upstream does not hide the state downstream.
// Missing sub-objects count as zero; negative or non-finite values fail
// their stage.
func Derive(m *models.PipelineMetrics) []StageResult {
	if m == nil {
		m = &models.PipelineMetrics{}
	}
	return []StageResult{
		ingest(m.Ingest),
		face(m.Face),
		roi(m.ROI),
		rppg(m.RPPG),
	}
}

// Worst returns the most severe status across results.
func Worst(results []StageResult) Status {
	worst := StatusOK
	for _, r := range results {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}

func ingest(m *models.IngestMetrics) StageResult {
	n := 0
	if m != nil {
		n = m.NumWindows
	}
	if n >= 1 {
		return StageResult{Stage: StageIngest, Status: StatusOK,
			Summary: fmt.Sprintf("%d analysis %s extracted", n, plural(n, "window", "windows"))}
	}
	return StageResult{Stage: StageIngest, Status: StatusFail, Summary: "no analysis windows extracted"}
}

func face(m *models.FaceMetrics) StageResult {
	n := 0
	if m != nil {
		n = m.WindowsWithFace
	}
	if n >= 1 {
		return StageResult{Stage: StageFace, Status: StatusOK,
			Summary: fmt.Sprintf("face tracked in %d %s", n, plural(n, "window", "windows"))}
	}
	return StageResult{Stage: StageFace, Status: StatusFail, Summary: "no face detected in any window"}
}

func roi(m *models.ROIMetrics) StageResult {
	var total, valid int
	var perRegion map[string]int
	if m != nil {
		total, valid, perRegion = m.TotalFrames, m.FramesWithAllRegionsValid, m.FramesPerRegion
	}
	res := StageResult{Stage: StageROI, Regions: regions(perRegion)}

	switch {
	case total <= 0:
		res.Status = StatusFail
		res.Summary = "no frames reached region extraction"
	case valid < 0:
		res.Status = StatusFail
		res.Summary = fmt.Sprintf("invalid region count %d of %d frames", valid, total)
	case valid == 0:
		res.Status = StatusWarning
		res.Summary = fmt.Sprintf("no frame had every region valid (%d frames)", total)
	default:
		res.Status = StatusOK
		res.Summary = fmt.Sprintf("%d of %d frames had every region valid", valid, total)
	}
	return res
}

func rppg(m *models.RPPGMetrics) StageResult {
	var duration float64
	var perRegion map[string]int
	if m != nil {
		duration, perRegion = m.DurationSeconds, m.SamplesPerRegion
	}
	res := StageResult{Stage: StageRPPG, Regions: regions(perRegion)}

	samples, ok := sum(perRegion)
	switch {
	case !ok || math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0:
		res.Status = StatusFail
		res.Summary = "malformed signal metrics"
	case duration > 0 && samples > 0:
		res.Status = StatusOK
		res.Summary = fmt.Sprintf("%d samples over %.1fs", samples, duration)
	case duration == 0 && samples == 0:
		res.Status = StatusWarning
		res.Summary = "no pulse signal extracted"
	default:
		res.Status = StatusFail
		res.Summary = fmt.Sprintf("inconsistent signal data (%.1fs, %d samples)", duration, samples)
	}
	return res
}

// sum adds the per-region counts. It reports false if any count is negative.
func sum(counts map[string]int) (int, bool) {
	total := 0
	for _, c := range counts {
		if c < 0 {
			return 0, false
		}
		total += c
	}
	return total, true
}

// regions flattens counts into a slice sorted by region name.
func regions(counts map[string]int) []RegionCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]RegionCount, 0, len(counts))
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		out = append(out, RegionCount{Region: name, Count: counts[name]})
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
