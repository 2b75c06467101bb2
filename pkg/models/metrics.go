package models

import "encoding/json"

// PipelineMetrics is the compact per-stage diagnostics payload produced by the
// engine. Any sub-object may be missing; a malformed sub-object decodes to nil
// instead of failing the whole job.
type PipelineMetrics struct {
	Ingest *IngestMetrics `json:"ingest,omitempty"`
	Face   *FaceMetrics   `json:"face,omitempty"`
	ROI    *ROIMetrics    `json:"roi,omitempty"`
	RPPG   *RPPGMetrics   `json:"rppg,omitempty"`
}

func (m *PipelineMetrics) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*m = PipelineMetrics{}
		return nil
	}
	*m = PipelineMetrics{
		Ingest: decodeLenient[IngestMetrics](raw["ingest"]),
		Face:   decodeLenient[FaceMetrics](raw["face"]),
		ROI:    decodeLenient[ROIMetrics](raw["roi"]),
		RPPG:   decodeLenient[RPPGMetrics](raw["rppg"]),
	}
	return nil
}

type IngestMetrics struct {
	NumWindows int      `json:"num_windows"`
	NumFrames  *int     `json:"num_frames,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	SourceFPS  *float64 `json:"source_fps,omitempty"`
	TargetFPS  *float64 `json:"target_fps,omitempty"`
}

// FaceWindow is one analysis window's face-tracking summary.
type FaceWindow struct {
	Index        int     `json:"index"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	FaceFraction float64 `json:"face_fraction"`
	Usable       bool    `json:"usable"`
}

type FaceMetrics struct {
	WindowsWithFace int          `json:"windows_with_face"`
	Windows         []FaceWindow `json:"windows,omitempty"`
}

// UnmarshalJSON accepts an explicit windows_with_face count or derives it
// from the usable windows the worker ships.
func (m *FaceMetrics) UnmarshalJSON(b []byte) error {
	var aux struct {
		WindowsWithFace *int         `json:"windows_with_face"`
		Windows         []FaceWindow `json:"windows"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.Windows = aux.Windows
	if aux.WindowsWithFace != nil {
		m.WindowsWithFace = *aux.WindowsWithFace
		return nil
	}
	m.WindowsWithFace = 0
	for _, w := range aux.Windows {
		if w.Usable {
			m.WindowsWithFace++
		}
	}
	return nil
}

type ROIMetrics struct {
	TotalFrames               int            `json:"total_frames"`
	FramesWithAllRegionsValid int            `json:"frames_with_all_regions_valid"`
	FramesPerRegion           map[string]int `json:"frames_per_region,omitempty"`
}

// UnmarshalJSON accepts both the flat shape and the engine's nested
// {"summary": {...}} shape.
func (m *ROIMetrics) UnmarshalJSON(b []byte) error {
	type flat ROIMetrics
	var aux struct {
		flat
		Summary *flat `json:"summary"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Summary != nil {
		*m = ROIMetrics(*aux.Summary)
		return nil
	}
	*m = ROIMetrics(aux.flat)
	return nil
}

type RPPGMetrics struct {
	DurationSeconds  float64        `json:"duration_seconds"`
	SamplesPerRegion map[string]int `json:"samples_per_region,omitempty"`
}

func (m *RPPGMetrics) UnmarshalJSON(b []byte) error {
	type flat RPPGMetrics
	var aux struct {
		flat
		Summary *flat `json:"summary"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Summary != nil {
		*m = RPPGMetrics(*aux.Summary)
		return nil
	}
	*m = RPPGMetrics(aux.flat)
	return nil
}
