package diagnostics

import "fmt"

// Status is the health of one pipeline stage.
type Status int

const (
	StatusOK Status = iota + 1
	StatusWarning
	StatusFail
)

// ParseStatus maps a name back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "ok":
		return StatusOK, nil
	case "warning":
		return StatusWarning, nil
	case "fail":
		return StatusFail, nil
	default:
		return 0, fmt.Errorf("unknown stage status %q", s)
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusFail:
		return "fail"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Color is the display color for the status.
func (s Status) Color() string {
	switch s {
	case StatusOK:
		return "green"
	case StatusWarning:
		return "amber"
	case StatusFail:
		return "red"
	default:
		return "gray"
	}
}

// Icon is a one-character marker for terminal output.
func (s Status) Icon() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "!"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusOK, StatusWarning, StatusFail:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("marshal %s", s)
	}
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Stage identifies a pipeline stage.
type Stage int

const (
	StageIngest Stage = iota + 1
	StageFace
	StageROI
	StageRPPG
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageIngest, StageFace, StageROI, StageRPPG}

func (s Stage) String() string {
	switch s {
	case StageIngest:
		return "ingest"
	case StageFace:
		return "face"
	case StageROI:
		return "roi"
	case StageRPPG:
		return "rppg"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Title is the human-readable stage name.
func (s Stage) Title() string {
	switch s {
	case StageIngest:
		return "Ingest"
	case StageFace:
		return "Face tracking"
	case StageROI:
		return "Skin regions"
	case StageRPPG:
		return "rPPG signal"
	default:
		return s.String()
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
