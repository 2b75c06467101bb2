package models

import (
	"encoding/json"
	"fmt"
)

// EvidenceIndex maps an artifact category to its ordered relative paths.
type EvidenceIndex map[string][]string

// UnmarshalJSON accepts a category value that is either a single path or a
// list of paths. Entries of any other type are skipped.
func (x *EvidenceIndex) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("evidence index: %w", err)
	}
	out := make(EvidenceIndex, len(raw))
	for category, v := range raw {
		if nonNull(v) == nil {
			continue
		}
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			out[category] = []string{one}
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err == nil {
			out[category] = many
		}
	}
	*x = out
	return nil
}

// SignedURLs maps an artifact path to a time-limited URL. Paths whose URL
// could not be issued are simply missing.
type SignedURLs map[string]string

// EvidenceManifest is the index.json written next to the artifacts.
type EvidenceManifest struct {
	ConfigVersion string        `json:"config_version,omitempty"`
	Artifacts     EvidenceIndex `json:"artifacts"`
}

// EvidenceBundle is the response of GET /analyses/{id}/evidence.
type EvidenceBundle struct {
	Index      EvidenceManifest `json:"index"`
	SignedURLs SignedURLs       `json:"signed_urls"`
}
