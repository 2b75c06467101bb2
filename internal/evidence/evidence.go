// Package evidence resolves an analysis evidence pack into renderable
// artifact groups.
package evidence

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// ErrArtifactUnavailable means an artifact is listed in the manifest but
// cannot be fetched. It never affects sibling artifacts.
var ErrArtifactUnavailable = errors.New("artifact unavailable")

// Known artifact categories, in display order.
const (
	CategorySummary     = "summary"
	CategoryRPPGTraces  = "rppg_traces"
	CategoryRPPGSpectra = "rppg_spectra"
	CategoryROIMasks    = "roi_masks"
)

var knownCategories = []string{CategorySummary, CategoryRPPGTraces, CategoryRPPGSpectra, CategoryROIMasks}

// Availability distinguishes "the manifest lists nothing" from "the
// manifest lists artifacts we cannot reach".
type Availability int

const (
	// Absent: the category is not in the manifest.
	Absent Availability = iota
	// Unavailable: the category is listed but no artifact resolved.
	Unavailable
	// Available: at least one artifact resolved.
	Available
)

func (a Availability) String() string {
	switch a {
	case Absent:
		return "absent"
	case Unavailable:
		return "unavailable"
	case Available:
		return "available"
	default:
		return fmt.Sprintf("Availability(%d)", int(a))
	}
}

func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Availability) UnmarshalText(b []byte) error {
	switch string(b) {
	case "absent":
		*a = Absent
	case "unavailable":
		*a = Unavailable
	case "available":
		*a = Available
	default:
		return fmt.Errorf("unknown availability %q", b)
	}
	return nil
}

// Artifact is a resolved path and its signed URL.
type Artifact struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Group is one category of artifacts.
type Group struct {
	Category     string       `json:"category"`
	Title        string       `json:"title"`
	Availability Availability `json:"availability"`
	Artifacts    []Artifact   `json:"artifacts"`
}

// Gallery is an immutable resolved evidence pack.
type Gallery struct {
	groups []Group
}

// Resolve pairs every indexed path with its signed URL. Paths without a URL
// are dropped. Known categories come first in a fixed order, the rest
// alphabetically; paths keep their manifest order.
func Resolve(index models.EvidenceIndex, urls models.SignedURLs) *Gallery {
	g := &Gallery{groups: make([]Group, 0, len(index))}
	for _, category := range categoryOrder(index) {
		grp := Group{
			Category:  category,
			Title:     Title(category),
			Artifacts: []Artifact{},
		}
		seen := make(map[string]bool)
		for _, path := range index[category] {
			url, ok := urls[path]
			if !ok || url == "" || seen[path] {
				continue
			}
			seen[path] = true
			grp.Artifacts = append(grp.Artifacts, Artifact{Path: path, URL: url})
		}
		grp.Availability = availability(grp.Artifacts)
		g.groups = append(g.groups, grp)
	}
	return g
}

// Groups returns every category present in the manifest.
func (g *Gallery) Groups() []Group {
	out := make([]Group, len(g.groups))
	for i, grp := range g.groups {
		out[i] = grp
		out[i].Artifacts = slices.Clone(grp.Artifacts)
	}
	return out
}

// Group returns the named category. A category missing from the manifest
// comes back Absent.
func (g *Gallery) Group(category string) Group {
	for _, grp := range g.groups {
		if grp.Category == category {
			grp.Artifacts = slices.Clone(grp.Artifacts)
			return grp
		}
	}
	return Group{Category: category, Title: Title(category), Availability: Absent, Artifacts: []Artifact{}}
}

// Lookup finds a resolved artifact by path.
func (g *Gallery) Lookup(path string) (Artifact, error) {
	for _, grp := range g.groups {
		for _, a := range grp.Artifacts {
			if a.Path == path {
				return a, nil
			}
		}
	}
	return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactUnavailable, path)
}

// Len returns the number of resolved artifacts.
func (g *Gallery) Len() int {
	n := 0
	for _, grp := range g.groups {
		n += len(grp.Artifacts)
	}
	return n
}

// Drop returns a gallery without the given paths, as after a load failure.
// Other artifacts are unaffected; a category left empty becomes Unavailable.
func (g *Gallery) Drop(paths ...string) *Gallery {
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}

	out := &Gallery{groups: make([]Group, len(g.groups))}
	for i, grp := range g.groups {
		kept := make([]Artifact, 0, len(grp.Artifacts))
		for _, a := range grp.Artifacts {
			if !drop[a.Path] {
				kept = append(kept, a)
			}
		}
		grp.Artifacts = kept
		grp.Availability = availability(kept)
		out.groups[i] = grp
	}
	return out
}

// Title is the display heading for a category.
func Title(category string) string {
	switch category {
	case CategorySummary:
		return "Summary"
	case CategoryRPPGTraces:
		return "rPPG traces"
	case CategoryRPPGSpectra:
		return "rPPG spectra"
	case CategoryROIMasks:
		return "ROI masks"
	default:
		return category
	}
}

func availability(artifacts []Artifact) Availability {
	if len(artifacts) == 0 {
		return Unavailable
	}
	return Available
}

func categoryOrder(index models.EvidenceIndex) []string {
	order := make([]string, 0, len(index))
	for _, c := range knownCategories {
		if _, ok := index[c]; ok {
			order = append(order, c)
		}
	}
	for _, c := range slices.Sorted(maps.Keys(index)) {
		if !slices.Contains(knownCategories, c) {
			order = append(order, c)
		}
	}
	return order
}
