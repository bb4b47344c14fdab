package models

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// TagLookup is the read-only tag cache a Frame is built from.
// Implementations return an invalid Finding for absent tags; a non-nil
// error means the cache itself failed.
type TagLookup interface {
	Lookup(frameID string, tag Tag) (Finding, error)
}

// Orientation holds the direction cosines of an image plane
type Orientation struct {
	// Row is the direction of the first image row
	Row r3.Vec

	// Column is the direction of the first image column
	Column r3.Vec

	// Normal is the unit vector Row x Column
	Normal r3.Vec
}

// ParseOrientation derives an Orientation from an ImageOrientationPatient
// finding. It fails for invalid findings and degenerate (parallel) axes.
func ParseOrientation(f Finding) (Orientation, bool) {
	v, ok := f.Floats(6)
	if !ok {
		return Orientation{}, false
	}
	row := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	col := r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	n := r3.Cross(row, col)
	if r3.Norm(n) == 0 {
		return Orientation{}, false
	}
	return Orientation{Row: row, Column: col, Normal: r3.Unit(n)}, true
}

// ParsePosition reads an ImagePositionPatient finding as a vector
func ParsePosition(f Finding) (r3.Vec, bool) {
	v, ok := f.Floats(3)
	if !ok {
		return r3.Vec{}, false
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, true
}

// Frame represents one 2D image and the attributes cached for it.
// A Frame is never modified after construction.
type Frame struct {
	id       string
	findings map[Tag]Finding

	position    r3.Vec
	hasPosition bool

	orientation    Orientation
	hasOrientation bool
}

// NewFrame reads all FrameTags for id from lookup. Lookup errors are
// returned unchanged apart from wrapping with the frame id and tag.
func NewFrame(id string, lookup TagLookup) (*Frame, error) {
	findings := make(map[Tag]Finding, len(FrameTags))
	for _, t := range FrameTags {
		f, err := lookup.Lookup(id, t)
		if err != nil {
			return nil, fmt.Errorf("lookup %s for %s: %w", t, id, err)
		}
		findings[t] = f
	}
	return NewFrameFromFindings(id, findings), nil
}

// NewFrameFromFindings builds a frame from already materialized findings.
// Tags missing from the map are treated as invalid.
func NewFrameFromFindings(id string, findings map[Tag]Finding) *Frame {
	fr := &Frame{
		id:       id,
		findings: make(map[Tag]Finding, len(findings)),
	}
	for t, f := range findings {
		fr.findings[t] = f
	}
	fr.position, fr.hasPosition = ParsePosition(fr.findings[TagImagePositionPatient])
	fr.orientation, fr.hasOrientation = ParseOrientation(fr.findings[TagImageOrientationPatient])
	return fr
}

// ID returns the identifier the frame was created with
func (f *Frame) ID() string { return f.id }

// Finding returns the cached finding for t
func (f *Frame) Finding(t Tag) Finding { return f.findings[t] }

// Position returns the parsed image position
func (f *Frame) Position() (r3.Vec, bool) { return f.position, f.hasPosition }

// Orientation returns the parsed image orientation
func (f *Frame) Orientation() (Orientation, bool) { return f.orientation, f.hasOrientation }

// SeriesUID returns the series instance UID finding
func (f *Frame) SeriesUID() Finding { return f.findings[TagSeriesInstanceUID] }

// String returns the frame id
func (f *Frame) String() string { return f.id }
