package models

import (
	"gonum.org/v1/gonum/spatial/r3"

	"dicomblocks/pkg/splitreason"
)

// TiltDescriptor describes the shear of a block acquired with a tilted
// gantry. Shifts are measured between the first and the last slice.
type TiltDescriptor struct {
	// Regular is true when every slice is shifted by the same amount
	Regular bool `yaml:"regular"`

	// ShiftRight is the in-plane shift along the row direction in mm
	ShiftRight float64 `yaml:"shiftRight"`

	// ShiftUp is the in-plane shift along the column direction in mm
	ShiftUp float64 `yaml:"shiftUp"`

	// ShiftNormal is the distance along the normal in mm
	ShiftNormal float64 `yaml:"shiftNormal"`

	// SlicesApart is the number of slice steps the shifts span
	SlicesApart int `yaml:"slicesApart"`

	// AngleDegrees is the gantry tilt angle
	AngleDegrees float64 `yaml:"angleDegrees"`
}

// Copy returns a copy of t, or nil for nil
func (t *TiltDescriptor) Copy() *TiltDescriptor {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ShiftPerSlice returns the in-plane shift between two neighbouring slices
func (t *TiltDescriptor) ShiftPerSlice() float64 {
	if t == nil || t.SlicesApart == 0 {
		return 0
	}
	return r3.Norm(r3.Vec{X: t.ShiftRight, Y: t.ShiftUp}) / float64(t.SlicesApart)
}

// MatrixCoefficient returns the in-plane shift per mm of normal distance,
// the factor a shear correction matrix needs.
func (t *TiltDescriptor) MatrixCoefficient() float64 {
	if t == nil || t.ShiftNormal == 0 {
		return 0
	}
	return r3.Norm(r3.Vec{X: t.ShiftRight, Y: t.ShiftUp}) / t.ShiftNormal
}

// RealSliceSpacing returns the distance between neighbouring slice origins,
// which is longer than the normal distance for tilted acquisitions.
func (t *TiltDescriptor) RealSliceSpacing() float64 {
	if t == nil || t.SlicesApart == 0 {
		return 0
	}
	return r3.Norm(r3.Vec{X: t.ShiftRight, Y: t.ShiftUp, Z: t.ShiftNormal}) / float64(t.SlicesApart)
}

// Plane describes the geometry of one 3D stack of slices
type Plane struct {
	// Origin is the position of the first slice
	Origin r3.Vec

	// Orientation of every slice in the stack
	Orientation Orientation

	// SliceSpacing is the mean distance between slices along the normal
	SliceSpacing float64

	// Slices is the number of slices in the stack
	Slices int
}

// Geometry is either Plain or TimeSliced
type Geometry interface {
	isGeometry()
}

// Plain is the geometry of a 3D block
type Plain struct {
	Plane Plane
}

// TimeSliced is the geometry of a 3D+time block, one plane per time step
type TimeSliced struct {
	Planes []Plane
}

func (Plain) isGeometry()      {}
func (TimeSliced) isGeometry() {}

// Block is an ordered list of frames believed to form one volume. After
// condensation the frames of each time step follow each other.
type Block struct {
	// Frames in slice order, time step after time step
	Frames []*Frame

	// Tilt is set when gantry tilt was detected and is regular
	Tilt *TiltDescriptor

	// TimeSteps is 1 for a 3D block
	TimeSteps int

	// Reasons records why the block was split or what caveats apply
	Reasons *splitreason.Ledger

	// Geometry is nil when positions or orientation are missing
	Geometry Geometry
}

// NewBlock creates a single time step block owning frames
func NewBlock(frames []*Frame) *Block {
	return &Block{
		Frames:    frames,
		TimeSteps: 1,
		Reasons:   splitreason.New(),
	}
}

// SlicesPerTimeStep returns the number of frames in one time step
func (b *Block) SlicesPerTimeStep() int {
	if b.TimeSteps <= 1 {
		return len(b.Frames)
	}
	return len(b.Frames) / b.TimeSteps
}

// TimeStep returns the frames of time step t
func (b *Block) TimeStep(t int) []*Frame {
	n := b.SlicesPerTimeStep()
	return b.Frames[t*n : (t+1)*n]
}

// FrameIDs returns the frame identifiers in block order
func (b *Block) FrameIDs() []string {
	ids := make([]string, len(b.Frames))
	for i, f := range b.Frames {
		ids[i] = f.ID()
	}
	return ids
}
