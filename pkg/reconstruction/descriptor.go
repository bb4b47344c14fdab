package reconstruction

import (
	"dicomblocks/internal/models"
)

// ImageBlockDescriptor is everything a volume assembler needs to build
// one volume from pixel data
type ImageBlockDescriptor struct {
	// FrameIDs in slice order, time step after time step
	FrameIDs []string `yaml:"frames"`

	TimeSteps         int `yaml:"timeSteps"`
	SlicesPerTimeStep int `yaml:"slicesPerTimeStep"`

	SeriesInstanceUID string `yaml:"seriesInstanceUID,omitempty"`

	// Origins holds the first slice position of every time step
	Origins [][3]float64 `yaml:"origins,omitempty"`

	// Normal is the slice normal, absent without geometry
	Normal *[3]float64 `yaml:"normal,omitempty"`

	SliceSpacing float64 `yaml:"sliceSpacing,omitempty"`

	Tilt *models.TiltDescriptor `yaml:"tilt,omitempty"`

	// SplitReasons is the serialized split-reason ledger
	SplitReasons string `yaml:"splitReasons"`
}

// Describe builds the descriptor of b
func Describe(b *models.Block) ImageBlockDescriptor {
	d := ImageBlockDescriptor{
		FrameIDs:          b.FrameIDs(),
		TimeSteps:         b.TimeSteps,
		SlicesPerTimeStep: b.SlicesPerTimeStep(),
		Tilt:              b.Tilt,
		SplitReasons:      b.Reasons.Serialize(),
	}
	if len(b.Frames) > 0 {
		if uid := b.Frames[0].SeriesUID(); uid.Valid {
			d.SeriesInstanceUID = uid.Value
		}
	}

	planes := planesOf(b.Geometry)
	for _, p := range planes {
		d.Origins = append(d.Origins, [3]float64{p.Origin.X, p.Origin.Y, p.Origin.Z})
	}
	if len(planes) > 0 {
		n := planes[0].Orientation.Normal
		d.Normal = &[3]float64{n.X, n.Y, n.Z}
		d.SliceSpacing = planes[0].SliceSpacing
	}
	return d
}

// planesOf lists the planes of a geometry, one per time step
func planesOf(g models.Geometry) []models.Plane {
	switch g := g.(type) {
	case models.Plain:
		return []models.Plane{g.Plane}
	case models.TimeSliced:
		return g.Planes
	case nil:
		return nil
	default:
		panic("reconstruction: unknown geometry type")
	}
}
