package grouping

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"dicomblocks/internal/models"
	"dicomblocks/pkg/splitreason"
)

// Sort orders the frames of a candidate block and analyses its geometry.
//
// Frames are sorted by their distance along the slice normal, ties broken
// by acquisition number, acquisition time, trigger time and finally SOP
// instance UID. If a position or the orientation is missing the distance
// is left out of the key and ImagePositionMissing is recorded.
//
// A regular gantry tilt yields a TiltDescriptor and GantryTiltDifference;
// an in-plane shift that is not a constant shear yields
// SliceDistanceInconsistency. Neither changes the frame order.
func Sort(c *CandidateBlock, opts Options) *models.Block {
	frames := make([]*models.Frame, len(c.Frames))
	copy(frames, c.Frames)

	block := models.NewBlock(frames)
	if c.Reasons != nil {
		block.Reasons = c.Reasons.Clone()
	}
	if len(frames) == 0 {
		return block
	}

	orientation, distances, missing := projectFrames(frames)
	if missing != "" {
		block.Reasons.Add(splitreason.ImagePositionMissing, missing)
		sortFrames(frames, nil)
		return block
	}

	sortFrames(frames, distances)

	tilt, irregular := analyzeTilt(frames, orientation, opts)
	switch {
	case irregular != "":
		block.Reasons.Add(splitreason.SliceDistanceInconsistency, irregular)
	case tilt != nil:
		block.Tilt = tilt
		block.Reasons.Add(splitreason.GantryTiltDifference, formatMM(tilt.AngleDegrees))
	}

	block.Geometry = geometryOf(frames)
	return block
}

// projectFrames computes the distance of every frame along the block
// normal. missing describes the first frame without usable geometry.
func projectFrames(frames []*models.Frame) (models.Orientation, map[*models.Frame]float64, string) {
	orientation, ok := frames[0].Orientation()
	if !ok {
		return orientation, nil, "image orientation missing in " + frames[0].ID()
	}

	distances := make(map[*models.Frame]float64, len(frames))
	for _, f := range frames {
		p, ok := f.Position()
		if !ok {
			return orientation, nil, "image position missing in " + f.ID()
		}
		distances[f] = r3.Dot(p, orientation.Normal)
	}
	return orientation, distances, ""
}

// sortFrames sorts in place. Without distances only the acquisition
// attributes form the key.
func sortFrames(frames []*models.Frame, distances map[*models.Frame]float64) {
	sort.SliceStable(frames, func(i, j int) bool {
		return compareFrames(frames[i], frames[j], distances) < 0
	})
}

// compareFrames returns -1, 0 or 1. It is 0 only when the full key is
// identical.
func compareFrames(a, b *models.Frame, distances map[*models.Frame]float64) int {
	if distances != nil {
		da, db := distances[a], distances[b]
		if da < db {
			return -1
		}
		if da > db {
			return 1
		}
	}

	for _, t := range []models.Tag{
		models.TagAcquisitionNumber,
		models.TagAcquisitionTime,
		models.TagTriggerTime,
	} {
		if c := compareNumeric(a.Finding(t), b.Finding(t)); c != 0 {
			return c
		}
	}
	return compareText(a.Finding(models.TagSOPInstanceUID), b.Finding(models.TagSOPInstanceUID))
}

// compareNumeric orders invalid before valid, numbers by value and
// anything unparsable as text
func compareNumeric(a, b models.Finding) int {
	if a.Valid != b.Valid {
		if !a.Valid {
			return -1
		}
		return 1
	}
	if !a.Valid {
		return 0
	}
	fa, okA := a.Float()
	fb, okB := b.Float()
	if okA && okB && fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Value, b.Value)
}

func compareText(a, b models.Finding) int {
	if a.Valid != b.Valid {
		if !a.Valid {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Value, b.Value)
}

// geometryOf describes sorted frames as a Plain geometry, or returns nil
// when a position or the orientation is missing
func geometryOf(frames []*models.Frame) models.Geometry {
	if len(frames) == 0 {
		return nil
	}
	orientation, ok := frames[0].Orientation()
	if !ok {
		return nil
	}
	origin, ok := frames[0].Position()
	if !ok {
		return nil
	}

	var steps []float64
	prev := r3.Dot(origin, orientation.Normal)
	for _, f := range frames[1:] {
		p, ok := f.Position()
		if !ok {
			return nil
		}
		d := r3.Dot(p, orientation.Normal)
		if d != prev {
			steps = append(steps, d-prev)
		}
		prev = d
	}

	plane := models.Plane{
		Origin:      origin,
		Orientation: orientation,
		Slices:      len(frames),
	}
	if len(steps) > 0 {
		plane.SliceSpacing = stat.Mean(steps, nil)
	}
	return models.Plain{Plane: plane}
}

// formatMM renders a measurement rounded to micrometres
func formatMM(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
