package grouping

import (
	"dicomblocks/internal/models"
	"dicomblocks/pkg/splitreason"
)

// Condense merges blocks that repeat the same volume into 3D+time blocks.
//
// The first remaining block becomes an accumulator; every later block
// with the same number of slices and identical first and last
// ImagePositionPatient values is appended to it as the next time step
// (and, with onlyCondenseSameSeries, only when the series UIDs are valid
// and equal). Positions compare as cached strings, not as numbers.
//
// 3D+time blocks are returned first, followed by the blocks that stayed
// single. Input blocks are never modified; single blocks are returned as
// they were passed in.
func Condense(blocks []*models.Block, onlyCondenseSameSeries bool) []*models.Block {
	var multi, single []*models.Block

	remaining := blocks
	for len(remaining) > 0 {
		first := remaining[0]
		merged := make([]bool, len(remaining))
		merged[0] = true

		var acc *models.Block
		for i := 1; i < len(remaining); i++ {
			if !canCondense(first, remaining[i], onlyCondenseSameSeries) {
				continue
			}
			if acc == nil {
				acc = startAccumulator(first)
			}
			appendTimeSteps(acc, remaining[i])
			merged[i] = true
		}

		if acc == nil {
			single = append(single, first)
		} else {
			multi = append(multi, acc)
		}

		next := make([]*models.Block, 0, len(remaining))
		for i, b := range remaining {
			if !merged[i] {
				next = append(next, b)
			}
		}
		remaining = next
	}

	// the overlap is explained by the time dimension
	if len(multi) == 1 && len(single) == 0 {
		multi[0].Reasons.Remove(splitreason.OverlappingSlices)
	}

	return append(multi, single...)
}

// canCondense reports whether b repeats the first time step of a
func canCondense(a, b *models.Block, onlyCondenseSameSeries bool) bool {
	n := a.SlicesPerTimeStep()
	if n == 0 || b.SlicesPerTimeStep() != n {
		return false
	}

	aFirst, aLast := boundaryPositions(a)
	bFirst, bLast := boundaryPositions(b)
	if !aFirst.EqualValid(bFirst) || !aLast.EqualValid(bLast) {
		return false
	}

	if onlyCondenseSameSeries && !a.Frames[0].SeriesUID().EqualValid(b.Frames[0].SeriesUID()) {
		return false
	}
	return true
}

// boundaryPositions returns the position findings of the first and last
// slice of the first time step
func boundaryPositions(b *models.Block) (models.Finding, models.Finding) {
	step := b.TimeStep(0)
	return step[0].Finding(models.TagImagePositionPatient),
		step[len(step)-1].Finding(models.TagImagePositionPatient)
}

// startAccumulator copies b so that merging never touches the input. A
// nil ledger becomes an empty one.
func startAccumulator(b *models.Block) *models.Block {
	frames := make([]*models.Frame, len(b.Frames))
	copy(frames, b.Frames)
	return &models.Block{
		Frames:    frames,
		Tilt:      b.Tilt.Copy(),
		TimeSteps: b.TimeSteps,
		Reasons:   b.Reasons.Clone(),
		Geometry:  b.Geometry,
	}
}

// appendTimeSteps adds the frames of b after those of acc
func appendTimeSteps(acc, b *models.Block) {
	acc.Frames = append(acc.Frames, b.Frames...)
	acc.TimeSteps += b.TimeSteps
	acc.Reasons = acc.Reasons.Extend(b.Reasons)
	acc.Geometry = timeSliced(acc.Geometry, b.Geometry)
}

// timeSliced joins the geometries of two blocks. The result is nil when
// either side has no geometry.
func timeSliced(a, b models.Geometry) models.Geometry {
	pa, okA := planes(a)
	pb, okB := planes(b)
	if !okA || !okB {
		return nil
	}
	return models.TimeSliced{Planes: append(pa, pb...)}
}

func planes(g models.Geometry) ([]models.Plane, bool) {
	switch g := g.(type) {
	case models.Plain:
		return []models.Plane{g.Plane}, true
	case models.TimeSliced:
		return append([]models.Plane(nil), g.Planes...), true
	default:
		return nil, false
	}
}
