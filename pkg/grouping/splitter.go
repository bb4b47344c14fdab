package grouping

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"dicomblocks/internal/models"
	"dicomblocks/pkg/splitreason"
)

// SplitEquidistant cuts a sorted block into blocks whose slices are
// evenly spaced along the normal.
//
// A frame at the position of the previously accepted frame is deferred
// and analysed again after the current block is complete, so interleaved
// repetitions of a volume come out as one block per repetition. A gap of
// a whole number of slices ends the block with MissingSlices, any other
// change of spacing with SliceDistanceInconsistency. Blocks without
// geometry are returned unchanged.
func SplitEquidistant(b *models.Block, opts Options) []*models.Block {
	if b.Geometry == nil || len(b.Frames) < 2 {
		return []*models.Block{b}
	}

	orientation, _ := b.Frames[0].Orientation()
	distance := func(f *models.Frame) float64 {
		p, _ := f.Position()
		return r3.Dot(p, orientation.Normal)
	}

	var result []*models.Block
	pending := b.Frames
	for len(pending) > 0 {
		reasons := b.Reasons.Clone()
		accepted := []*models.Frame{pending[0]}
		var deferred, rest []*models.Frame
		var expected float64
		haveExpected := false

		for j := 1; j < len(pending); j++ {
			f := pending[j]
			step := distance(f) - distance(accepted[len(accepted)-1])

			if math.Abs(step) <= opts.DistanceTolerance {
				deferred = append(deferred, f)
				reasons.Add(splitreason.OverlappingSlices, "")
				continue
			}
			if !haveExpected {
				expected = step
				haveExpected = true
				accepted = append(accepted, f)
				continue
			}
			if math.Abs(step-expected) <= opts.SpacingTolerance {
				accepted = append(accepted, f)
				continue
			}

			if k := math.Round(step / expected); k >= 2 && math.Abs(step-k*expected) <= opts.SpacingTolerance {
				reasons.Add(splitreason.MissingSlices, strconv.Itoa(int(k)-1))
			} else {
				reasons.Add(splitreason.SliceDistanceInconsistency,
					fmt.Sprintf("%s mm instead of %s mm before %s", formatMM(step), formatMM(expected), f.ID()))
			}
			rest = pending[j:]
			break
		}

		if haveExpected {
			checkDeclaredSpacing(accepted[0], expected, reasons, opts)
		}

		result = append(result, &models.Block{
			Frames:    accepted,
			Tilt:      b.Tilt.Copy(),
			TimeSteps: 1,
			Reasons:   reasons,
			Geometry:  geometryOf(accepted),
		})

		// deferred frames precede rest in sort order
		next := make([]*models.Frame, 0, len(deferred)+len(rest))
		next = append(next, deferred...)
		pending = append(next, rest...)
	}

	return result
}

// checkDeclaredSpacing records ValueSortDistance when the measured
// spacing disagrees with SpacingBetweenSlices
func checkDeclaredSpacing(f *models.Frame, measured float64, reasons *splitreason.Ledger, opts Options) {
	declared, ok := f.Finding(models.TagSpacingBetweenSlices).Float()
	if !ok {
		return
	}
	if diff := math.Abs(math.Abs(measured) - math.Abs(declared)); diff > opts.SpacingTolerance {
		reasons.Add(splitreason.ValueSortDistance, formatMM(diff))
	}
}
