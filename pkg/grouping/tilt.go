package grouping

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"dicomblocks/internal/models"
)

// analyzeTilt looks at the offsets of sorted frames relative to the first
// one. If the in-plane part of every offset is a constant multiple of its
// normal part the block was acquired with a regular gantry tilt. The
// returned string describes an irregular shift; both results are empty
// for untilted blocks.
func analyzeTilt(frames []*models.Frame, o models.Orientation, opts Options) (*models.TiltDescriptor, string) {
	if len(frames) < 2 {
		return nil, ""
	}

	// rows of toPlane map patient coordinates to (right, up, normal)
	toPlane := mat.NewDense(3, 3, []float64{
		o.Row.X, o.Row.Y, o.Row.Z,
		o.Column.X, o.Column.Y, o.Column.Z,
		o.Normal.X, o.Normal.Y, o.Normal.Z,
	})

	origin, _ := frames[0].Position()
	offsets := make([]r3.Vec, len(frames))
	shifted := false
	for i, f := range frames {
		p, _ := f.Position()
		d := r3.Sub(p, origin)
		var v mat.VecDense
		v.MulVec(toPlane, mat.NewVecDense(3, []float64{d.X, d.Y, d.Z}))
		offsets[i] = r3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
		if math.Abs(offsets[i].X) > opts.TiltTolerance || math.Abs(offsets[i].Y) > opts.TiltTolerance {
			shifted = true
		}
	}
	if !shifted {
		return nil, ""
	}

	last := offsets[len(offsets)-1]
	if math.Abs(last.Z) <= opts.DistanceTolerance {
		return nil, fmt.Sprintf("in-plane shift without slice distance at %s", frames[len(frames)-1].ID())
	}
	kRight := last.X / last.Z
	kUp := last.Y / last.Z

	steps := 0
	for i, off := range offsets {
		if !scalar.EqualWithinAbs(off.X, kRight*off.Z, opts.TiltTolerance) ||
			!scalar.EqualWithinAbs(off.Y, kUp*off.Z, opts.TiltTolerance) {
			return nil, fmt.Sprintf("irregular in-plane shift of %s mm at %s",
				formatMM(math.Hypot(off.X, off.Y)), frames[i].ID())
		}
		if i > 0 && math.Abs(off.Z-offsets[i-1].Z) > opts.DistanceTolerance {
			steps++
		}
	}

	return &models.TiltDescriptor{
		Regular:      true,
		ShiftRight:   last.X,
		ShiftUp:      last.Y,
		ShiftNormal:  last.Z,
		SlicesApart:  steps,
		AngleDegrees: math.Atan(math.Hypot(kRight, kUp)) * 180 / math.Pi,
	}, ""
}
