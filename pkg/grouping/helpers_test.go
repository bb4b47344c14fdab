package grouping

import (
	"fmt"
	"testing"

	"dicomblocks/internal/models"
)

// baseFindings describes an axial 256x256 slice of series 1.2.3
func baseFindings(id string) map[models.Tag]models.Finding {
	return map[models.Tag]models.Finding{
		models.TagRows:                    models.Found("256"),
		models.TagColumns:                 models.Found("256"),
		models.TagPixelSpacing:            models.Found(`0.5\0.5`),
		models.TagImageOrientationPatient: models.Found(`1\0\0\0\1\0`),
		models.TagSliceThickness:          models.Found("1"),
		models.TagNumberOfFrames:          models.Found("1"),
		models.TagSeriesInstanceUID:       models.Found("1.2.3"),
		models.TagSOPInstanceUID:          models.Found("1.2.3." + id),
	}
}

// frameOpt changes one attribute of a test frame
type frameOpt func(map[models.Tag]models.Finding)

func with(t models.Tag, value string) frameOpt {
	return func(m map[models.Tag]models.Finding) { m[t] = models.Found(value) }
}

func without(t models.Tag) frameOpt {
	return func(m map[models.Tag]models.Finding) { delete(m, t) }
}

func at(x, y, z float64) frameOpt {
	return with(models.TagImagePositionPatient, fmt.Sprintf(`%g\%g\%g`, x, y, z))
}

func acquisition(n int) frameOpt {
	return with(models.TagAcquisitionNumber, fmt.Sprint(n))
}

func newFrame(id string, opts ...frameOpt) *models.Frame {
	m := baseFindings(id)
	for _, o := range opts {
		o(m)
	}
	return models.NewFrameFromFindings(id, m)
}

// stack creates n axial frames at z = 0..n-1 with ids prefix0..
func stack(prefix string, n int, opts ...frameOpt) []*models.Frame {
	frames := make([]*models.Frame, n)
	for i := range frames {
		o := append([]frameOpt{at(0, 0, float64(i))}, opts...)
		frames[i] = newFrame(fmt.Sprintf("%s%d", prefix, i), o...)
	}
	return frames
}

func ids(frames []*models.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.ID()
	}
	return out
}

func assertIDs(t *testing.T, got []*models.Frame, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got frames %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got frames %v, want %v", g, want)
		}
	}
}
