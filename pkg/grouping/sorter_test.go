package grouping

import (
	"math"
	"math/rand"
	"testing"

	"dicomblocks/internal/models"
	"dicomblocks/pkg/splitreason"
)

func candidate(frames ...*models.Frame) *CandidateBlock {
	return &CandidateBlock{Frames: frames, Reasons: splitreason.New()}
}

func TestSortByDistance(t *testing.T) {
	// sagittal slices, normal along -x
	orient := with(models.TagImageOrientationPatient, `0\1\0\0\0\-1`)
	c := candidate(
		newFrame("a", at(-10, 0, 0), orient),
		newFrame("b", at(10, 0, 0), orient),
		newFrame("c", at(0, 0, 0), orient),
	)

	b := Sort(c, DefaultOptions())
	assertIDs(t, b.Frames, "b", "c", "a")
	assertIDs(t, c.Frames, "a", "b", "c")

	if b.Reasons.Len() != 0 {
		t.Errorf("unexpected reasons %s", b.Reasons)
	}
	if b.Tilt != nil {
		t.Errorf("unexpected tilt %+v", b.Tilt)
	}
	plain, ok := b.Geometry.(models.Plain)
	if !ok {
		t.Fatalf("got geometry %T, want Plain", b.Geometry)
	}
	if plain.Plane.Slices != 3 || math.Abs(plain.Plane.SliceSpacing-10) > 1e-9 {
		t.Errorf("got plane %+v", plain.Plane)
	}
}

func TestSortTieBreak(t *testing.T) {
	tests := []struct {
		name string
		a, b *models.Frame
	}{
		{
			"acquisition number",
			newFrame("a", at(0, 0, 0), acquisition(2)),
			newFrame("b", at(0, 0, 0), acquisition(10)),
		},
		{
			"acquisition time",
			newFrame("a", at(0, 0, 0), acquisition(1), with(models.TagAcquisitionTime, "101500.5")),
			newFrame("b", at(0, 0, 0), acquisition(1), with(models.TagAcquisitionTime, "101501")),
		},
		{
			"trigger time",
			newFrame("a", at(0, 0, 0), with(models.TagTriggerTime, "40")),
			newFrame("b", at(0, 0, 0), with(models.TagTriggerTime, "400")),
		},
		{
			"sop instance uid",
			newFrame("a", at(0, 0, 0), with(models.TagSOPInstanceUID, "1.2.10")),
			newFrame("b", at(0, 0, 0), with(models.TagSOPInstanceUID, "1.2.9")),
		},
		{
			"invalid before valid",
			newFrame("a", at(0, 0, 0)),
			newFrame("b", at(0, 0, 0), acquisition(1)),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Sort(candidate(tc.b, tc.a), DefaultOptions())
			assertIDs(t, b.Frames, "a", "b")
		})
	}
}

func TestSortIsDeterministic(t *testing.T) {
	var frames []*models.Frame
	for z := 0; z < 4; z++ {
		for n := 1; n <= 3; n++ {
			frames = append(frames, newFrame(
				string(rune('a'+z))+string(rune('0'+n)),
				at(0, 0, float64(z)), acquisition(n)))
		}
	}
	want := ids(Sort(candidate(frames...), DefaultOptions()).Frames)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]*models.Frame(nil), frames...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assertIDs(t, Sort(candidate(shuffled...), DefaultOptions()).Frames, want...)
	}

	// every neighbouring pair strictly increasing
	sorted := Sort(candidate(frames...), DefaultOptions()).Frames
	_, distances, _ := projectFrames(sorted)
	for i := 1; i < len(sorted); i++ {
		if compareFrames(sorted[i-1], sorted[i], distances) >= 0 {
			t.Errorf("frames %s and %s not strictly ordered", sorted[i-1].ID(), sorted[i].ID())
		}
	}
}

func TestSortPositionMissing(t *testing.T) {
	c := candidate(
		newFrame("a", at(0, 0, 0), acquisition(3)),
		newFrame("b", acquisition(1)),
		newFrame("c", at(0, 0, 9), acquisition(2)),
	)

	b := Sort(c, DefaultOptions())
	assertIDs(t, b.Frames, "b", "c", "a")
	if !b.Reasons.Has(splitreason.ImagePositionMissing) {
		t.Errorf("ImagePositionMissing not recorded: %s", b.Reasons)
	}
	if b.Geometry != nil {
		t.Errorf("got geometry %T, want nil", b.Geometry)
	}
	if b.Tilt != nil {
		t.Error("tilt must not be analysed without positions")
	}
}

func TestSortNonFinitePosition(t *testing.T) {
	c := candidate(
		newFrame("a", at(0, 0, 4), acquisition(2)),
		newFrame("b", with(models.TagImagePositionPatient, `NaN\0\0`), acquisition(3)),
		newFrame("c", at(0, 0, 1), acquisition(1)),
	)

	b := Sort(c, DefaultOptions())
	assertIDs(t, b.Frames, "c", "a", "b")
	if !b.Reasons.Has(splitreason.ImagePositionMissing) {
		t.Errorf("ImagePositionMissing not recorded: %s", b.Reasons)
	}
	if b.Geometry != nil {
		t.Errorf("got geometry %T, want nil", b.Geometry)
	}
}

func TestSortOrientationMissing(t *testing.T) {
	c := candidate(
		newFrame("a", at(0, 0, 1), without(models.TagImageOrientationPatient)),
		newFrame("b", at(0, 0, 0), without(models.TagImageOrientationPatient)),
	)

	b := Sort(c, DefaultOptions())
	if !b.Reasons.Has(splitreason.ImagePositionMissing) {
		t.Errorf("ImagePositionMissing not recorded: %s", b.Reasons)
	}
}

func TestSortRegularTilt(t *testing.T) {
	// every slice shifted by 2 mm along the column direction
	var frames []*models.Frame
	for i := 5; i >= 0; i-- {
		frames = append(frames, newFrame(string(rune('a'+i)), at(0, 2*float64(i), float64(i))))
	}

	b := Sort(candidate(frames...), DefaultOptions())
	assertIDs(t, b.Frames, "a", "b", "c", "d", "e", "f")

	if b.Tilt == nil {
		t.Fatal("expected a tilt descriptor")
	}
	if !b.Tilt.Regular {
		t.Error("tilt should be regular")
	}
	if !b.Reasons.Has(splitreason.GantryTiltDifference) {
		t.Errorf("GantryTiltDifference not recorded: %s", b.Reasons)
	}
	if b.Reasons.Has(splitreason.SliceDistanceInconsistency) {
		t.Errorf("regular tilt recorded as inconsistency: %s", b.Reasons)
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"shift up", b.Tilt.ShiftUp, 10},
		{"shift right", b.Tilt.ShiftRight, 0},
		{"shift normal", b.Tilt.ShiftNormal, 5},
		{"slices apart", float64(b.Tilt.SlicesApart), 5},
		{"shift per slice", b.Tilt.ShiftPerSlice(), 2},
		{"matrix coefficient", b.Tilt.MatrixCoefficient(), 2},
		{"angle", b.Tilt.AngleDegrees, math.Atan(2) * 180 / math.Pi},
		{"real spacing", b.Tilt.RealSliceSpacing(), math.Sqrt(5)},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", c.name, c.got, c.want)
		}
	}
}

func TestSortIrregularTilt(t *testing.T) {
	shifts := []float64{0, 2, 2, 5}
	var frames []*models.Frame
	for i, s := range shifts {
		frames = append(frames, newFrame(string(rune('a'+i)), at(0, s, float64(i))))
	}

	b := Sort(candidate(frames...), DefaultOptions())
	assertIDs(t, b.Frames, "a", "b", "c", "d")
	if b.Tilt != nil {
		t.Errorf("irregular shift must not produce a descriptor: %+v", b.Tilt)
	}
	if !b.Reasons.Has(splitreason.SliceDistanceInconsistency) {
		t.Errorf("SliceDistanceInconsistency not recorded: %s", b.Reasons)
	}
}

func TestSortKeepsCandidateReasons(t *testing.T) {
	c := candidate(newFrame("a", at(0, 0, 0)))
	c.Reasons.Add(splitreason.ValueSplitDifference, "(0028,0010)")

	b := Sort(c, DefaultOptions())
	if !b.Reasons.Has(splitreason.ValueSplitDifference) {
		t.Errorf("candidate reasons lost: %s", b.Reasons)
	}
	b.Reasons.Remove(splitreason.ValueSplitDifference)
	if !c.Reasons.Has(splitreason.ValueSplitDifference) {
		t.Error("block ledger shares state with the candidate")
	}
}

func BenchmarkSort(b *testing.B) {
	frames := stack("f", 500)
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })
	c := candidate(frames...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sort(c, DefaultOptions())
	}
}
