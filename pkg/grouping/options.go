package grouping

// Options holds the geometric tolerances of sorting and splitting, in mm
type Options struct {
	// DistanceTolerance below which two slices count as the same position
	DistanceTolerance float64

	// TiltTolerance is the in-plane offset still treated as no shift
	TiltTolerance float64

	// SpacingTolerance is the accepted deviation from the expected
	// inter-slice distance
	SpacingTolerance float64
}

// DefaultOptions returns the tolerances used when nothing is configured
func DefaultOptions() Options {
	return Options{
		DistanceTolerance: 0.001,
		TiltTolerance:     0.01,
		SpacingTolerance:  0.3,
	}
}
