package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tag identifies a DICOM attribute by its group and element numbers
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag as a string in (GGGG,EEEE) format
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Attributes read for every frame
var (
	TagSOPInstanceUID          = Tag{0x0008, 0x0018}
	TagAcquisitionTime         = Tag{0x0008, 0x0032}
	TagSliceThickness          = Tag{0x0018, 0x0050}
	TagSpacingBetweenSlices    = Tag{0x0018, 0x0088}
	TagTriggerTime             = Tag{0x0018, 0x1060}
	TagImagerPixelSpacing      = Tag{0x0018, 0x1164}
	TagSeriesInstanceUID       = Tag{0x0020, 0x000E}
	TagAcquisitionNumber       = Tag{0x0020, 0x0012}
	TagImagePositionPatient    = Tag{0x0020, 0x0032}
	TagImageOrientationPatient = Tag{0x0020, 0x0037}
	TagNumberOfFrames          = Tag{0x0028, 0x0008}
	TagRows                    = Tag{0x0028, 0x0010}
	TagColumns                 = Tag{0x0028, 0x0011}
	TagPixelSpacing            = Tag{0x0028, 0x0030}
)

// GroupingTags must agree between all frames of one block
var GroupingTags = []Tag{
	TagRows,
	TagColumns,
	TagPixelSpacing,
	TagImagerPixelSpacing,
	TagImageOrientationPatient,
	TagSliceThickness,
	TagNumberOfFrames,
	TagSeriesInstanceUID,
}

// FrameTags lists every attribute a Frame caches
var FrameTags = append(append([]Tag{}, GroupingTags...),
	TagImagePositionPatient,
	TagSpacingBetweenSlices,
	TagAcquisitionNumber,
	TagAcquisitionTime,
	TagTriggerTime,
	TagSOPInstanceUID,
)

// Finding is the result of looking up a tag for one frame. An invalid
// finding means the tag was absent or could not be read.
type Finding struct {
	Value string
	Valid bool
}

// Found returns a valid finding holding value
func Found(value string) Finding {
	return Finding{Value: value, Valid: true}
}

// Missing returns an invalid finding
func Missing() Finding {
	return Finding{}
}

// Matches reports whether two findings may share a block: both invalid,
// or both valid with identical values.
func (f Finding) Matches(other Finding) bool {
	if f.Valid != other.Valid {
		return false
	}
	return !f.Valid || f.Value == other.Value
}

// EqualValid reports whether both findings are valid and identical
func (f Finding) EqualValid(other Finding) bool {
	return f.Valid && other.Valid && f.Value == other.Value
}

// Float parses the finding as a single finite decimal number
func (f Finding) Float() (float64, bool) {
	if !f.Valid {
		return 0, false
	}
	return parseDecimal(f.Value)
}

// Floats parses a backslash separated multi-value finding. It fails when
// the finding is invalid, a component is not a finite number, or the number of
// components differs from n (n < 0 accepts any count).
func (f Finding) Floats(n int) ([]float64, bool) {
	if !f.Valid {
		return nil, false
	}
	parts := strings.Split(f.Value, `\`)
	if n >= 0 && len(parts) != n {
		return nil, false
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, ok := parseDecimal(p)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// parseDecimal rejects NaN and infinities, which have no order
func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// String renders the finding for log output
func (f Finding) String() string {
	if !f.Valid {
		return "<missing>"
	}
	return f.Value
}
