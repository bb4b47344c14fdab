// Package splitreason records why image frames were split into separate
// blocks, or which caveats apply to a block that was kept together.
package splitreason

import (
	"sort"
)

// ReasonKind is the closed set of split reasons
type ReasonKind int

const (
	GantryTiltDifference ReasonKind = iota
	ImagePositionMissing
	OverlappingSlices
	SliceDistanceInconsistency
	ValueSortDistance
	ValueSplitDifference
	MissingSlices
	Unknown
)

var tokens = map[ReasonKind]string{
	GantryTiltDifference:       "gantry_tilt_difference",
	ImagePositionMissing:       "image_position_missing",
	OverlappingSlices:          "overlapping_slices",
	SliceDistanceInconsistency: "slice_distance_inconsistency",
	ValueSortDistance:          "value_sort_distance",
	ValueSplitDifference:       "value_split_difference",
	MissingSlices:              "missing_slices",
	Unknown:                    "unknown",
}

// String returns the serialization token of the kind
func (k ReasonKind) String() string {
	if t, ok := tokens[k]; ok {
		return t
	}
	return tokens[Unknown]
}

// ParseKind maps a token to its kind. Unrecognized tokens map to Unknown.
func ParseKind(token string) ReasonKind {
	for k, t := range tokens {
		if t == token {
			return k
		}
	}
	return Unknown
}

// Ledger holds at most one detail string per ReasonKind. Create ledgers
// with New. A nil *Ledger reads as empty.
type Ledger struct {
	entries map[ReasonKind]string
}

// New returns an empty ledger
func New() *Ledger {
	return &Ledger{entries: make(map[ReasonKind]string)}
}

// Add records kind with detail, replacing an earlier detail
func (l *Ledger) Add(kind ReasonKind, detail string) {
	l.entries[kind] = detail
}

// Remove deletes kind from the ledger
func (l *Ledger) Remove(kind ReasonKind) {
	delete(l.entries, kind)
}

// Has reports whether kind is recorded
func (l *Ledger) Has(kind ReasonKind) bool {
	if l == nil {
		return false
	}
	_, ok := l.entries[kind]
	return ok
}

// Detail returns the detail recorded for kind
func (l *Ledger) Detail(kind ReasonKind) (string, bool) {
	if l == nil {
		return "", false
	}
	d, ok := l.entries[kind]
	return d, ok
}

// Len returns the number of recorded kinds
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Kinds returns the recorded kinds in declaration order
func (l *Ledger) Kinds() []ReasonKind {
	kinds := make([]ReasonKind, 0, l.Len())
	if l == nil {
		return kinds
	}
	for k := range l.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Clone returns an independent copy of the ledger, empty for nil
func (l *Ledger) Clone() *Ledger {
	c := New()
	if l == nil {
		return c
	}
	for k, d := range l.entries {
		c.entries[k] = d
	}
	return c
}

// Extend returns a new ledger holding the union of l and other. On a
// kind recorded in both, the detail from other is kept. Neither input is
// modified.
func (l *Ledger) Extend(other *Ledger) *Ledger {
	result := l.Clone()
	if other == nil {
		return result
	}
	for k, d := range other.entries {
		result.entries[k] = d
	}
	return result
}

// Equal reports whether both ledgers hold the same kinds and details
func (l *Ledger) Equal(other *Ledger) bool {
	if l.Len() != other.Len() {
		return false
	}
	if l == nil || other == nil {
		return true
	}
	for k, d := range l.entries {
		if od, ok := other.entries[k]; !ok || od != d {
			return false
		}
	}
	return true
}
