// Package grouping turns an unordered list of image frames into blocks
// that each form one rectilinear 3D or 3D+time volume.
//
// The stages are, in pipeline order:
//  1. Group partitions frames by attributes that must be identical
//  2. Sort orders the frames of one candidate and analyses gantry tilt
//  3. SplitEquidistant cuts a sorted candidate into evenly spaced blocks
//  4. Condense merges same-shaped blocks into 3D+time blocks
//
// None of the stages fail on incomplete data. Missing attributes lead to
// conservative results and are recorded in each block's split-reason
// ledger.
package grouping

import (
	"strings"

	"dicomblocks/internal/models"
	"dicomblocks/pkg/splitreason"
)

// CandidateBlock is a set of frames that agree on all models.GroupingTags
type CandidateBlock struct {
	// Frames in input order
	Frames []*models.Frame

	// Reasons recorded while grouping
	Reasons *splitreason.Ledger
}

// Group partitions frames into candidate blocks. Two frames share a
// block iff every grouping tag is invalid for both or valid and equal for
// both. Blocks are returned in order of their first frame, frames keep
// their input order. Every input frame ends up in exactly one block.
func Group(frames []*models.Frame) []*CandidateBlock {
	var blocks []*CandidateBlock
	byKey := make(map[string]int)
	bySeries := make(map[string]int)

	for _, f := range frames {
		key := groupingKey(f)
		if i, ok := byKey[key]; ok {
			blocks[i].Frames = append(blocks[i].Frames, f)
			continue
		}

		block := &CandidateBlock{
			Frames:  []*models.Frame{f},
			Reasons: splitreason.New(),
		}

		// same series, split by another attribute
		if series := f.SeriesUID(); series.Valid {
			if i, ok := bySeries[series.Value]; ok {
				if t, differs := firstDifference(blocks[i].Frames[0], f); differs {
					block.Reasons.Add(splitreason.ValueSplitDifference, t.String())
				}
			} else {
				bySeries[series.Value] = len(blocks)
			}
		}

		byKey[key] = len(blocks)
		blocks = append(blocks, block)
	}

	return blocks
}

// groupingKey encodes validity and value of every grouping tag so that
// equal keys mean matching findings
func groupingKey(f *models.Frame) string {
	var sb strings.Builder
	for _, t := range models.GroupingTags {
		finding := f.Finding(t)
		if finding.Valid {
			sb.WriteByte('+')
			sb.WriteString(finding.Value)
		} else {
			sb.WriteByte('-')
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

// firstDifference returns the first grouping tag on which a and b disagree
func firstDifference(a, b *models.Frame) (models.Tag, bool) {
	for _, t := range models.GroupingTags {
		if !a.Finding(t).Matches(b.Finding(t)) {
			return t, true
		}
	}
	return models.Tag{}, false
}
