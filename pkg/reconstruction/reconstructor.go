package reconstruction

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"gonum.org/v1/gonum/stat"

	"dicomblocks/internal/models"
	"dicomblocks/pkg/grouping"
)

// Stats summarizes one reconstruction run
type Stats struct {
	// Frames is the number of input frames
	Frames int

	// Candidates is the number of blocks after equality grouping
	Candidates int

	// Blocks is the number of final blocks
	Blocks int

	// TimeBlocks counts final blocks with more than one time step
	TimeBlocks int

	// FlaggedBlocks counts final blocks carrying at least one split reason
	FlaggedBlocks int

	// SpacingMean and SpacingStdDev describe the inter-slice distance over
	// all stacks with geometry
	SpacingMean   float64
	SpacingStdDev float64
}

// ProgressFunc is called after each candidate block has been sorted
type ProgressFunc func(completed, total int, message string)

// Params holds the reconstruction parameters
type Params struct {
	// NumWorkers limits how many candidate blocks are sorted concurrently.
	// Values below 1 use all available CPUs.
	NumWorkers int

	// Condense merges repeated volumes into 3D+time blocks
	Condense bool

	// OnlyCondenseSameSeries restricts condensation to blocks of one series
	OnlyCondenseSameSeries bool

	// Options are the geometric tolerances for sorting and splitting
	Options grouping.Options

	// Progress is optional
	Progress ProgressFunc

	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// DefaultParams returns parameters that condense within one series
func DefaultParams() *Params {
	return &Params{
		NumWorkers:             runtime.NumCPU(),
		Condense:               true,
		OnlyCondenseSameSeries: true,
		Options:                grouping.DefaultOptions(),
	}
}

// Reconstructor turns frames into image blocks:
//  1. Build frames from the tag cache
//  2. Group frames by attributes that must be equal
//  3. Sort and split every candidate block, in parallel
//  4. Condense repeated volumes into 3D+time blocks
//  5. Collect statistics
type Reconstructor struct {
	params *Params
	lookup models.TagLookup
	logger *slog.Logger

	frames     []*models.Frame
	candidates []*grouping.CandidateBlock
	blocks     []*models.Block

	stats Stats
}

// NewReconstructor creates a reconstructor reading attributes from lookup
func NewReconstructor(params *Params, lookup models.TagLookup) *Reconstructor {
	if params == nil {
		params = DefaultParams()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		params: params,
		lookup: lookup,
		logger: logger,
	}
}

// Process runs the complete pipeline over frameIDs. Tag cache failures
// are returned; incomplete attributes are not errors but recorded in the
// split reasons of the resulting blocks. ctx is checked between stages.
func (r *Reconstructor) Process(ctx context.Context, frameIDs []string) error {
	r.frames, r.candidates, r.blocks = nil, nil, nil
	r.stats = Stats{}

	// Step 1: Build frames
	if err := r.loadFrames(frameIDs); err != nil {
		return fmt.Errorf("failed to load frames: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 2: Equality grouping
	r.candidates = grouping.Group(r.frames)
	r.logger.Info("grouped frames", "frames", len(r.frames), "candidates", len(r.candidates))
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: Sort and split candidates
	sorted := r.sortCandidatesInParallel()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 4: Condense
	switch {
	case !r.params.Condense:
		r.blocks = sorted
	case r.params.OnlyCondenseSameSeries:
		for _, series := range partitionBySeries(sorted) {
			r.blocks = append(r.blocks, grouping.Condense(series, true)...)
		}
	default:
		r.blocks = grouping.Condense(sorted, false)
	}
	r.logger.Info("condensed blocks", "before", len(sorted), "after", len(r.blocks))

	// Step 5: Statistics
	r.calculateStats()
	for i, b := range r.blocks {
		if b.Reasons.Len() > 0 {
			r.logger.Debug("block has split reasons", "block", i, "reasons", b.Reasons.Serialize())
		}
	}

	return nil
}

// loadFrames creates one frame per id through the tag cache
func (r *Reconstructor) loadFrames(frameIDs []string) error {
	r.frames = make([]*models.Frame, 0, len(frameIDs))
	for _, id := range frameIDs {
		f, err := models.NewFrame(id, r.lookup)
		if err != nil {
			return err
		}
		r.frames = append(r.frames, f)
	}
	return nil
}

// sortCandidatesInParallel sorts and splits every candidate block. Blocks
// are returned in candidate order no matter which worker finishes first.
func (r *Reconstructor) sortCandidatesInParallel() []*models.Block {
	total := len(r.candidates)
	if total == 0 {
		return nil
	}

	workers := r.params.NumWorkers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	type sortResult struct {
		index  int
		blocks []*models.Block
	}
	resultChan := make(chan sortResult)
	slots := make(chan struct{}, workers)

	for i, c := range r.candidates {
		go func(index int, candidate *grouping.CandidateBlock) {
			slots <- struct{}{}
			defer func() { <-slots }()

			sorted := grouping.Sort(candidate, r.params.Options)
			resultChan <- sortResult{
				index:  index,
				blocks: grouping.SplitEquidistant(sorted, r.params.Options),
			}
		}(i, c)
	}

	results := make([][]*models.Block, total)
	for completed := 1; completed <= total; completed++ {
		res := <-resultChan
		results[res.index] = res.blocks
		if r.params.Progress != nil {
			r.params.Progress(completed, total, fmt.Sprintf("sorted candidate %d into %d block(s)", res.index, len(res.blocks)))
		}
	}

	var blocks []*models.Block
	for _, bs := range results {
		blocks = append(blocks, bs...)
	}
	return blocks
}

// partitionBySeries splits blocks by the series UID of their first frame,
// in order of first appearance. Blocks without a valid UID share one
// partition; they never condense with the series check enabled.
func partitionBySeries(blocks []*models.Block) [][]*models.Block {
	var partitions [][]*models.Block
	index := make(map[models.Finding]int)
	for _, b := range blocks {
		var key models.Finding
		if len(b.Frames) > 0 {
			key = b.Frames[0].SeriesUID()
		}
		if !key.Valid {
			key = models.Missing()
		}
		i, ok := index[key]
		if !ok {
			i = len(partitions)
			index[key] = i
			partitions = append(partitions, nil)
		}
		partitions[i] = append(partitions[i], b)
	}
	return partitions
}

// calculateStats fills r.stats from the final blocks
func (r *Reconstructor) calculateStats() {
	r.stats.Frames = len(r.frames)
	r.stats.Candidates = len(r.candidates)
	r.stats.Blocks = len(r.blocks)

	var spacings []float64
	for _, b := range r.blocks {
		if b.TimeSteps > 1 {
			r.stats.TimeBlocks++
		}
		if b.Reasons.Len() > 0 {
			r.stats.FlaggedBlocks++
		}
		for _, p := range planesOf(b.Geometry) {
			if p.Slices > 1 {
				spacings = append(spacings, p.SliceSpacing)
			}
		}
	}

	switch len(spacings) {
	case 0:
	case 1:
		r.stats.SpacingMean = spacings[0]
	default:
		r.stats.SpacingMean, r.stats.SpacingStdDev = stat.MeanStdDev(spacings, nil)
	}
}

// Blocks returns the final blocks of the last Process call
func (r *Reconstructor) Blocks() []*models.Block {
	return r.blocks
}

// Descriptors describes the final blocks for a volume assembler
func (r *Reconstructor) Descriptors() []ImageBlockDescriptor {
	descriptors := make([]ImageBlockDescriptor, len(r.blocks))
	for i, b := range r.blocks {
		descriptors[i] = Describe(b)
	}
	return descriptors
}

// GetStats returns the statistics of the last Process call
func (r *Reconstructor) GetStats() Stats {
	return r.stats
}
