package systems

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// NoNode terminates a cell chain.
const NoNode int32 = -1

// DefaultLayer is assigned to probes loaded without a layer mask.
const DefaultLayer uint32 = 1

var (
	ErrProbeCountMismatch = errors.New("probe count does not match declared obstacle count")
	ErrLayerCountMismatch = errors.New("layer count does not match probe count")
	ErrNonFiniteProbe     = errors.New("probe position is not finite")
	ErrNilGrid            = errors.New("obstacle index requires a grid")
)

// CellHead is the per-cell chain header.
type CellHead struct {
	Usage int32 // probes in the cell
	Top   int32 // most recently linked probe, NoNode if empty
}

// HashNode links one probe into its cell chain.
type HashNode struct {
	Cell int32
	Next int32
}

// IndexOptions controls index construction.
type IndexOptions struct {
	// ExpectedCount is the declared probe count. Negative disables the check.
	ExpectedCount int
	// Layers holds one bitmask per probe. Nil assigns DefaultLayer.
	Layers []uint32
	// Workers > 1 links probes concurrently.
	Workers int
}

// ObstacleIndex owns the probe positions and the intrusive per-cell chains.
// It is immutable once built and safe for concurrent readers.
type ObstacleIndex struct {
	grid   *Grid
	probes []r3.Vec
	layers []uint32
	cells  []CellHead
	nodes  []HashNode
}

// BuildObstacleIndex hashes every probe into its grid cell.
func BuildObstacleIndex(grid *Grid, probes []r3.Vec, opts IndexOptions) (*ObstacleIndex, error) {
	if grid == nil {
		return nil, ErrNilGrid
	}
	if opts.ExpectedCount >= 0 && opts.ExpectedCount != len(probes) {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrProbeCountMismatch, opts.ExpectedCount, len(probes))
	}
	if opts.Layers != nil && len(opts.Layers) != len(probes) {
		return nil, fmt.Errorf("%w: %d layers for %d probes", ErrLayerCountMismatch, len(opts.Layers), len(probes))
	}
	if len(probes) > math.MaxInt32 {
		return nil, fmt.Errorf("too many probes: %d", len(probes))
	}
	for i, p := range probes {
		if !finite(p) {
			return nil, fmt.Errorf("%w: probe %d at %v", ErrNonFiniteProbe, i, p)
		}
	}

	ix := &ObstacleIndex{
		grid:   grid,
		probes: append([]r3.Vec(nil), probes...),
		cells:  make([]CellHead, grid.TotalCells()),
		nodes:  make([]HashNode, len(probes)),
	}
	if opts.Layers != nil {
		ix.layers = append([]uint32(nil), opts.Layers...)
	} else {
		ix.layers = make([]uint32, len(probes))
		for i := range ix.layers {
			ix.layers[i] = DefaultLayer
		}
	}
	for i := range ix.cells {
		ix.cells[i] = CellHead{Usage: 0, Top: NoNode}
	}

	workers := opts.Workers
	if workers <= 1 || len(probes) < 2*workers {
		ix.linkRange(0, len(probes))
		return ix, nil
	}

	var g errgroup.Group
	chunk := (len(probes) + workers - 1) / workers
	for start := 0; start < len(probes); start += chunk {
		end := min(start+chunk, len(probes))
		g.Go(func() error {
			ix.linkRange(start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ix, nil
}

// linkRange pushes probes [start, end) onto their cell chains. The swap on
// Top is the only shared write; each node is written by its inserter alone.
func (ix *ObstacleIndex) linkRange(start, end int) {
	for i := start; i < end; i++ {
		c := int32(ix.grid.CellIndex(ix.probes[i]))
		head := &ix.cells[c]
		atomic.AddInt32(&head.Usage, 1)
		prev := atomic.SwapInt32(&head.Top, int32(i))
		ix.nodes[i] = HashNode{Cell: c, Next: prev}
	}
}

// Grid returns the grid the index was built on.
func (ix *ObstacleIndex) Grid() *Grid { return ix.grid }

// ProbeCount returns the number of indexed probes.
func (ix *ObstacleIndex) ProbeCount() int { return len(ix.probes) }

// Probe returns the position of probe i.
func (ix *ObstacleIndex) Probe(i int) r3.Vec { return ix.probes[i] }

// Layer returns the layer mask of probe i.
func (ix *ObstacleIndex) Layer(i int) uint32 { return ix.layers[i] }

// Usage returns the number of probes in a cell.
func (ix *ObstacleIndex) Usage(cell int) int32 { return ix.cells[cell].Usage }

// Top returns the chain head of a cell.
func (ix *ObstacleIndex) Top(cell int) int32 { return ix.cells[cell].Top }

// Node returns the chain node of probe i.
func (ix *ObstacleIndex) Node(i int) HashNode { return ix.nodes[i] }

// Cells returns the chain headers. Callers must not modify the slice.
func (ix *ObstacleIndex) Cells() []CellHead { return ix.cells }

// Nodes returns the chain nodes. Callers must not modify the slice.
func (ix *ObstacleIndex) Nodes() []HashNode { return ix.nodes }

// Probes returns the probe positions. Callers must not modify the slice.
func (ix *ObstacleIndex) Probes() []r3.Vec { return ix.probes }

// UsageCounts returns a copy of the per-cell usage.
func (ix *ObstacleIndex) UsageCounts() []int32 {
	out := make([]int32, len(ix.cells))
	for i, c := range ix.cells {
		out[i] = c.Usage
	}
	return out
}

// OccupiedCells returns the number of cells holding at least one probe.
func (ix *ObstacleIndex) OccupiedCells() int {
	n := 0
	for _, c := range ix.cells {
		if c.Usage > 0 {
			n++
		}
	}
	return n
}

// CellProbes walks one cell chain from Top to NoNode.
func (ix *ObstacleIndex) CellProbes(cell int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if cell < 0 || cell >= len(ix.cells) {
			return
		}
		for n := ix.cells[cell].Top; n != NoNode; n = ix.nodes[n].Next {
			if !yield(int(n)) {
				return
			}
		}
	}
}

// ProbesNear yields the probes within radius of p. The cells visited are
// the block around p's clamped cell wide enough to cover radius, which is
// the 3x3x3 neighbourhood whenever radius does not exceed the voxel size.
func (ix *ObstacleIndex) ProbesNear(p r3.Vec, radius float64) iter.Seq2[int, r3.Vec] {
	return func(yield func(int, r3.Vec) bool) {
		if ix == nil || len(ix.probes) == 0 || !(radius >= 0) {
			return
		}
		r2 := radius * radius
		ix.visitCells(p, radius, func(cell int) bool {
			for n := ix.cells[cell].Top; n != NoNode; n = ix.nodes[n].Next {
				q := ix.probes[n]
				if r3.Norm2(r3.Sub(q, p)) <= r2 {
					if !yield(int(n), q) {
						return false
					}
				}
			}
			return true
		})
	}
}

// visitCells calls fn for every cell in the block covering radius around p.
// It stops when fn returns false.
func (ix *ObstacleIndex) visitCells(p r3.Vec, radius float64, fn func(cell int) bool) {
	g := ix.grid
	span := g.cellSpan(radius)
	c := g.CellCoord(p)
	lo := CellCoord{max(c.X-span, 0), max(c.Y-span, 0), max(c.Z-span, 0)}
	hi := CellCoord{min(c.X+span, g.res[0]-1), min(c.Y+span, g.res[1]-1), min(c.Z+span, g.res[2]-1)}
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			base := y*g.res[0] + z*g.res[0]*g.res[1]
			for x := lo.X; x <= hi.X; x++ {
				cell := base + x
				if ix.cells[cell].Usage == 0 {
					continue
				}
				if !fn(cell) {
					return
				}
			}
		}
	}
}

func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
