package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxBucketAxis caps the bucket grid resolution per axis so a widely
// scattered flock cannot allocate an unbounded grid.
const maxBucketAxis = 128

// AgentBuckets bins agent records into cells at least one perception radius
// wide so neighbour queries only touch the surrounding 3x3x3 block. It is
// rebuilt from scratch every tick with a counting sort.
type AgentBuckets struct {
	min      r3.Vec
	cellSize float64
	inv      float64
	res      [3]int
	start    []int32 // len cells+1, prefix offsets into order
	order    []int32 // record indices grouped by cell
	cellOf   []int32
	fill     []int32 // per-cell write cursor
	valid    bool
}

// Rebuild bins the positions of records. It returns false, leaving the
// buckets unusable, when no useful binning exists (no radius, non-finite
// positions).
func (b *AgentBuckets) Rebuild(records []AgentRecord, radius float64) bool {
	b.valid = false
	if !(radius > 0) || len(records) == 0 {
		return false
	}

	lo := records[0].Position
	hi := lo
	for i := range records {
		p := records[i].Position
		if !finite(p) {
			return false
		}
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}

	size := radius
	span := r3.Sub(hi, lo)
	if m := math.Max(span.X, math.Max(span.Y, span.Z)); m/size > maxBucketAxis-1 {
		size = m / (maxBucketAxis - 1)
	}
	b.min = lo
	b.cellSize = size
	b.inv = 1 / size
	b.res = [3]int{
		int(span.X*b.inv) + 1,
		int(span.Y*b.inv) + 1,
		int(span.Z*b.inv) + 1,
	}
	cells := b.res[0] * b.res[1] * b.res[2]

	if cap(b.start) < cells+1 {
		b.start = make([]int32, cells+1)
	}
	b.start = b.start[:cells+1]
	clear(b.start)
	if cap(b.order) < len(records) {
		b.order = make([]int32, len(records))
		b.cellOf = make([]int32, len(records))
	}
	b.order = b.order[:len(records)]
	b.cellOf = b.cellOf[:len(records)]

	for i := range records {
		c := int32(b.index(b.coord(records[i].Position)))
		b.cellOf[i] = c
		b.start[c+1]++
	}
	for c := 1; c <= cells; c++ {
		b.start[c] += b.start[c-1]
	}
	if cap(b.fill) < cells {
		b.fill = make([]int32, cells)
	}
	b.fill = b.fill[:cells]
	clear(b.fill)
	for i, c := range b.cellOf {
		b.order[b.start[c]+b.fill[c]] = int32(i)
		b.fill[c]++
	}
	b.valid = true
	return true
}

// Valid reports whether the last Rebuild succeeded.
func (b *AgentBuckets) Valid() bool { return b != nil && b.valid }

func (b *AgentBuckets) coord(p r3.Vec) CellCoord {
	clampAxis := func(d float64, n int) int {
		i := int(d * b.inv)
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	return CellCoord{
		X: clampAxis(p.X-b.min.X, b.res[0]),
		Y: clampAxis(p.Y-b.min.Y, b.res[1]),
		Z: clampAxis(p.Z-b.min.Z, b.res[2]),
	}
}

func (b *AgentBuckets) index(c CellCoord) int {
	return c.X + c.Y*b.res[0] + c.Z*b.res[0]*b.res[1]
}

// forEachNear calls fn with every record index in the block around p.
// The caller filters by distance.
func (b *AgentBuckets) forEachNear(p r3.Vec, fn func(j int)) {
	c := b.coord(p)
	for z := max(c.Z-1, 0); z <= min(c.Z+1, b.res[2]-1); z++ {
		for y := max(c.Y-1, 0); y <= min(c.Y+1, b.res[1]-1); y++ {
			for x := max(c.X-1, 0); x <= min(c.X+1, b.res[0]-1); x++ {
				cell := b.index(CellCoord{x, y, z})
				for _, j := range b.order[b.start[cell]:b.start[cell+1]] {
					fn(int(j))
				}
			}
		}
	}
}
