package stn

import (
	"math"
	"sync"

	"github.com/htnkit/corestn/corerr"
)

// parallelThreshold is the timepoint count past which Close fans the inner
// relaxation of each k iteration out across goroutines. For a fixed k the
// updates to row i read only d[i][k] and row k, so rows can relax
// independently and the result is identical to the sequential pass.
const parallelThreshold = 256

// Close runs Floyd-Warshall-style propagation over the bounds matrix and
// returns the closed network without mutating s. A closed network is
// consistent iff no self bound (i,i) falls entirely below zero (a negative
// self-cycle); micro-ranges like (-1,1) straddle zero and are not flagged.
//
// Close recomputes the full O(n^3) closure. Callers that hold a Closed and
// add one constraint should use Closed.Tighten, which restores closure in
// O(n^2) by propagating only paths through the new edge.
func (s *STN) Close() *Closed {
	tps := s.Timepoints()
	n := len(tps)
	idx := make(map[Timepoint]int, n)
	for i, tp := range tps {
		idx[tp] = i
	}

	d := make([][]Bound, n)
	for i := range d {
		d[i] = make([]Bound, n)
		for j := range d[i] {
			if i == j {
				d[i][j] = Bound{Lower: 0, Upper: 0}
			} else {
				d[i][j] = Inf()
			}
		}
	}
	for e, b := range s.constraints {
		i, j := idx[e.i], idx[e.j]
		d[i][j] = Intersect(d[i][j], b)
		// A stored (i,j)->(lower,upper) implies the reverse bound
		// (j,i)->(-upper,-lower): lower <= time(j)-time(i) <= upper is the
		// same fact as -upper <= time(i)-time(j) <= -lower. AddConstraint
		// only ever stores one direction, so without seeding the reverse
		// here any query against a timepoint reachable only backwards from
		// the pinned node (the common case: a lone interval's end sorts
		// before its start) finds no edge and wrongly reports Inf().
		d[j][i] = Intersect(d[j][i], Bound{Lower: -b.Upper, Upper: -b.Lower})
	}

	for k := 0; k < n; k++ {
		if n >= parallelThreshold {
			relaxParallel(d, k, n)
		} else {
			for i := 0; i < n; i++ {
				relaxRow(d, i, k, n)
			}
		}
	}

	return &Closed{timepoints: tps, idx: idx, dist: d}
}

// relaxRow applies the k-pivot relaxation to row i.
func relaxRow(d [][]Bound, i, k, n int) {
	if math.IsInf(d[i][k].Lower, -1) && math.IsInf(d[i][k].Upper, 1) {
		return
	}
	for j := 0; j < n; j++ {
		if !Composable(d[i][k], d[k][j]) {
			continue
		}
		via := Compose(d[i][k], d[k][j])
		d[i][j] = Intersect(d[i][j], via)
	}
}

// relaxParallel fans the rows of one k iteration out across goroutines. Row k
// is relaxed up front: every other row only reads row k and writes its own,
// so once row k is stable the remaining rows are independent and the outcome
// matches the sequential order exactly.
func relaxParallel(d [][]Bound, k, n int) {
	relaxRow(d, k, k, n)
	var wg sync.WaitGroup
	const chunk = 64
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if i == k {
					continue
				}
				relaxRow(d, i, k, n)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// Closed is the all-pairs closed distance matrix produced by Close.
type Closed struct {
	timepoints []Timepoint
	idx        map[Timepoint]int
	dist       [][]Bound
}

// Consistent reports whether the closure contains no negative self-cycle:
// every self bound (i,i) must not have Upper < 0.
func (c *Closed) Consistent() bool {
	for i := range c.timepoints {
		if c.dist[i][i].Upper < 0 {
			return false
		}
	}
	return true
}

// OffendingCycle returns the first timepoint whose self bound witnesses a
// negative self-cycle, and ok=true if one exists.
func (c *Closed) OffendingCycle() (Timepoint, bool) {
	for i, tp := range c.timepoints {
		if c.dist[i][i].Upper < 0 {
			return tp, true
		}
	}
	return "", false
}

// Distance returns the closed bound between i and j.
func (c *Closed) Distance(i, j Timepoint) Bound {
	ii, okI := c.idx[i]
	jj, okJ := c.idx[j]
	if !okI || !okJ {
		return Inf()
	}
	return c.dist[ii][jj]
}

// Tighten is the incremental mode: it returns a new Closed with the
// bound on (i, j) intersected with b and closure restored by re-closing only
// the edges affected by the new constraint, in O(n^2) rather than a full
// O(n^3) pass. Both timepoints must already be in the closure; a constraint
// touching a fresh timepoint needs a full Close. The receiver is not
// mutated. Tighten never raises: an inconsistent result is detectable on the
// returned Closed via Consistent/OffendingCycle.
func (c *Closed) Tighten(i, j Timepoint, b Bound) (*Closed, error) {
	if b.Empty() {
		return nil, corerr.Newf(corerr.STNInconsistent, "tightening (%s,%s) with empty bound (%v,%v)", i, j, b.Lower, b.Upper)
	}
	a, okA := c.idx[i]
	z, okZ := c.idx[j]
	if !okA || !okZ {
		return nil, corerr.Newf(corerr.InvalidInput, "tighten references unknown timepoint (%s,%s); run a full Close", i, j)
	}

	n := len(c.timepoints)
	d := make([][]Bound, n)
	for x := range d {
		d[x] = make([]Bound, n)
		copy(d[x], c.dist[x])
	}
	d[a][z] = Intersect(d[a][z], b)
	d[z][a] = Intersect(d[z][a], Bound{Lower: -b.Upper, Upper: -b.Lower})

	// Every path improved by the new edge factors as x -> a -> z -> y (or the
	// reverse); since d was already closed, one pass over all (x, y) pairs
	// through both pivots restores closure.
	through := d[a][z]
	reverse := d[z][a]
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			if Composable(d[x][a], through) {
				if via := Compose(d[x][a], through); Composable(via, d[z][y]) {
					d[x][y] = Intersect(d[x][y], Compose(via, d[z][y]))
				}
			}
			if Composable(d[x][z], reverse) {
				if via := Compose(d[x][z], reverse); Composable(via, d[a][y]) {
					d[x][y] = Intersect(d[x][y], Compose(via, d[a][y]))
				}
			}
		}
	}

	return &Closed{timepoints: c.timepoints, idx: c.idx, dist: d}, nil
}

// IsConsistent runs full propagation and reports whether the network is
// consistent. It also records the tri-state result on s.Consistent.
func (s *STN) IsConsistent() bool {
	closed := s.Close()
	ok := closed.Consistent()
	s.Consistent = &ok
	return ok
}
