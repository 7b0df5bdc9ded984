// Package partition implements the single permutation of row indices shared
// by every node of a tree (spec §3, §4.2). No algorithm in this codebase
// ever copies row data; everything operates on slices into one backing
// array.
package partition

// span is a node's half-open range [start, start+size) into the backing
// permutation.
type span struct {
	start, size int
}

// Partition owns one permutation of {0,...,N-1} and a set of per-node
// ranges into it.
type Partition struct {
	idx   []int
	spans []span
}

// New creates a partition whose root node owns the full given permutation.
// Passing a permutation with repeats (as produced by bootstrap sampling with
// replacement) is expected and supported.
func New(indices []int) *Partition {
	idx := make([]int, len(indices))
	copy(idx, indices)
	return &Partition{
		idx:   idx,
		spans: []span{{0, len(idx)}},
	}
}

// Refresh resets the partition for prediction: the root node owns all N
// rows in identity order, and K-1 further node slots are cleared for reuse.
func Refresh(n, k int) *Partition {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	spans := make([]span, k)
	if k > 0 {
		spans[0] = span{0, n}
	}
	return &Partition{idx: idx, spans: spans}
}

// Root returns the id of the root node, always 0.
func (p *Partition) Root() int { return 0 }

// IndicesOf returns the mutable slice of row indices owned by node. A
// strategy may permute it in place; it may not change its length.
func (p *Partition) IndicesOf(node int) []int {
	s := p.spans[node]
	return p.idx[s.start : s.start+s.size]
}

// Split records that node's range has been divided into a left prefix of
// size leftSize and a right suffix, and appends two new node ranges
// covering them. It returns the new nodes' ids. Split does not itself
// reorder p's backing array; the caller is expected to have already
// partitioned node's index slice in place.
func (p *Partition) Split(node int, leftSize int) (left, right int) {
	s := p.spans[node]
	leftSpan := span{s.start, leftSize}
	rightSpan := span{s.start + leftSize, s.size - leftSize}
	p.spans = append(p.spans, leftSpan, rightSpan)
	return len(p.spans) - 2, len(p.spans) - 1
}

// Alloc appends an empty node slot and returns its id.
func (p *Partition) Alloc() int {
	p.spans = append(p.spans, span{})
	return len(p.spans) - 1
}

// Assign sets node's range directly, used by the predictor to hand a
// traversal step's resulting child ranges back to the partition.
func (p *Partition) Assign(node, start, size int) {
	for len(p.spans) <= node {
		p.spans = append(p.spans, span{})
	}
	p.spans[node] = span{start, size}
}

// Size returns the number of rows currently owned by node.
func (p *Partition) Size(node int) int {
	return p.spans[node].size
}

// Start returns the backing-array offset of node's range, used by callers
// that partition a node's slice in place and need to Assign the resulting
// sub-ranges to specific child node ids.
func (p *Partition) Start(node int) int {
	return p.spans[node].start
}
