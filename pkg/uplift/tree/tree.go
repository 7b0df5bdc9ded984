// Package tree grows and evaluates a single uplift decision tree,
// coordinating an index partition.Partition with a split.Strategy exactly
// the way the teacher's tree/build.go coordinates a splitter with a valuer
// (spec §4.6). Growth uses an explicit work stack rather than recursion, per
// spec §9's recommendation for bounding goroutine stack depth.
package tree

import (
	"github.com/rakutentech/causalkit/internal/kerrors"
	"github.com/rakutentech/causalkit/internal/rng"
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/partition"
	"github.com/rakutentech/causalkit/pkg/uplift/split"
)

// Node is one arena slot (spec §3). Left/Right are -1 for a leaf; otherwise
// both are set and are strictly greater than the node's own index.
type Node struct {
	Depth int             `json:"depth"`
	Left  int             `json:"left"`
	Right int             `json:"right"`
	Split split.SplitInfo `json:"split"`
}

func (n Node) isLeaf() bool { return n.Left < 0 }

// Tree is an arena of nodes; the root is always index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) alloc(depth int) int {
	t.Nodes = append(t.Nodes, Node{Depth: depth, Left: -1, Right: -1})
	return len(t.Nodes) - 1
}

type work struct {
	node  int
	depth int
}

// Grow builds a tree over the given row sample (a permutation, possibly with
// repeats from bootstrap sampling) using strat to score candidate splits at
// every node.
func Grow(m *matrix.Matrix, sample []int, strat split.Strategy, params split.Params, maxFeatures, maxDepth int, r *rng.Shared) (*Tree, error) {
	if len(sample) == 0 {
		return nil, kerrors.New(kerrors.Invariant, "tree.Grow", errEmptySample)
	}

	part := partition.New(sample)
	t := &Tree{Nodes: []Node{{Depth: 0, Left: -1, Right: -1}}}

	nFeature := len(m.Features)
	k := maxFeatures
	if k > nFeature {
		k = nFeature
	}

	stack := []work{{node: part.Root(), depth: 0}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx := part.IndicesOf(w.node)
		if len(idx) == 0 {
			return nil, kerrors.New(kerrors.Invariant, "tree.Grow", errEmptySample)
		}

		perm := r.Perm(nFeature)
		features := perm[:k]

		var best split.SplitInfo
		haveBest := false
		for _, fid := range features {
			si := strat.Best(m, idx, w.node, fid, params)
			if !haveBest {
				best = si
				haveBest = true
				continue
			}
			if !si.IsLeaf() && (best.IsLeaf() || si.Gain > best.Gain) {
				best = si
			}
		}

		t.Nodes[w.node].Split = best

		if best.IsLeaf() || w.depth >= maxDepth {
			continue
		}

		leftSize := partitionInPlace(m.Features[best.FeatureID], idx, best.IsCat, best.Value[0])
		if leftSize == 0 || leftSize == len(idx) {
			// No row actually crosses the chosen boundary; treat as a
			// leaf rather than manufacture a degenerate empty child.
			t.Nodes[w.node].Split = split.SplitInfo{
				NodeID: w.node, FeatureID: best.FeatureID, IsCat: best.IsCat, Summary: best.Summary,
			}
			continue
		}

		left, right := part.Split(w.node, leftSize)
		leftNode := t.alloc(w.depth + 1)
		rightNode := t.alloc(w.depth + 1)
		if leftNode != left || rightNode != right {
			return nil, kerrors.New(kerrors.Invariant, "tree.Grow", errArenaDesync)
		}

		t.Nodes[w.node].Left = left
		t.Nodes[w.node].Right = right

		stack = append(stack, work{node: right, depth: w.depth + 1})
		stack = append(stack, work{node: left, depth: w.depth + 1})
	}

	return t, nil
}

// partitionInPlace implements spec §4.6 step 6: rows matching the split
// predicate move to the left prefix of idx, in place, and the prefix length
// is returned. Missing always fails the predicate (goes right).
func partitionInPlace(f matrix.Feature, idx []int, isCat bool, threshold binning.Bin) int {
	left := 0
	for right := 0; right < len(idx); right++ {
		row := idx[right]
		code := f.Codes[row]

		var goLeft bool
		if isCat {
			goLeft = code == threshold
		} else {
			goLeft = code != binning.Missing && code <= threshold
		}

		if goLeft {
			idx[left], idx[right] = idx[right], idx[left]
			left++
		}
	}
	return left
}

// Predict resets the tree's working partition to identity and walks every
// row from the root to its leaf, emitting that leaf's per-treatment uplift
// vector (spec §4.6, prediction).
func (t *Tree) Predict(m *matrix.Matrix) [][]float64 {
	part := partition.Refresh(m.N, len(t.Nodes))
	out := make([][]float64, m.N)

	stack := []int{part.Root()}
	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.Nodes[nodeID]
		idx := part.IndicesOf(nodeID)
		if len(idx) == 0 {
			continue
		}

		if node.isLeaf() {
			vec := upliftVector(node.Split.Summary)
			for _, row := range idx {
				out[row] = vec
			}
			continue
		}

		f := m.Features[node.Split.FeatureID]
		leftSize := partitionInPlace(f, idx, node.Split.IsCat, node.Split.Value[0])
		start := part.Start(nodeID)
		part.Assign(node.Left, start, leftSize)
		part.Assign(node.Right, start+leftSize, len(idx)-leftSize)

		stack = append(stack, node.Right, node.Left)
	}

	return out
}

// upliftVector derives (stat_t - stat_0) for every treatment group from a
// leaf's Summary, with the control entry itself fixed at 0.
func upliftVector(summary [][]float64) []float64 {
	vec := make([]float64, len(summary))
	if len(summary) == 0 {
		return vec
	}
	base := summary[0][0]
	for t := range summary {
		vec[t] = summary[t][0] - base
	}
	return vec
}
