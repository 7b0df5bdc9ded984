package tree

import (
	"math"
	"testing"

	"github.com/rakutentech/causalkit/internal/rng"
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/split"
)

// heterogeneousUpliftMatrix builds a 200-row dataset where the feature
// carries real uplift heterogeneity: feature=0 has identical conversion
// across treatment groups (no effect), feature=1 has a strong effect
// (0.2 control vs. 0.8 treated). A pure confounder that only shifts the
// base conversion rate without shifting it differently per treatment group
// carries no KL-uplift signal at all (by construction p_t == p_0 on both
// sides of such a split), so scoring one directly should show the KL
// strategy refusing to manufacture a split (TestKLRefusesPureConfounder);
// this dataset is the contrasting case where a split is actually justified.
func heterogeneousUpliftMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()

	var codes []binning.Bin
	var treat []int
	var y []float64
	// feature=0: p(y=1) = 0.2 for both treatment groups.
	for tr := 0; tr < 2; tr++ {
		for i := 0; i < 50; i++ {
			codes = append(codes, 0)
			treat = append(treat, tr)
			yy := 0.0
			if i < 10 {
				yy = 1.0
			}
			y = append(y, yy)
		}
	}
	// feature=1: p(y=1) = 0.2 control, 0.8 treated.
	for tr := 0; tr < 2; tr++ {
		for i := 0; i < 50; i++ {
			codes = append(codes, 1)
			treat = append(treat, tr)
			pos := 10
			if tr == 1 {
				pos = 40
			}
			yy := 0.0
			if i < pos {
				yy = 1.0
			}
			y = append(y, yy)
		}
	}

	f := matrix.Feature{Name: "x", IsCat: true, NBin: 2, Codes: codes}
	m, err := matrix.New([]matrix.Feature{f}, y, [][]int{treat}, nil)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}
	return m
}

func TestGrowKLSplitsOnHeterogeneousUplift(t *testing.T) {
	m := heterogeneousUpliftMatrix(t)
	sample := make([]int, m.N)
	for i := range sample {
		sample[i] = i
	}

	params := split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 10, Alpha: 0.9, Normalization: false}
	tr, err := Grow(m, sample, split.KLStrategy{}, params, 1, 1, rng.New(nil))
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	root := tr.Nodes[0]
	if root.isLeaf() {
		t.Fatal("expected the root to split: one side carries uplift, the other doesn't")
	}
	if root.Split.FeatureID != 0 || !root.Split.IsCat {
		t.Fatalf("unexpected split feature: %+v", root.Split)
	}
	if root.Split.Gain <= 0 {
		t.Fatalf("expected positive gain, got %v", root.Split.Gain)
	}

	var noEffectUplift, strongUplift float64
	for _, childID := range []int{root.Left, root.Right} {
		leaf := tr.Nodes[childID]
		summary := leaf.Split.Summary
		if len(summary) < 2 {
			t.Fatalf("leaf %d: expected a per-treatment summary, got %v", childID, summary)
		}
		uplift := summary[1][0] - summary[0][0]
		if math.Abs(uplift) < 0.3 {
			noEffectUplift = uplift
		} else {
			strongUplift = uplift
		}
	}
	if math.Abs(noEffectUplift) > 0.1 {
		t.Errorf("no-effect leaf uplift = %v, want ~0", noEffectUplift)
	}
	if math.Abs(strongUplift-0.6) > 0.1 {
		t.Errorf("strong-effect leaf uplift = %v, want ~0.6", strongUplift)
	}
}

func TestKLRefusesPureConfounder(t *testing.T) {
	// feature shifts the base rate (0.2 vs 0.8) but identically across
	// both treatment groups: no real uplift signal exists to find.
	var codes []binning.Bin
	var treat []int
	var y []float64
	for block := 0; block < 2; block++ {
		pos := 10
		if block == 1 {
			pos = 40
		}
		for tr := 0; tr < 2; tr++ {
			for i := 0; i < 50; i++ {
				codes = append(codes, binning.Bin(block))
				treat = append(treat, tr)
				yy := 0.0
				if i < pos {
					yy = 1.0
				}
				y = append(y, yy)
			}
		}
	}
	f := matrix.Feature{Name: "x", IsCat: true, NBin: 2, Codes: codes}
	m, err := matrix.New([]matrix.Feature{f}, y, [][]int{treat}, nil)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}

	idx := make([]int, m.N)
	for i := range idx {
		idx[i] = i
	}
	params := split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 10, Alpha: 0.9, Normalization: false}
	best := split.KLStrategy{}.Best(m, idx, 0, 0, params)
	if best.Gain > 1e-6 {
		t.Errorf("expected ~0 gain for a pure confounder, got %v", best.Gain)
	}
}

// regressionUpliftMatrix builds spec §8 scenario 5: treated mean 2.0,
// control mean 1.0, independent of any feature.
func regressionUpliftMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()

	n := 200
	var codes []binning.Bin
	var treat []int
	var y []float64
	for i := 0; i < n; i++ {
		tr := i % 2
		codes = append(codes, binning.Bin(i%3))
		treat = append(treat, tr)
		if tr == 1 {
			y = append(y, 2.0)
		} else {
			y = append(y, 1.0)
		}
	}

	f := matrix.Feature{Name: "x", IsCat: true, NBin: 3, Codes: codes}
	m, err := matrix.New([]matrix.Feature{f}, y, [][]int{treat}, nil)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}
	return m
}

func TestGrowRegressionUpliftSign(t *testing.T) {
	m := regressionUpliftMatrix(t)
	sample := make([]int, m.N)
	for i := range sample {
		sample[i] = i
	}

	params := split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, Alpha: 0.1}
	tr, err := Grow(m, sample, split.RegressionStrategy{}, params, 1, 0, rng.New(nil))
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	root := tr.Nodes[0]
	if !root.isLeaf() {
		t.Fatal("expected a leaf at max_depth=0")
	}
	summary := root.Split.Summary
	if len(summary) != 2 {
		t.Fatalf("expected a 2-group summary, got %v", summary)
	}
	uplift := summary[1][0] - summary[0][0]
	if math.Abs(uplift-1.0) > 0.1 {
		t.Errorf("root uplift = %v, want ~1.0 (±0.1)", uplift)
	}
}

// ancestorSmoothingMatrix builds a three-category dataset that forces a
// depth-2 tree: category 0 is the largest, zero-uplift group and gets
// peeled off at the root; the remaining two categories carry distinct,
// large uplifts and are separated from each other one level down. The
// pooled depth-1 node's own raw statistics work out to exact fractions
// (p_control=0.05, p_treated=0.75), so its persisted Summary can be
// checked without tolerance for any smoothing towards the root.
func ancestorSmoothingMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()

	type group struct {
		code                   binning.Bin
		nControl, nTreated     int
		posControl, posTreated int
	}
	groups := []group{
		{0, 100, 100, 5, 5},  // no effect, large pool
		{1, 20, 20, 1, 19},   // strong effect
		{2, 20, 20, 1, 11},   // moderate effect
	}

	var codes []binning.Bin
	var treat []int
	var y []float64
	for _, g := range groups {
		for i := 0; i < g.nControl; i++ {
			codes = append(codes, g.code)
			treat = append(treat, 0)
			yy := 0.0
			if i < g.posControl {
				yy = 1.0
			}
			y = append(y, yy)
		}
		for i := 0; i < g.nTreated; i++ {
			codes = append(codes, g.code)
			treat = append(treat, 1)
			yy := 0.0
			if i < g.posTreated {
				yy = 1.0
			}
			y = append(y, yy)
		}
	}

	f := matrix.Feature{Name: "x", IsCat: true, NBin: 3, Codes: codes}
	m, err := matrix.New([]matrix.Feature{f}, y, [][]int{treat}, nil)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}
	return m
}

// TestKLSummaryIsRawNotAncestorSmoothed grows a depth-2 tree and checks that
// an internal node's own persisted Summary is always its own raw
// per-treatment MLE, never blended towards an ancestor's summary
// (original_source/src/kl.rs:75 calls count_reg with &None unconditionally,
// regardless of depth). A large n_reg (1000) makes the two designs diverge
// sharply: ancestor-chained smoothing would drag the depth-1 node's treated
// probability from its true 0.75 down towards the root's own pooled 0.25,
// roughly (30+0.25*1000)/(40+1000) ≈ 0.27; this reports the node's own 0.75
// untouched.
func TestKLSummaryIsRawNotAncestorSmoothed(t *testing.T) {
	m := ancestorSmoothingMatrix(t)
	sample := make([]int, m.N)
	for i := range sample {
		sample[i] = i
	}

	params := split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 1000, Alpha: 0.9, Normalization: false}
	tr, err := Grow(m, sample, split.KLStrategy{}, params, 1, 2, rng.New(nil))
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	root := tr.Nodes[0]
	if root.isLeaf() {
		t.Fatal("expected the root to split off the large zero-effect category")
	}
	if root.Split.Value[0] != 0 {
		t.Fatalf("expected the root to isolate category 0, got %+v", root.Split)
	}

	left := tr.Nodes[root.Left]
	if !left.isLeaf() {
		t.Error("expected the isolated zero-effect category to be a pure leaf")
	}

	pooled := tr.Nodes[root.Right]
	if pooled.isLeaf() {
		t.Fatal("expected the pooled category-1/2 node to split again")
	}
	if len(pooled.Split.Summary) != 2 {
		t.Fatalf("expected a 2-treatment summary, got %v", pooled.Split.Summary)
	}
	gotControl := pooled.Split.Summary[0][0]
	gotTreated := pooled.Split.Summary[1][0]
	if math.Abs(gotControl-0.05) > 1e-9 {
		t.Errorf("pooled node control probability = %v, want exactly 0.05 (raw, unsmoothed)", gotControl)
	}
	if math.Abs(gotTreated-0.75) > 1e-9 {
		t.Errorf("pooled node treated probability = %v, want exactly 0.75 (raw, unsmoothed); "+
			"ancestor-chained smoothing with n_reg=1000 would have reported ~0.27", gotTreated)
	}

	grandLeft := tr.Nodes[pooled.Left]
	grandRight := tr.Nodes[pooled.Right]
	if !grandLeft.isLeaf() || !grandRight.isLeaf() {
		t.Fatal("expected both depth-2 children to be leaves")
	}
}

func TestPredictMatchesTrainingLeaves(t *testing.T) {
	m := heterogeneousUpliftMatrix(t)
	sample := make([]int, m.N)
	for i := range sample {
		sample[i] = i
	}
	params := split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 10, Alpha: 0.9}
	tr, err := Grow(m, sample, split.KLStrategy{}, params, 1, 1, rng.New(nil))
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	preds := tr.Predict(m)
	if len(preds) != m.N {
		t.Fatalf("expected %d predictions, got %d", m.N, len(preds))
	}
	for i, vec := range preds {
		if vec == nil {
			t.Fatalf("row %d: missing prediction", i)
		}
	}
}
