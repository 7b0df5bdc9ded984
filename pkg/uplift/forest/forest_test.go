package forest

import (
	"reflect"
	"testing"

	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/split"
)

func TestSplitChunksDistributesRemainderFirst(t *testing.T) {
	got := splitChunks(10, 3)
	want := []int{4, 3, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitChunks(10,3) = %v, want %v", got, want)
	}
}

func TestSplitChunksCapsPartsAtTotal(t *testing.T) {
	got := splitChunks(2, 5)
	if len(got) != 2 {
		t.Fatalf("expected at most 2 chunks for 2 jobs, got %v", got)
	}
}

func buildForestMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	var codes []binning.Bin
	var treat []int
	var y []float64
	for tr := 0; tr < 2; tr++ {
		for i := 0; i < 40; i++ {
			codes = append(codes, binning.Bin(i%3))
			treat = append(treat, tr)
			yy := 0.0
			if tr == 1 && i%3 == 1 {
				yy = 1.0
			} else if i%2 == 0 {
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

func TestFitSingleThreadDeterministic(t *testing.T) {
	m := buildForestMatrix(t)
	seed := int64(42)
	cfg := Config{
		NTree: 5, Subsample: 1.0, NThread: 1, MaxFeatures: 1, MaxDepth: 2, Seed: &seed,
		Strategy: split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 5, Alpha: 0.9},
	}

	f1, err := Fit(m, cfg, false)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	f2, err := Fit(m, cfg, false)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	p1 := f1.Predict(m)
	p2 := f2.Predict(m)
	if !reflect.DeepEqual(p1, p2) {
		t.Fatalf("expected identical predictions from two single-threaded fits with the same seed")
	}
}

func TestFitProducesRequestedTreeCount(t *testing.T) {
	m := buildForestMatrix(t)
	seed := int64(7)
	cfg := Config{
		NTree: 6, Subsample: 0.5, NThread: 3, MaxFeatures: 1, MaxDepth: 2, Seed: &seed,
		Strategy: split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 5, Alpha: 0.9},
	}
	f, err := Fit(m, cfg, false)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(f.Trees) != cfg.NTree {
		t.Fatalf("got %d trees, want %d", len(f.Trees), cfg.NTree)
	}
	for i, tr := range f.Trees {
		if tr == nil {
			t.Errorf("tree %d is nil", i)
		}
	}
}

func TestPredictAveragesAcrossTrees(t *testing.T) {
	m := buildForestMatrix(t)
	seed := int64(11)
	cfg := Config{
		NTree: 4, Subsample: 1.0, NThread: 2, MaxFeatures: 1, MaxDepth: 2, Seed: &seed,
		Strategy: split.Params{MinSamplesLeaf: 1, MinSamplesTreatment: 1, NReg: 5, Alpha: 0.9},
	}
	f, err := Fit(m, cfg, false)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	preds := f.Predict(m)
	if len(preds) != m.N {
		t.Fatalf("got %d prediction rows, want %d", len(preds), m.N)
	}
	for i, vec := range preds {
		if len(vec) == 0 {
			t.Fatalf("row %d: empty prediction vector", i)
		}
	}
}
