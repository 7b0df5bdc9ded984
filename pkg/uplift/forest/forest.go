// Package forest is the parallel random-forest driver (spec §4.7): it
// bootstraps row samples, grows one uplift tree per sample, and averages
// tree predictions. The worker layout mirrors the teacher's forest.go, but
// chunks jobs up front instead of streaming them through a channel so that
// assignment order is preserved across threads (spec §5).
package forest

import (
	"sync"

	"github.com/rakutentech/causalkit/internal/rng"
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/split"
	"github.com/rakutentech/causalkit/pkg/uplift/tree"
)

// Config holds the subset of the CLI-facing configuration the grower and
// the forest driver need directly.
type Config struct {
	NTree       int
	Subsample   float64
	NThread     int
	MaxFeatures int
	MaxDepth    int
	Seed        *int64
	Strategy    split.Params
}

// BinEntry is one column's fitted discretizer, tagged by kind so the model
// file can record which one it is without a type switch at call sites.
type BinEntry struct {
	Kind        binning.Kind
	Continuous  *binning.ContinuousDiscretizer
	Categorical *binning.CategoricalDiscretizer
}

// Forest is the trained ensemble: configuration, a bin catalog keyed by
// column name, and an ordered, independent list of trees (spec §3).
type Forest struct {
	Config       Config
	IsRegression bool
	Bins         map[string]BinEntry
	FeatureOrder []string // matrix column order; Bins alone doesn't preserve it
	Trees        []*tree.Tree
}

// splitChunks divides total jobs into parts roughly equal chunks, handing
// the remainder to the first chunks (spec §4.7).
func splitChunks(total, parts int) []int {
	if parts < 1 {
		parts = 1
	}
	if parts > total {
		parts = total
	}
	if parts == 0 {
		return nil
	}
	base := total / parts
	rem := total % parts
	chunks := make([]int, parts)
	for i := range chunks {
		chunks[i] = base
		if i < rem {
			chunks[i]++
		}
	}
	return chunks
}

func bootstrapSample(n, k int, r *rng.Shared) []int {
	s := make([]int, k)
	for i := range s {
		s[i] = r.Intn(n)
	}
	return s
}

// Fit trains cfg.NTree independent trees over m, distributing them across
// cfg.NThread workers as contiguous chunks (spec §4.7, §5).
func Fit(m *matrix.Matrix, cfg Config, isRegression bool) (*Forest, error) {
	var strat split.Strategy
	if isRegression {
		strat = split.RegressionStrategy{}
	} else {
		strat = split.KLStrategy{}
	}

	r := rng.New(cfg.Seed)

	k := int(float64(m.N) * cfg.Subsample)
	if k < 1 {
		k = 1
	}

	trees := make([]*tree.Tree, cfg.NTree)
	errs := make([]error, cfg.NTree)

	chunks := splitChunks(cfg.NTree, cfg.NThread)
	var wg sync.WaitGroup
	offset := 0
	for _, size := range chunks {
		start := offset
		offset += size
		wg.Add(1)
		go func(start, size int) {
			defer wg.Done()
			for i := 0; i < size; i++ {
				sample := bootstrapSample(m.N, k, r)
				t, err := tree.Grow(m, sample, strat, cfg.Strategy, cfg.MaxFeatures, cfg.MaxDepth, r)
				if err != nil {
					errs[start+i] = err
					continue
				}
				trees[start+i] = t
			}
		}(start, size)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &Forest{Config: cfg, IsRegression: isRegression, Trees: trees}, nil
}

// Predict runs every tree over m and returns the element-wise mean of their
// per-row uplift vectors (spec §4.7).
func (f *Forest) Predict(m *matrix.Matrix) [][]float64 {
	perTree := make([][][]float64, len(f.Trees))

	chunks := splitChunks(len(f.Trees), f.Config.NThread)
	var wg sync.WaitGroup
	offset := 0
	for _, size := range chunks {
		start := offset
		offset += size
		wg.Add(1)
		go func(start, size int) {
			defer wg.Done()
			for i := 0; i < size; i++ {
				perTree[start+i] = f.Trees[start+i].Predict(m)
			}
		}(start, size)
	}
	wg.Wait()

	nTreat := 0
	for _, result := range perTree {
		for _, vec := range result {
			if vec != nil {
				nTreat = len(vec)
				break
			}
		}
		if nTreat > 0 {
			break
		}
	}

	out := make([][]float64, m.N)
	for i := range out {
		out[i] = make([]float64, nTreat)
	}

	for _, result := range perTree {
		for row, vec := range result {
			for t, v := range vec {
				out[row][t] += v
			}
		}
	}

	nt := float64(len(f.Trees))
	if nt == 0 {
		nt = 1
	}
	for i := range out {
		for t := range out[i] {
			out[i][t] /= nt
		}
	}

	return out
}
