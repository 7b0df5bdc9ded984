// Package matrix holds the columnar training matrix shared read-only across
// every tree of a forest (spec §3, §4.2).
package matrix

import (
	"github.com/rakutentech/causalkit/internal/kerrors"
	"github.com/rakutentech/causalkit/pkg/binning"
)

// Feature is one column of binned values plus the metadata needed to
// interpret and serialize it.
type Feature struct {
	Name  string
	IsCat bool
	NBin  int // number of non-missing bin codes, i.e. valid codes are [0, NBin)
	Codes []binning.Bin
}

// Matrix is the column-major container fed to every node of every tree.
// It is built fresh per train/predict call and is read-only thereafter.
type Matrix struct {
	Features  []Feature
	featureID map[string]int

	Response  []float64 // y
	Treatment [][]int   // one slice per configured treatment column; only column 0 is consulted during split search
	Weight    []float64 // defaults to 1.0 per row

	N int
}

// New validates that every column has length N and builds the matrix.
func New(features []Feature, response []float64, treatment [][]int, weight []float64) (*Matrix, error) {
	n := len(response)

	for _, f := range features {
		if len(f.Codes) != n {
			return nil, kerrors.Newf(kerrors.Invariant, "matrix.New", "feature %q has %d rows, want %d", f.Name, len(f.Codes), n)
		}
	}
	for i, t := range treatment {
		if len(t) != n {
			return nil, kerrors.Newf(kerrors.Invariant, "matrix.New", "treatment column %d has %d rows, want %d", i, len(t), n)
		}
	}

	if weight == nil {
		weight = make([]float64, n)
		for i := range weight {
			weight[i] = 1.0
		}
	} else if len(weight) != n {
		return nil, kerrors.Newf(kerrors.Invariant, "matrix.New", "weight column has %d rows, want %d", len(weight), n)
	}

	m := &Matrix{
		Features:  features,
		featureID: make(map[string]int, len(features)),
		Response:  response,
		Treatment: treatment,
		Weight:    weight,
		N:         n,
	}
	for i, f := range features {
		m.featureID[f.Name] = i
	}

	return m, nil
}

// FeatureID returns the column index for name, or -1 if absent.
func (m *Matrix) FeatureID(name string) int {
	if id, ok := m.featureID[name]; ok {
		return id
	}
	return -1
}

// NumTreatments reports how many treatment groups the first treatment column
// holds: its largest code plus one (0 when no treatment column was loaded).
func (m *Matrix) NumTreatments() int {
	if len(m.Treatment) == 0 {
		return 0
	}
	max := 0
	for _, v := range m.Treatment[0] {
		if v+1 > max {
			max = v + 1
		}
	}
	return max
}
