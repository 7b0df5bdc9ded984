// Package binning discretizes raw feature values into small integer bin
// codes. A Discretizer is fit once per feature and then reused verbatim for
// every later training or prediction pass over that feature.
package binning

import (
	"math"
	"sort"

	"github.com/rakutentech/causalkit/internal/kerrors"
)

// Bin is a small unsigned bin code. Its capacity bounds the number of
// distinct codes a discretizer may emit.
type Bin uint8

// MaxBinRange is the capacity of Bin; a fitted discretizer's NBin must stay
// strictly below it so the reserved Missing code never collides with a real
// bin code.
const MaxBinRange = 256

// Missing is the reserved code for absent inputs.
const Missing Bin = 255

// epsilon guards float comparisons against platform rounding noise, mirroring
// the small additive constants used throughout the split-scoring formulas.
const epsilon = 1e-7

// Kind distinguishes the two discretizer flavors carried by a fitted Matrix
// column, and is also the tag recorded verbatim in the model file.
type Kind int

const (
	Continuous Kind = iota
	Discrete
)

func (k Kind) String() string {
	if k == Discrete {
		return "Discrete"
	}
	return "Continuous"
}

// ContinuousDiscretizer maps ordered float values to bin codes using a set of
// strictly increasing thresholds. NaN denotes a missing input.
type ContinuousDiscretizer struct {
	NBin       int       `json:"n_bin"`
	Thresholds []float64 `json:"thresholds"`
}

// FitContinuous fits a discretizer targeting nBin bins from the present
// (non-NaN) values in x. See spec §4.1: thresholds are picked at roughly
// even quantile boundaries and deduplicated so codes stay strictly ordered.
func FitContinuous(x []float64, nBin int) (*ContinuousDiscretizer, error) {
	present := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	sort.Float64s(present)

	V := len(present)
	d := &ContinuousDiscretizer{}

	if V == 0 || nBin <= 1 {
		d.NBin = 1
		return d, nil
	}

	B := V / nBin
	if B < 1 {
		B = 1
	}

	var thresholds []float64
	for i := 1; i < nBin; i++ {
		k := i * B
		if k >= V {
			break
		}
		for k < V-1 && !(present[k] < present[k+1]-epsilon) {
			k++
		}
		if k >= V {
			k = V - 1
		}
		candidate := present[k]
		if len(thresholds) == 0 || candidate > thresholds[len(thresholds)-1]+epsilon {
			thresholds = append(thresholds, candidate)
		}
	}

	d.Thresholds = thresholds
	d.NBin = len(thresholds) + 1

	if d.NBin >= MaxBinRange {
		return nil, kerrors.Newf(kerrors.Config, "binning", "continuous discretizer produced %d bins, exceeds capacity %d", d.NBin, MaxBinRange)
	}

	return d, nil
}

// Map returns the bin code for a single value; NaN maps to Missing.
func (d *ContinuousDiscretizer) Map(x float64) Bin {
	if math.IsNaN(x) {
		return Missing
	}
	// thresholds are strictly increasing; code = count of thresholds <= x
	lo, hi := 0, len(d.Thresholds)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.Thresholds[mid] <= x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return Bin(lo)
}

// MapAll maps every value in x, returning a slice of bin codes.
func (d *ContinuousDiscretizer) MapAll(x []float64) []Bin {
	out := make([]Bin, len(x))
	for i, v := range x {
		out[i] = d.Map(v)
	}
	return out
}

// CategoricalDiscretizer maps raw string categories to bin codes, ordered by
// decreasing observed frequency. An empty string denotes a missing input.
type CategoricalDiscretizer struct {
	NBin     int            `json:"n_bin"`
	Overflow bool           `json:"overflow"`
	Order    []string       `json:"order"`
	index    map[string]int // derived from Order; not serialized
}

// FitCategorical fits a discretizer from the observed (non-empty) categories
// in x. See spec §4.1: ties broken by order of first appearance.
func FitCategorical(x []string) *CategoricalDiscretizer {
	counts := make(map[string]int)
	var order []string
	for _, v := range x {
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	overflow := false
	if len(order) > MaxBinRange-1 {
		order = order[:MaxBinRange-1]
		overflow = true
	}

	nBin := len(order)
	if overflow {
		nBin++
	}

	d := &CategoricalDiscretizer{NBin: nBin, Overflow: overflow, Order: order}
	d.buildIndex()
	return d
}

func (d *CategoricalDiscretizer) buildIndex() {
	d.index = make(map[string]int, len(d.Order))
	for i, v := range d.Order {
		d.index[v] = i
	}
}

// Map returns the bin code for a single category; an empty string maps to
// Missing, and any category not seen during fit maps to the catch-all code.
func (d *CategoricalDiscretizer) Map(v string) Bin {
	if v == "" {
		return Missing
	}
	if d.index == nil {
		d.buildIndex()
	}
	if code, ok := d.index[v]; ok {
		return Bin(code)
	}
	return Bin(len(d.Order))
}

// MapAll maps every value in x, returning a slice of bin codes.
func (d *CategoricalDiscretizer) MapAll(x []string) []Bin {
	out := make([]Bin, len(x))
	for i, v := range x {
		out[i] = d.Map(v)
	}
	return out
}
