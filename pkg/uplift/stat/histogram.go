// Package stat builds the per-node histograms that the split strategies
// score (spec §4.3). Every histogram has NBin+1 columns: [0,NBin) for the
// feature's real bin codes and NBin itself reserved for Missing. Ordered
// (continuous) histograms additionally carry a prefix-summed view so a
// candidate boundary "bins <= k" can be scored in O(1).
package stat

import (
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
)

// ClassHist is the (responseClass, treatment, bin) histogram used by the KL
// strategy's Count statistic. Class 0/1 corresponds to y=0/y=1.
type ClassHist struct {
	NBin    int
	NTreat  int
	Data    [][][]float64 // [class][treat][bin], len(bin) == NBin+1
	Ordered bool
}

func newClassHist(nBin, nTreat int, ordered bool) *ClassHist {
	data := make([][][]float64, 2)
	for c := range data {
		data[c] = make([][]float64, nTreat)
		for t := range data[c] {
			data[c][t] = make([]float64, nBin+1)
		}
	}
	return &ClassHist{NBin: nBin, NTreat: nTreat, Data: data, Ordered: ordered}
}

// BuildClassHist accumulates sample weight into (class, treatment, bin)
// cells for the rows in idx, for classification's KL strategy.
func BuildClassHist(m *matrix.Matrix, idx []int, featureID int) *ClassHist {
	f := m.Features[featureID]
	nTreat := m.NumTreatments()
	if nTreat < 1 {
		nTreat = 1
	}
	h := newClassHist(f.NBin, nTreat, !f.IsCat)

	for _, row := range idx {
		code := f.Codes[row]
		bin := int(code)
		if code == binning.Missing {
			bin = f.NBin
		}
		class := 0
		if m.Response[row] >= 1.0 {
			class = 1
		}
		treat := 0
		if len(m.Treatment) > 0 {
			treat = m.Treatment[0][row]
		}
		if treat < 0 || treat >= nTreat {
			continue
		}
		h.Data[class][treat][bin] += m.Weight[row]
	}

	if h.Ordered {
		h.prefixSum()
	}

	return h
}

func (h *ClassHist) prefixSum() {
	for c := range h.Data {
		for t := range h.Data[c] {
			row := h.Data[c][t]
			for i := 1; i < h.NBin; i++ {
				row[i] += row[i-1]
			}
		}
	}
}

// Left returns the (class,treat) weight for bins [0,k] (continuous) or for
// the single category k (categorical).
func (h *ClassHist) Left(class, treat, k int) float64 {
	if h.Ordered {
		return h.Data[class][treat][k]
	}
	return h.Data[class][treat][k]
}

// Total returns the (class,treat) total weight across all bins, including
// Missing.
func (h *ClassHist) Total(class, treat int) float64 {
	row := h.Data[class][treat]
	if h.Ordered {
		total := row[h.NBin] // missing
		if h.NBin > 0 {
			total += row[h.NBin-1]
		}
		return total
	}
	total := 0.0
	for _, v := range row {
		total += v
	}
	return total
}

// ValueHist is the (treatment, bin) sufficient-statistics histogram used by
// the regression strategy: Sum of y*w, SecondOrderSum of y^2*w, and
// CountNoY of w.
type ValueHist struct {
	NBin    int
	NTreat  int
	Sum     [][]float64
	SumSq   [][]float64
	Count   [][]float64
	Ordered bool
}

func newValueHist(nBin, nTreat int, ordered bool) *ValueHist {
	mk := func() [][]float64 {
		d := make([][]float64, nTreat)
		for t := range d {
			d[t] = make([]float64, nBin+1)
		}
		return d
	}
	return &ValueHist{NBin: nBin, NTreat: nTreat, Sum: mk(), SumSq: mk(), Count: mk(), Ordered: ordered}
}

// BuildValueHist accumulates sufficient statistics for the regression
// strategy over the rows in idx.
func BuildValueHist(m *matrix.Matrix, idx []int, featureID int) *ValueHist {
	f := m.Features[featureID]
	nTreat := 2 // regression strategy only ever distinguishes control (0) vs treated (1)
	h := newValueHist(f.NBin, nTreat, !f.IsCat)

	for _, row := range idx {
		code := f.Codes[row]
		bin := int(code)
		if code == binning.Missing {
			bin = f.NBin
		}
		treat := 0
		if len(m.Treatment) > 0 {
			treat = m.Treatment[0][row]
		}
		if treat < 0 {
			continue
		}
		if treat >= nTreat {
			treat = nTreat - 1 // fold any additional treatment arms into "treated"
		}
		w := m.Weight[row]
		y := m.Response[row]
		h.Sum[treat][bin] += y * w
		h.SumSq[treat][bin] += y * y * w
		h.Count[treat][bin] += w
	}

	if h.Ordered {
		h.prefixSum()
	}

	return h
}

func (h *ValueHist) prefixSum() {
	for t := range h.Sum {
		for i := 1; i < h.NBin; i++ {
			h.Sum[t][i] += h.Sum[t][i-1]
			h.SumSq[t][i] += h.SumSq[t][i-1]
			h.Count[t][i] += h.Count[t][i-1]
		}
	}
}

// TotalCount returns the total weight for treat across all bins, including
// Missing.
func (h *ValueHist) TotalCount(treat int) float64 {
	if h.Ordered {
		total := h.Count[treat][h.NBin]
		if h.NBin > 0 {
			total += h.Count[treat][h.NBin-1]
		}
		return total
	}
	total := 0.0
	for _, v := range h.Count[treat] {
		total += v
	}
	return total
}

func (h *ValueHist) TotalSum(treat int) float64 {
	if h.Ordered {
		total := h.Sum[treat][h.NBin]
		if h.NBin > 0 {
			total += h.Sum[treat][h.NBin-1]
		}
		return total
	}
	total := 0.0
	for _, v := range h.Sum[treat] {
		total += v
	}
	return total
}

func (h *ValueHist) TotalSumSq(treat int) float64 {
	if h.Ordered {
		total := h.SumSq[treat][h.NBin]
		if h.NBin > 0 {
			total += h.SumSq[treat][h.NBin-1]
		}
		return total
	}
	total := 0.0
	for _, v := range h.SumSq[treat] {
		total += v
	}
	return total
}
