package split

import (
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/stat"
)

// RegressionStrategy is the variance-plus-treatment-balance split scorer of
// spec §4.5. It only ever distinguishes control (treatment 0) from treated
// (treatment 1); stat.BuildValueHist folds any further treatment arms into
// the treated group.
type RegressionStrategy struct{}

// sideStats derives mean and variance from a (sum, sumSq, count)
// sufficient-statistics triple.
func sideStats(sum, sumSq, n float64) (mean, variance float64) {
	if n <= 0 {
		return 0, 0
	}
	mean = sum / n
	variance = sumSq/n - mean*mean
	return mean, variance
}

// impurity is U = sigma^2_T/n_T + sigma^2_C/n_C - tau^2 + alpha*|n_T - n_C|.
func impurity(muT, varT, nT, muC, varC, nC, alpha float64) float64 {
	tau := muT - muC
	u := 0.0
	if nT > 0 {
		u += varT / nT
	}
	if nC > 0 {
		u += varC / nC
	}
	u -= tau * tau
	diff := nT - nC
	if diff < 0 {
		diff = -diff
	}
	u += alpha * diff
	return u
}

func buildRegSummary(sumT, sumSqT, nT, sumC, sumSqC, nC float64) [][]float64 {
	muC, _ := sideStats(sumC, sumSqC, nC)
	muT, _ := sideStats(sumT, sumSqT, nT)
	return [][]float64{{muC, nC}, {muT, nT}}
}

// Best implements Strategy for the regression-uplift criterion.
func (RegressionStrategy) Best(m *matrix.Matrix, idx []int, nodeID, featureID int, p Params) SplitInfo {
	h := stat.BuildValueHist(m, idx, featureID)
	f := m.Features[featureID]

	nC := h.TotalCount(0)
	nT := h.TotalCount(1)
	sumC := h.TotalSum(0)
	sumT := h.TotalSum(1)
	sumSqC := h.TotalSumSq(0)
	sumSqT := h.TotalSumSq(1)

	muC, varC := sideStats(sumC, sumSqC, nC)
	muT, varT := sideStats(sumT, sumSqT, nT)
	uParent := impurity(muT, varT, nT, muC, varC, nC, p.Alpha)

	nodeSummary := buildRegSummary(sumT, sumSqT, nT, sumC, sumSqC, nC)

	best := SplitInfo{NodeID: nodeID, FeatureID: featureID, IsCat: f.IsCat, Summary: nodeSummary}
	bestGain := 0.0
	found := false

	n := nC + nT

	nCandidates := f.NBin
	if h.Ordered && f.NBin > 0 {
		nCandidates = f.NBin - 1
	}

	for k := 0; k < nCandidates; k++ {
		lC := h.Count[0][k]
		lT := h.Count[1][k]
		rC := nC - lC
		rT := nT - lT

		if lC < float64(p.MinSamplesTreatment) || lT < float64(p.MinSamplesTreatment) ||
			rC < float64(p.MinSamplesTreatment) || rT < float64(p.MinSamplesTreatment) {
			continue
		}
		nL := lC + lT
		nR := rC + rT
		if nL < float64(p.MinSamplesLeaf) || nR < float64(p.MinSamplesLeaf) {
			continue
		}

		lSumC, lSumT := h.Sum[0][k], h.Sum[1][k]
		lSqC, lSqT := h.SumSq[0][k], h.SumSq[1][k]
		rSumC, rSumT := sumC-lSumC, sumT-lSumT
		rSqC, rSqT := sumSqC-lSqC, sumSqT-lSqT

		lMuC, lVarC := sideStats(lSumC, lSqC, lC)
		lMuT, lVarT := sideStats(lSumT, lSqT, lT)
		rMuC, rVarC := sideStats(rSumC, rSqC, rC)
		rMuT, rVarT := sideStats(rSumT, rSqT, rT)

		uL := impurity(lMuT, lVarT, lT, lMuC, lVarC, lC, p.Alpha)
		uR := impurity(rMuT, rVarT, rT, rMuC, rVarC, rC, p.Alpha)

		gain := uParent - (nL/n)*uL - (nR/n)*uR

		if gain > 0 && (!found || gain > bestGain) {
			best.Value = []binning.Bin{binning.Bin(k)}
			best.Gain = gain
			best.GainImportance = gain
			found = true
			bestGain = gain
		}
	}

	return best
}
