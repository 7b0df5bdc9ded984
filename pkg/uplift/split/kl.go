package split

import (
	"math"

	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
	"github.com/rakutentech/causalkit/pkg/uplift/stat"
)

const klDelta = 0.1

// clipProb clips q into [1e-6, 1-1e-6] before it is used as a log
// denominator, per spec §4.4.
func clipProb(q float64) float64 {
	const lo, hi = 1e-6, 1 - 1e-6
	if q < lo {
		return lo
	}
	if q > hi {
		return hi
	}
	return q
}

// klDivergence is the clipped two-point KL divergence of spec §4.4, with the
// degenerate cases for q or p collapsing to 0 or 1.
func klDivergence(p, q float64) float64 {
	const eps = 1e-7
	qHat := clipProb(q)
	switch {
	case q < eps:
		return 0
	case p < eps:
		return -math.Log(1 - qHat)
	case 1-p < eps:
		return -math.Log(qHat)
	default:
		return p*math.Log(p/qHat) + (1-p)*math.Log((1-p)/(1-qHat))
	}
}

// hTwo is the two-argument cross-entropy term H(p,q) = -p*log(q).
func hTwo(p, q float64) float64 {
	if q <= 0 {
		return 0
	}
	return -p * math.Log(q)
}

// hOne is the single-argument entropy term H(p,-1) = -p*log(p).
func hOne(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return -p * math.Log(p)
}

// KLStrategy is the classification split scorer of spec §4.4.
type KLStrategy struct{}

// regularize implements spec §4.4's countReg: blend the node's own MLE
// estimate towards the parent's smoothed estimate, falling back to the
// parent entirely at or below min_samples_treatment, and skipping smoothing
// altogether at the root (parent == nil).
func regularize(nPos, n float64, parentP float64, haveParent bool, minSamplesTreatment int, nReg float64) float64 {
	if !haveParent {
		if n <= 0 {
			return 0
		}
		return nPos / n
	}
	if n > float64(minSamplesTreatment) {
		return (nPos + parentP*nReg) / (n + nReg)
	}
	return parentP
}

// buildSummary regularizes every treatment group's probability given the
// node's raw per-treatment (nPos, n) pairs and the enclosing node's summary.
func buildSummary(nPos, n []float64, parent [][]float64, p Params) [][]float64 {
	nTreat := len(nPos)
	summary := make([][]float64, nTreat)
	for t := 0; t < nTreat; t++ {
		var parentP float64
		haveParent := parent != nil && t < len(parent)
		if haveParent {
			parentP = parent[t][0]
		}
		prob := regularize(nPos[t], n[t], parentP, haveParent, p.MinSamplesTreatment, p.NReg)
		summary[t] = []float64{prob, n[t]}
	}
	return summary
}

// score is S = sum over non-control treatments of KL(p_t || p_0).
func score(summary [][]float64) float64 {
	if len(summary) == 0 {
		return 0
	}
	p0 := summary[0][0]
	s := 0.0
	for t := 1; t < len(summary); t++ {
		s += klDivergence(summary[t][0], p0)
	}
	return s
}

// normalizationFactor computes Z from spec §4.4's normalization formula,
// using the node's own totals (N_T, N_C, per-treatment n_i) and a
// candidate's left-side totals (L_T, L_C, per-treatment L_i).
func normalizationFactor(nodeN, leftN []float64, alpha float64) float64 {
	const delta = klDelta

	nC := nodeN[0]
	lC := leftN[0]

	nT := 0.0
	lT := 0.0
	for t := 1; t < len(nodeN); t++ {
		nT += nodeN[t]
		lT += leftN[t]
	}

	z := alpha * hTwo(nT/(nT+nC), nC/(nT+nC)) * klDivergence(lT/(nT+delta), lC/(nC+delta))

	for i := 1; i < len(nodeN); i++ {
		ei := nodeN[i]
		li := leftN[i]
		z += (1 - alpha) * hTwo(ei/(ei+nC), nC/(ei+nC)) * klDivergence(li/(ei+delta), lC/(nC+delta))
		z += ei / (nT + nC) * hOne(li / (ei + delta))
	}

	z += nC / (nT + nC) * hOne(lC/(nC+delta))
	z += 0.5

	return z
}

// Best implements Strategy for the KL-uplift criterion.
func (KLStrategy) Best(m *matrix.Matrix, idx []int, nodeID, featureID int, p Params) SplitInfo {
	h := stat.BuildClassHist(m, idx, featureID)
	f := m.Features[featureID]
	nTreat := h.NTreat

	nodeNPos := make([]float64, nTreat)
	nodeN := make([]float64, nTreat)
	for t := 0; t < nTreat; t++ {
		nodeNPos[t] = h.Total(1, t)
		nodeN[t] = h.Total(0, t) + h.Total(1, t)
	}
	// A node's own reported summary is always the raw MLE, never smoothed
	// towards an ancestor (original_source/src/kl.rs:75 calls count_reg with
	// &None unconditionally, regardless of depth). Smoothing only ever
	// anchors a left/right candidate to the current node's own fresh
	// statistic, below.
	nodeSummary := buildSummary(nodeNPos, nodeN, nil, p)
	sParent := score(nodeSummary)

	best := SplitInfo{NodeID: nodeID, FeatureID: featureID, IsCat: f.IsCat, Summary: nodeSummary}
	bestGain := 0.0
	found := false

	leftOf := func(class, t, k int) float64 { return h.Data[class][t][k] }

	// Categorical: every real bin code is its own candidate. Continuous:
	// the rightmost real bin index is not itself a boundary (it would put
	// every present row on the left), and Missing (index NBin) never is.
	nCandidates := f.NBin
	if h.Ordered && f.NBin > 0 {
		nCandidates = f.NBin - 1
	}

	for k := 0; k < nCandidates; k++ {
		leftNPos := make([]float64, nTreat)
		leftN := make([]float64, nTreat)
		rightN := make([]float64, nTreat)
		L, R := 0.0, 0.0
		ok := true

		for t := 0; t < nTreat; t++ {
			l1 := leftOf(1, t, k)
			l0 := leftOf(0, t, k)
			lt := l0 + l1
			tot := h.Total(0, t) + h.Total(1, t)
			rt := tot - lt

			leftNPos[t] = l1
			leftN[t] = lt
			rightN[t] = rt
			L += lt
			R += rt

			if lt < float64(p.MinSamplesTreatment) || rt < float64(p.MinSamplesTreatment) {
				ok = false
			}
		}
		if !ok || L < float64(p.MinSamplesLeaf) || R < float64(p.MinSamplesLeaf) {
			continue
		}

		leftSummary := buildSummary(leftNPos, leftN, nodeSummary, p)
		rightNPos := make([]float64, nTreat)
		for t := 0; t < nTreat; t++ {
			rightNPos[t] = h.Total(1, t) - leftNPos[t]
		}
		rightSummary := buildSummary(rightNPos, rightN, nodeSummary, p)

		sL := score(leftSummary)
		sR := score(rightSummary)

		pi := L / (L + R)
		gain := pi*sL + (1-pi)*sR - sParent
		importance := L*sL + R*sR - (L+R)*sParent

		if p.Normalization {
			z := normalizationFactor(nodeN, leftN, p.Alpha)
			if z != 0 {
				gain /= z
			}
		}

		if gain > 0 && (!found || gain > bestGain) {
			best.Value = []binning.Bin{binning.Bin(k)}
			best.Gain = gain
			best.GainImportance = importance
			found = true
			bestGain = gain
		}
	}

	return best
}
