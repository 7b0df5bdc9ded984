// Package split implements the two pluggable split-scoring algorithms (spec
// §4.4, §4.5) behind a common Strategy interface, mirroring the teacher's
// valuer abstraction: a strategy turns a node's histogram into a SplitInfo,
// and the tree grower never needs to know which one it is talking to.
package split

import (
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
)

// SplitInfo records either a chosen split or a leaf decision for one node
// (spec §3). Value == nil marks a leaf; Summary always carries the
// per-treatment statistics a leaf needs to report uplift.
type SplitInfo struct {
	NodeID         int           `json:"node_id"`
	FeatureID      int           `json:"feature_id"`
	TreatmentID    int           `json:"treatment_id"`
	IsCat          bool          `json:"is_cat"`
	Value          []binning.Bin `json:"value,omitempty"` // nil => leaf
	Gain           float64       `json:"gain"`
	GainImportance float64       `json:"gain_importance"`
	Summary        [][]float64   `json:"summary"` // Summary[t] = {probability-or-mean, n} for treatment t
}

// IsLeaf reports whether s describes a leaf rather than a scored split.
func (s SplitInfo) IsLeaf() bool { return s.Value == nil }

// Params bundles the configuration knobs a strategy needs, kept separate
// from internal/config so this package never imports the CLI-facing
// configuration type.
type Params struct {
	MinSamplesLeaf      int
	MinSamplesTreatment int
	NReg                float64
	Alpha               float64
	Normalization       bool
}

// Strategy scores candidate splits for one feature at one node. Every node's
// own summary is built fresh from its own rows; no ancestor summary is ever
// threaded in (original_source/src/strategy.rs's Strategy trait takes no
// such argument either).
type Strategy interface {
	Best(m *matrix.Matrix, idx []int, nodeID, featureID int, p Params) SplitInfo
}
