// Package config holds the CLI-facing Configuration recognized by the model
// file and the training/prediction entry points (spec §6), and converts it
// into the parameter types of pkg/uplift/forest and pkg/uplift/split.
package config

import (
	"github.com/rakutentech/causalkit/internal/kerrors"
	"github.com/rakutentech/causalkit/pkg/uplift/forest"
	"github.com/rakutentech/causalkit/pkg/uplift/split"
)

// Configuration is the single-line JSON object recorded at the top of a
// model file and accepted as the set of training options (spec §6).
type Configuration struct {
	Index     string   `json:"index,omitempty"`
	Feature   []string `json:"feature,omitempty"`
	Cat       []string `json:"cat,omitempty"`
	Treatment []string `json:"treatment,omitempty"`
	Y         string   `json:"y,omitempty"`
	Weight    string   `json:"weight,omitempty"`

	// ModelType is not one of spec §6's listed options but the model file
	// still has to round-trip it, since a forest's strategy (KL vs
	// regression) can't be recovered from its trees alone.
	ModelType string `json:"model_type,omitempty"`

	NBin                int     `json:"n_bin"`
	MinSamplesLeaf      int     `json:"min_samples_leaf"`
	MinSamplesTreatment int     `json:"min_samples_treatment"`
	NReg                float64 `json:"n_reg"`
	Alpha               float64 `json:"alpha"`
	Normalization       bool    `json:"normalization"`
	MaxFeatures         int     `json:"max_features"`
	MaxDepth            int     `json:"max_depth"`
	NTree               int     `json:"n_tree"`
	Subsample           float64 `json:"subsample"`
	NThread             int     `json:"n_thread"`
	Seed                *int64  `json:"seed,omitempty"`
}

// Default returns the Configuration with every option at its documented
// default (spec §6), with no column names bound yet.
func Default() Configuration {
	return Configuration{
		NBin:                30,
		MinSamplesLeaf:      100,
		MinSamplesTreatment: 10,
		NReg:                10,
		Alpha:               0.9,
		Normalization:       true,
		MaxFeatures:         10,
		MaxDepth:            6,
		NTree:               100,
		Subsample:           1.0,
		NThread:             1,
	}
}

// ModelType is the first CLI positional argument.
type ModelType string

const (
	Binary     ModelType = "binary"
	Regression ModelType = "reg"
)

// Validate rejects configurations kerrors.Config would reject the library
// for, namely an unknown model type.
func (t ModelType) Validate() error {
	if t != Binary && t != Regression {
		return kerrors.Newf(kerrors.Config, "config.ModelType", "unknown model type %q, want %q or %q", t, Binary, Regression)
	}
	return nil
}

// SplitParams converts the scoring knobs into the type pkg/uplift/split
// understands.
func (c Configuration) SplitParams() split.Params {
	return split.Params{
		MinSamplesLeaf:      c.MinSamplesLeaf,
		MinSamplesTreatment: c.MinSamplesTreatment,
		NReg:                c.NReg,
		Alpha:               c.Alpha,
		Normalization:       c.Normalization,
	}
}

// ForestConfig converts the ensemble knobs into the type pkg/uplift/forest
// understands.
func (c Configuration) ForestConfig() forest.Config {
	return forest.Config{
		NTree:       c.NTree,
		Subsample:   c.Subsample,
		NThread:     c.NThread,
		MaxFeatures: c.MaxFeatures,
		MaxDepth:    c.MaxDepth,
		Seed:        c.Seed,
		Strategy:    c.SplitParams(),
	}
}
