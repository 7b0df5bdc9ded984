// Package modelio implements the model file format of spec §6: UTF-8 text,
// blank-line-separated records, everything else JSON. The teacher persists
// its model with encoding/gob; this format is dictated by the spec itself,
// so gob isn't used here (see DESIGN.md).
package modelio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rakutentech/causalkit/internal/config"
	"github.com/rakutentech/causalkit/internal/kerrors"
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/forest"
	"github.com/rakutentech/causalkit/pkg/uplift/tree"
)

// Save writes cfg, the bin catalog, and every tree of f to w in the record
// format of spec §6.
func Save(w io.Writer, cfg config.Configuration, f *forest.Forest) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return kerrors.New(kerrors.Parse, "modelio.Save", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", cfgJSON); err != nil {
		return kerrors.New(kerrors.Parse, "modelio.Save", err)
	}

	for _, name := range f.FeatureOrder {
		entry, ok := f.Bins[name]
		if !ok {
			return kerrors.Newf(kerrors.Schema, "modelio.Save", "no fitted discretizer for feature %q", name)
		}

		var discJSON []byte
		var err error
		switch entry.Kind {
		case binning.Continuous:
			discJSON, err = json.Marshal(entry.Continuous)
		default:
			discJSON, err = json.Marshal(entry.Categorical)
		}
		if err != nil {
			return kerrors.New(kerrors.Parse, "modelio.Save", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n%s\n%s\n\n", entry.Kind, name, discJSON); err != nil {
			return kerrors.New(kerrors.Parse, "modelio.Save", err)
		}
	}

	for _, t := range f.Trees {
		treeJSON, err := json.Marshal(t)
		if err != nil {
			return kerrors.New(kerrors.Parse, "modelio.Save", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", cfgJSON, treeJSON); err != nil {
			return kerrors.New(kerrors.Parse, "modelio.Save", err)
		}
	}

	return nil
}

// readBlocks splits r into blank-line-separated groups of non-blank lines.
func readBlocks(r io.Reader) ([][]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var blocks [][]string
	var cur []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	if err := sc.Err(); err != nil {
		return nil, kerrors.New(kerrors.Parse, "modelio.readBlocks", err)
	}
	return blocks, nil
}

// Load reads a model file and reconstructs its Configuration and Forest.
func Load(r io.Reader) (config.Configuration, *forest.Forest, error) {
	var cfg config.Configuration

	blocks, err := readBlocks(r)
	if err != nil {
		return cfg, nil, err
	}
	if len(blocks) == 0 || len(blocks[0]) != 1 {
		return cfg, nil, kerrors.New(kerrors.Parse, "modelio.Load", errMalformedHeader)
	}
	if err := json.Unmarshal([]byte(blocks[0][0]), &cfg); err != nil {
		return cfg, nil, kerrors.New(kerrors.Parse, "modelio.Load", err)
	}

	bins := make(map[string]forest.BinEntry)
	var order []string
	var trees []*tree.Tree

	for _, b := range blocks[1:] {
		if len(b) == 3 && (b[0] == binning.Continuous.String() || b[0] == binning.Discrete.String()) {
			entry, name, err := parseBinRecord(b)
			if err != nil {
				return cfg, nil, err
			}
			bins[name] = entry
			order = append(order, name)
			continue
		}

		if len(b) != 2 {
			return cfg, nil, kerrors.New(kerrors.Parse, "modelio.Load", errMalformedRecord)
		}
		t := &tree.Tree{}
		if err := json.Unmarshal([]byte(b[1]), t); err != nil {
			return cfg, nil, kerrors.New(kerrors.Parse, "modelio.Load", err)
		}
		trees = append(trees, t)
	}

	f := &forest.Forest{
		Config:       cfg.ForestConfig(),
		IsRegression: cfg.ModelType == string(config.Regression),
		Bins:         bins,
		FeatureOrder: order,
		Trees:        trees,
	}

	return cfg, f, nil
}

func parseBinRecord(b []string) (forest.BinEntry, string, error) {
	kindStr, name, discJSON := b[0], b[1], b[2]

	entry := forest.BinEntry{}
	switch kindStr {
	case binning.Continuous.String():
		entry.Kind = binning.Continuous
		d := &binning.ContinuousDiscretizer{}
		if err := json.Unmarshal([]byte(discJSON), d); err != nil {
			return entry, name, kerrors.New(kerrors.Parse, "modelio.parseBinRecord", err)
		}
		entry.Continuous = d
	default:
		entry.Kind = binning.Discrete
		d := &binning.CategoricalDiscretizer{}
		if err := json.Unmarshal([]byte(discJSON), d); err != nil {
			return entry, name, kerrors.New(kerrors.Parse, "modelio.parseBinRecord", err)
		}
		entry.Categorical = d
	}

	return entry, name, nil
}
