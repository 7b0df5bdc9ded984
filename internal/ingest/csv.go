// Package ingest binds a Configuration's column names to raw CSV rows and
// produces the columnar training matrix the forest driver consumes (spec §9
// "data loader glue"). CSV parsing itself stays on the standard library,
// exactly as the teacher's parse.go does it.
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/rakutentech/causalkit/internal/config"
	"github.com/rakutentech/causalkit/internal/kerrors"
	"github.com/rakutentech/causalkit/pkg/binning"
	"github.com/rakutentech/causalkit/pkg/uplift/forest"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
)

func readRows(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, kerrors.New(kerrors.Parse, "ingest.readRows", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				return nil, nil, kerrors.New(kerrors.Schema, "ingest.readRows", err)
			}
			return nil, nil, kerrors.New(kerrors.Parse, "ingest.readRows", err)
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return -1, kerrors.Newf(kerrors.Schema, "ingest.columnIndex", "required column %q not found in input", name)
}

func column(rows [][]string, idx int) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// parseFloatCell converts a CSV cell to a float, treating an empty cell as
// Missing (NaN) and a malformed non-empty cell as a locally-recovered
// Missing per spec §7's single-cell ParseError policy.
func parseFloatCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseResponseCell(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseTreatmentCell(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// LoadTrain reads a CSV, fits a fresh discretizer per feature/cat column,
// and returns the resulting training matrix alongside the fitted bin
// catalog (spec §3: "discretizers are created during the first training").
func LoadTrain(r io.Reader, cfg config.Configuration) (*matrix.Matrix, map[string]forest.BinEntry, error) {
	header, rows, err := readRows(r)
	if err != nil {
		return nil, nil, err
	}

	bins := make(map[string]forest.BinEntry)
	features := make([]matrix.Feature, 0, len(cfg.Feature)+len(cfg.Cat))

	for _, name := range cfg.Feature {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, nil, err
		}
		raw := make([]float64, len(rows))
		for i, s := range column(rows, idx) {
			raw[i] = parseFloatCell(s)
		}
		d, err := binning.FitContinuous(raw, cfg.NBin)
		if err != nil {
			return nil, nil, err
		}
		bins[name] = forest.BinEntry{Kind: binning.Continuous, Continuous: d}
		features = append(features, matrix.Feature{Name: name, IsCat: false, NBin: d.NBin, Codes: d.MapAll(raw)})
	}

	for _, name := range cfg.Cat {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, nil, err
		}
		raw := column(rows, idx)
		d := binning.FitCategorical(raw)
		bins[name] = forest.BinEntry{Kind: binning.Discrete, Categorical: d}
		features = append(features, matrix.Feature{Name: name, IsCat: true, NBin: d.NBin, Codes: d.MapAll(raw)})
	}

	response, treatment, weight, err := loadCommon(header, rows, cfg)
	if err != nil {
		return nil, nil, err
	}

	m, err := matrix.New(features, response, treatment, weight)
	if err != nil {
		return nil, nil, err
	}
	return m, bins, nil
}

// LoadPredict reads a CSV and maps it through an already-fitted bin catalog,
// per spec §3: "then persisted verbatim and reused for every subsequent
// training or prediction." It also returns the row identifiers named by
// cfg.Index (or synthetic row numbers, if unset) for joining scores back to
// source rows.
func LoadPredict(r io.Reader, cfg config.Configuration, bins map[string]forest.BinEntry) (*matrix.Matrix, []string, error) {
	header, rows, err := readRows(r)
	if err != nil {
		return nil, nil, err
	}

	index := rowIndex(header, rows, cfg.Index)

	features := make([]matrix.Feature, 0, len(cfg.Feature)+len(cfg.Cat))

	for _, name := range cfg.Feature {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, nil, err
		}
		entry, ok := bins[name]
		if !ok || entry.Continuous == nil {
			return nil, nil, kerrors.Newf(kerrors.Schema, "ingest.LoadPredict", "no fitted discretizer for feature %q", name)
		}
		raw := make([]float64, len(rows))
		for i, s := range column(rows, idx) {
			raw[i] = parseFloatCell(s)
		}
		d := entry.Continuous
		features = append(features, matrix.Feature{Name: name, IsCat: false, NBin: d.NBin, Codes: d.MapAll(raw)})
	}

	for _, name := range cfg.Cat {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, nil, err
		}
		entry, ok := bins[name]
		if !ok || entry.Categorical == nil {
			return nil, nil, kerrors.Newf(kerrors.Schema, "ingest.LoadPredict", "no fitted discretizer for category %q", name)
		}
		raw := column(rows, idx)
		d := entry.Categorical
		features = append(features, matrix.Feature{Name: name, IsCat: true, NBin: d.NBin, Codes: d.MapAll(raw)})
	}

	response, treatment, weight, err := loadCommon(header, rows, cfg)
	if err != nil {
		return nil, nil, err
	}

	m, err := matrix.New(features, response, treatment, weight)
	if err != nil {
		return nil, nil, err
	}
	return m, index, nil
}

// rowIndex returns the named column's values as row identifiers, or
// synthetic decimal row numbers when name is empty or not in the header.
func rowIndex(header []string, rows [][]string, name string) []string {
	out := make([]string, len(rows))
	if name == "" {
		for i := range out {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	idx, err := columnIndex(header, name)
	if err != nil {
		for i := range out {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	return column(rows, idx)
}

func loadCommon(header []string, rows [][]string, cfg config.Configuration) ([]float64, [][]int, []float64, error) {
	yIdx, err := columnIndex(header, cfg.Y)
	if err != nil {
		return nil, nil, nil, err
	}
	response := make([]float64, len(rows))
	for i, s := range column(rows, yIdx) {
		response[i] = parseResponseCell(s)
	}

	treatment := make([][]int, len(cfg.Treatment))
	for j, name := range cfg.Treatment {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, nil, nil, err
		}
		col := make([]int, len(rows))
		for i, s := range column(rows, idx) {
			col[i] = parseTreatmentCell(s)
		}
		treatment[j] = col
	}

	var weight []float64
	if cfg.Weight != "" {
		idx, err := columnIndex(header, cfg.Weight)
		if err != nil {
			return nil, nil, nil, err
		}
		weight = make([]float64, len(rows))
		for i, s := range column(rows, idx) {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				v = 1.0
			}
			weight[i] = v
		}
	}

	return response, treatment, weight, nil
}

// WriteScores writes one CSV row per prediction, comma-separated floats, no
// header (spec §6). When index is non-nil, each row is prefixed with its
// row identifier (the supplemented index-column passthrough); this is
// strictly additive and leaves the documented header-less float-only
// format untouched when index is nil.
func WriteScores(w io.Writer, scores [][]float64, index []string) error {
	cw := csv.NewWriter(w)
	for i, row := range scores {
		var rec []string
		if index != nil {
			rec = append(rec, index[i])
		}
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return kerrors.New(kerrors.Parse, "ingest.WriteScores", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
