package main

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rakutentech/causalkit/internal/config"
	"github.com/rakutentech/causalkit/internal/ingest"
	"github.com/rakutentech/causalkit/internal/modelio"
	"github.com/rakutentech/causalkit/pkg/uplift/forest"
	"github.com/rakutentech/causalkit/pkg/uplift/matrix"
)

func fitForest(m *matrix.Matrix, cfg config.Configuration) (*forest.Forest, error) {
	isRegression := cfg.ModelType == string(config.Regression)
	return forest.Fit(m, cfg.ForestConfig(), isRegression)
}

func runTrain(cfg config.Configuration, dataPath, modelPath string) error {
	// runID only scopes log lines for this invocation; it is never persisted
	// to the model file, which must stay byte-identical across repeated
	// trainings of the same data under the same seed (spec §8 scenario 6).
	runID := uuid.NewString()
	runLog := log.WithField("run_id", runID)

	data, err := os.Open(dataPath)
	if err != nil {
		runLog.WithError(err).WithField("path", dataPath).Error("open data file")
		return err
	}
	defer data.Close()

	m, bins, err := ingest.LoadTrain(data, cfg)
	if err != nil {
		runLog.WithError(err).Error("load training data")
		return err
	}
	runLog.WithFields(logFields{"rows": m.N, "features": len(m.Features)}).Info("loaded training matrix")

	start := time.Now()
	f, err := fitForest(m, cfg)
	if err != nil {
		runLog.WithError(err).Error("fit forest")
		return err
	}
	f.Bins = bins
	f.FeatureOrder = append(append([]string{}, cfg.Feature...), cfg.Cat...)
	runLog.WithField("elapsed", time.Since(start)).Info("forest trained")

	out, err := os.Create(modelPath)
	if err != nil {
		runLog.WithError(err).WithField("path", modelPath).Error("create model file")
		return err
	}
	defer out.Close()

	if err := modelio.Save(out, cfg, f); err != nil {
		runLog.WithError(err).Error("save model")
		return err
	}

	return nil
}

type logFields = map[string]interface{}
