package main

import (
	"os"

	"github.com/google/uuid"

	"github.com/rakutentech/causalkit/internal/ingest"
	"github.com/rakutentech/causalkit/internal/modelio"
)

func runTest(dataPath, modelPath, scorePath string) error {
	runLog := log.WithField("run_id", uuid.NewString())

	modelFile, err := os.Open(modelPath)
	if err != nil {
		runLog.WithError(err).WithField("path", modelPath).Error("open model file")
		return err
	}
	cfg, f, err := modelio.Load(modelFile)
	modelFile.Close()
	if err != nil {
		runLog.WithError(err).Error("load model")
		return err
	}

	data, err := os.Open(dataPath)
	if err != nil {
		runLog.WithError(err).WithField("path", dataPath).Error("open data file")
		return err
	}
	defer data.Close()

	m, index, err := ingest.LoadPredict(data, cfg, f.Bins)
	if err != nil {
		runLog.WithError(err).Error("load scoring data")
		return err
	}
	if cfg.Index == "" {
		index = nil
	}

	scores := f.Predict(m)

	out, err := os.Create(scorePath)
	if err != nil {
		runLog.WithError(err).WithField("path", scorePath).Error("create score file")
		return err
	}
	defer out.Close()

	if err := ingest.WriteScores(out, scores, index); err != nil {
		runLog.WithError(err).Error("write scores")
		return err
	}

	runLog.WithField("rows", m.N).Info("scored")
	return nil
}
