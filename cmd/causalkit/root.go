// Command causalkit trains and scores uplift random forests (spec §6).
package main

import (
	"os"

	"github.com/davecheney/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rakutentech/causalkit/internal/config"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var seed int64
	var runProfile bool

	cmd := &cobra.Command{
		Use:   "causalkit model_type mode data_path model_path score_path y_col treatment_col",
		Short: "Train or score an uplift random forest",
		Long: "causalkit trains a KL-uplift classification forest or a variance-uplift " +
			"regression forest from causal observational data, and scores new rows against a saved model.",
		Args: cobra.ExactArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			if runProfile {
				defer profile.Start(profile.CPUProfile).Stop()
			}
			return dispatch(args, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&cfg.Feature, "feature", nil, "continuous feature column names")
	flags.StringSliceVar(&cfg.Cat, "cat", nil, "categorical feature column names")
	flags.StringVar(&cfg.Weight, "weight", "", "weight column name (default: uniform 1.0)")
	flags.StringVar(&cfg.Index, "index", "", "row identifier column name")
	flags.IntVar(&cfg.NBin, "n_bin", cfg.NBin, "bins per feature")
	flags.IntVar(&cfg.MinSamplesLeaf, "min_samples_leaf", cfg.MinSamplesLeaf, "minimum weight in a leaf")
	flags.IntVar(&cfg.MinSamplesTreatment, "min_samples_treatment", cfg.MinSamplesTreatment, "minimum weight per treatment group in a leaf")
	flags.Float64Var(&cfg.NReg, "n_reg", cfg.NReg, "KL probability-smoothing strength")
	flags.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "split-score blend / treatment-balance weight")
	flags.BoolVar(&cfg.Normalization, "normalization", cfg.Normalization, "normalize KL gain")
	flags.IntVar(&cfg.MaxFeatures, "max_features", cfg.MaxFeatures, "features considered per split")
	flags.IntVar(&cfg.MaxDepth, "max_depth", cfg.MaxDepth, "maximum tree depth")
	flags.IntVar(&cfg.NTree, "n_tree", cfg.NTree, "number of trees")
	flags.Float64Var(&cfg.Subsample, "subsample", cfg.Subsample, "row bootstrap fraction per tree")
	flags.IntVar(&cfg.NThread, "n_thread", cfg.NThread, "worker threads")
	flags.Int64Var(&seed, "seed", 0, "RNG seed (absent => OS entropy)")
	flags.BoolVar(&runProfile, "profile", false, "write a CPU profile for the duration of the run")

	return cmd
}

func dispatch(args []string, cfg config.Configuration) error {
	modelType := config.ModelType(args[0])
	if err := modelType.Validate(); err != nil {
		log.WithError(err).Error("invalid model type")
		return err
	}
	cfg.ModelType = string(modelType)

	mode := args[1]
	dataPath := args[2]
	modelPath := args[3]
	scorePath := args[4]
	cfg.Y = args[5]
	cfg.Treatment = []string{args[6]}

	switch mode {
	case "train":
		return runTrain(cfg, dataPath, modelPath)
	case "test":
		return runTest(dataPath, modelPath, scorePath)
	default:
		err := errUnknownMode(mode)
		log.WithError(err).Error("invalid mode")
		return err
	}
}
