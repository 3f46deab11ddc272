package cmd

import (
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"furnace/engine"
	"furnace/material"
	"furnace/model"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Run one simulation from a YAML config file and write the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var cfg model.SimulationConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return err
		}

		eng, err := engine.New(cfg, material.Default(), engine.Options{
			ProgressRate: rate.Limit(2),
		})
		if err != nil {
			return err
		}
		eng.Run()

		result, err := eng.Result()
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"state":     result.State,
			"steps":     result.Metadata.StepsCompleted,
			"snapshots": len(result.Snapshots),
			"max_temp":  result.Metadata.MaxTemperature,
		}).Info("run finished")

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(runOutput, out, 0o644)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "result.json", "result file path")
	rootCmd.AddCommand(runCmd)
}
