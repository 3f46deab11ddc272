package cmd

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"furnace/engine"
	"furnace/material"
	"furnace/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/websocket simulation server",
	RunE: func(*cobra.Command, []string) error {
		// .env overrides are optional
		_ = godotenv.Load()

		cfg := server.LoadConfig(cfgFile)
		if addr := os.Getenv("FURNACE_ADDR"); addr != "" {
			cfg.Addr = addr
		}
		setLogLevel(cfg.LogLevel)

		lib := material.Default()
		for _, path := range cfg.MaterialFiles {
			if err := lib.LoadFile(path); err != nil {
				return err
			}
		}

		registry := engine.NewRegistry(lib, engine.Options{
			MaxNodes:        cfg.MaxNodes,
			Workers:         cfg.Workers,
			ProgressRate:    rate.Limit(cfg.ProgressRate),
			ConvectionCoeff: cfg.ConvectionCoeff,
		})
		log.WithField("materials", lib.Names()).Info("engine ready")
		return server.NewServer(cfg.Addr, registry, lib).Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
