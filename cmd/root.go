package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "furnace",
	Short: "Plasma furnace thermal simulation engine",
	Long: `Simulates transient heat conduction inside a cylindrical furnace
heated by one or more plasma torches, on a 2D axisymmetric r-z mesh.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "conf/config.ini", "server config file")
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, keeping info")
		return
	}
	log.SetLevel(lvl)
}
