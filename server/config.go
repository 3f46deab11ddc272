package server

import (
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Config is the server runtime configuration, read from an ini file. Every
// key has a default so a missing file still yields a working server.
type Config struct {
	Addr            string
	MaxNodes        int
	Workers         int
	ProgressRate    float64 // progress emissions per second
	ConvectionCoeff float64 // wall film coefficient, W/(m^2 K)
	MaterialFiles   []string
	LogLevel        string
}

func defaultConfig() Config {
	return Config{
		Addr:         ":9000",
		MaxNodes:     4_000_000,
		ProgressRate: 10,
		LogLevel:     "info",
	}
}

// LoadConfig reads path, falling back to defaults when the file is absent.
func LoadConfig(path string) Config {
	cfg := defaultConfig()
	file, err := ini.Load(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("config file not loaded, using defaults")
		return cfg
	}

	srv := file.Section("server")
	cfg.Addr = srv.Key("Addr").MustString(cfg.Addr)
	cfg.LogLevel = srv.Key("LogLevel").MustString(cfg.LogLevel)

	eng := file.Section("engine")
	cfg.MaxNodes = eng.Key("MaxNodes").MustInt(cfg.MaxNodes)
	cfg.Workers = eng.Key("Workers").MustInt(cfg.Workers)
	cfg.ProgressRate = eng.Key("ProgressRate").MustFloat64(cfg.ProgressRate)
	cfg.ConvectionCoeff = eng.Key("ConvectionCoeff").MustFloat64(cfg.ConvectionCoeff)

	mats := file.Section("materials")
	if key := mats.Key("Files"); key.String() != "" {
		cfg.MaterialFiles = key.Strings(",")
	}
	return cfg
}
