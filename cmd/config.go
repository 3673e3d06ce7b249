package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig holds the defaults an optional ~/.mtfsrc can override, read
// once at startup and layered under whatever flags the user passed
// explicitly on the command line.
type fileConfig struct {
	Workers  int      `yaml:"workers"`
	QueueMax int      `yaml:"queueMax"`
	Exclude  []string `yaml:"exclude"`
	LogLevel string   `yaml:"logLevel"`
}

// loadFileConfig reads ~/.mtfsrc if present. A missing file is not an
// error: the zero value fileConfig{} is returned and every flag keeps its
// cobra default.
func loadFileConfig() (fileConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return fileConfig{}, nil
	}
	data, err := os.ReadFile(filepath.Join(home, ".mtfsrc"))
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, errors.Wrap(err, "reading ~/.mtfsrc")
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, errors.Wrap(err, "parsing ~/.mtfsrc")
	}
	return cfg, nil
}
