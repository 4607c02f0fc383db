package internal

import (
	"github.com/DreamCats/talk-codebase/internal/config"
)

// ConfigPath returns configPath, or ~/.talk-codebase.yaml when it is empty.
func ConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// LoadConfig reads the config file. A missing file gives an empty config.
func LoadConfig(configPath string) (*config.Config, string, error) {
	path, err := ConfigPath(configPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
