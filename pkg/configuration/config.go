package configuration

import (
	"errors"
	"os"
	"path/filepath"

	"sdvc/pkg/helpers"
	"sdvc/pkg/logger"
	"sdvc/pkg/model"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

type envVars struct {
	ConfigYAML string `envconfig:"SDVC_CONFIG_YAML" required:"true"`
}

// New parses the config file named by the SDVC_CONFIG_YAML environment variable
func New() (*model.Cfg, error) {
	log := logger.NewSimple("Configuration")
	log.Info("Read environmental variable")

	env := envVars{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}

	return parse(env.ConfigYAML)
}

// NewFromFile parses the named config file directly
func NewFromFile(path string) (*model.Cfg, error) {
	return parse(path)
}

func parse(configPath string) (*model.Cfg, error) {
	cfg := &model.Cfg{}

	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, err
	}

	if fileInfo.IsDir() {
		return nil, errors.New("config is a folder")
	}

	configFile, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configFile, cfg); err != nil {
		return nil, err
	}

	if err := helpers.Check(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
