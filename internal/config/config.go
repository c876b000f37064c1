// Package config loads the application configuration: built-in defaults,
// optionally overridden by a YAML file, overridden in turn by PATHO_
// environment variables (PATHO_CAMERA_WIDTH=1280 sets camera.width).
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

// ServerConfig defines the HTTP serving surface.
type ServerConfig struct {
	Address string `koanf:"address"`
}

// CameraConfig defines frame acquisition.
type CameraConfig struct {
	DeviceID    int  `koanf:"deviceid"`
	Width       int  `koanf:"width"`
	Height      int  `koanf:"height"`
	FPS         int  `koanf:"fps"`
	TestPattern bool `koanf:"testpattern"`
}

// ModelConfig defines where learned pipelines find their artifacts.
type ModelConfig struct {
	Dir  string `koanf:"dir"`
	CUDA bool   `koanf:"cuda"`
}

// LogConfig defines logging behavior.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Server ServerConfig `koanf:"server"`
	Camera CameraConfig `koanf:"camera"`
	Model  ModelConfig  `koanf:"model"`
	Log    LogConfig    `koanf:"log"`
}

// Load reads the configuration. filePath may name a YAML file; a missing
// file is not an error, the defaults and environment still apply.
func Load(filePath string) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"server.address":     ":8000",
		"camera.deviceid":    0,
		"camera.width":       640,
		"camera.height":      480,
		"camera.fps":         30,
		"camera.testpattern": false,
		"model.dir":          "models",
		"model.cuda":         false,
		"log.level":          "info",
		"log.pretty":         false,
	}, "."), nil); err != nil {
		return AppConfig{}, errors.Wrap(err, "load default config")
	}

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
				return AppConfig{}, errors.Wrapf(err, "load config file %s", filePath)
			}
		}
	}

	if err := k.Load(env.Provider("PATHO_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PATHO_")), "_", ".")
	}), nil); err != nil {
		return AppConfig{}, errors.Wrap(err, "load environment config")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}
