package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvFileVariable names the variable that points at an optional env file
const EnvFileVariable = "RELAY_ENV_FILE"

const defaultEnvFile = ".env"

// Load loads configuration with precedence:
// defaults → env file → environment variables → command line flags.
// It performs runtime transformations and validation before returning.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	if !flag.Parsed() {
		flag.Parse()
	}

	cfg := defaultConfig()

	loadRedisFromEnv(&cfg.Redis)
	loadMQTTFromEnv(&cfg.MQTT)
	loadPipelineFromEnv(&cfg.Pipeline)
	loadPayloadFromEnv(&cfg.Payload)
	loadLogFromEnv(&cfg.Log)

	applyRedisFlags(&cfg.Redis)
	applyMQTTFlags(&cfg.MQTT)
	applyPipelineFlags(&cfg.Pipeline)
	applyPayloadFlags(&cfg.Payload)
	applyLogFlags(&cfg.Log)

	if err := resolveTopics(&cfg.MQTT); err != nil {
		return nil, fmt.Errorf("invalid mqtt topics: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvFile exports variables from the env file without overriding the
// real environment. A missing default file is not an error; a missing file
// named explicitly through RELAY_ENV_FILE is.
func loadEnvFile() error {
	path := os.Getenv(EnvFileVariable)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to stat env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
