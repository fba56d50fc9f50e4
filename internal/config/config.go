package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	SNInstance string
	SNUsername string
	SNPassword string

	OpenAIAPIKey    string
	AnswerModel     string
	ClassifierModel string

	RoutingTablePath string

	Port    string
	DataDir string
}

func Load() (*Config, error) {
	// .env is optional — env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	cfg := &Config{
		SNInstance:       os.Getenv("SN_INSTANCE"),
		SNUsername:       os.Getenv("SN_USERNAME"),
		SNPassword:       os.Getenv("SN_PASSWORD"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnswerModel:      os.Getenv("OPENAI_ANSWER_MODEL"),
		ClassifierModel:  os.Getenv("OPENAI_CLASSIFIER_MODEL"),
		RoutingTablePath: os.Getenv("ROUTING_TABLE"),
		Port:             os.Getenv("PORT"),
		DataDir:          os.Getenv("DATA_DIR"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	for _, req := range []struct {
		name, val string
	}{
		{"SN_INSTANCE", cfg.SNInstance},
		{"SN_USERNAME", cfg.SNUsername},
		{"SN_PASSWORD", cfg.SNPassword},
		{"OPENAI_API_KEY", cfg.OpenAIAPIKey},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("required env var %s is not set", req.name)
		}
	}

	return cfg, nil
}
