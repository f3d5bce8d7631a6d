package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/infoagentai/infoagent-web/internal/models"
	"github.com/infoagentai/infoagent-web/internal/services"
)

type providerConfig interface {
	modelID() string
	build(logger *slog.Logger) (services.Provider, error)
}

// BaseProviderConfig contains the common fields for all provider configurations.
type BaseProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string `yaml:"port"`
	DefaultModel string `yaml:"defaultModel"`
	HistoryPath  string `yaml:"historyPath"`
	DatabasePath string `yaml:"databasePath"`

	Providers []providerConfig `yaml:"providers"`
}

type openAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	APIKey             string `yaml:"apiKey"`
}

type openRouterConfig struct {
	BaseProviderConfig `yaml:",inline"`
	APIKey             string `yaml:"apiKey"`
}

type ollamaConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Host               string `yaml:"host"`
}

func defaultConfig() config {
	return config{
		Port:         "8080",
		DefaultModel: models.DefaultModel,
		HistoryPath:  "history.db",
		DatabasePath: "sessions.db",
		Providers: []providerConfig{
			openAIConfig{BaseProviderConfig: BaseProviderConfig{Provider: "openai", Model: models.DefaultModel}},
		},
	}
}

// loadConfig reads the yaml config at path, falling back to the built-in defaults when the
// file does not exist. Provider API keys left blank in the file resolve from the environment.
func loadConfig(path string) (config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	cfg := defaultConfig()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string           `yaml:"port"`
		DefaultModel string           `yaml:"defaultModel"`
		HistoryPath  string           `yaml:"historyPath"`
		DatabasePath string           `yaml:"databasePath"`
		Providers    []map[string]any `yaml:"providers"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.DefaultModel != "" {
		c.DefaultModel = rawConfig.DefaultModel
	}
	if rawConfig.HistoryPath != "" {
		c.HistoryPath = rawConfig.HistoryPath
	}
	if rawConfig.DatabasePath != "" {
		c.DatabasePath = rawConfig.DatabasePath
	}

	if len(rawConfig.Providers) == 0 {
		return nil
	}

	c.Providers = nil
	for i, rawProvider := range rawConfig.Providers {
		name, ok := rawProvider["provider"].(string)
		if !ok {
			return fmt.Errorf("providers[%d]: provider is required", i)
		}

		providerRawYAML, err := yaml.Marshal(rawProvider)
		if err != nil {
			return err
		}

		var provider providerConfig
		switch name {
		case "openai":
			provider = &openAIConfig{}
		case "openrouter":
			provider = &openRouterConfig{}
		case "ollama":
			provider = &ollamaConfig{}
		default:
			return fmt.Errorf("providers[%d]: unknown provider: %s", i, name)
		}

		if err := yaml.Unmarshal(providerRawYAML, provider); err != nil {
			return err
		}
		c.Providers = append(c.Providers, provider)
	}

	return nil
}

func (o openAIConfig) modelID() string { return o.Model }

func (o openAIConfig) build(logger *slog.Logger) (services.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return services.NewOpenAI(apiKey, o.Model, logger), nil
}

func (o openRouterConfig) modelID() string { return o.Model }

func (o openRouterConfig) build(logger *slog.Logger) (services.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	return services.NewOpenRouter(apiKey, o.Model, logger), nil
}

func (o ollamaConfig) modelID() string { return o.Model }

func (o ollamaConfig) build(logger *slog.Logger) (services.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, logger), nil
}
