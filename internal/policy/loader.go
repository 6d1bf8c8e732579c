package policy

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig reads a persona configuration file. When the file is absent the
// built-in personas are used so a fresh checkout works without local setup.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return BuiltinConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading persona config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing persona config %s: %w", path, err)
	}
	if cfg.Personas == nil {
		cfg.Personas = map[string]Rule{}
	}
	return &cfg, nil
}

// BuiltinConfig mirrors the shipped persona set.
func BuiltinConfig() *Config {
	salesTemplate := "Client-safe business answer with concise bullets."
	execTemplate := "Executive summary: outcomes, risk, recommendation."
	engTemplate := "Technical response with implementation detail and caveats."

	salesTTL := 600
	salesTopK := 10
	salesMin := 0.42
	execTTL := 300
	execTopK := 8
	execMin := 0.45
	engTopK := 10
	engMin := 0.4
	allow := true

	return &Config{
		Defaults: &Defaults{
			ResponseTemplate:       fallbackTemplate,
			CacheTTLSeconds:        300,
			TopK:                   fallbackTopK,
			MinConfidence:          fallbackMinConfidence,
			CitationsOnlyThreshold: fallbackCitationsOnlyThreshold,
			SafetyRules:            []string{"no_pii", "no_credentials"},
		},
		Personas: map[string]Rule{
			"sales": {
				ToolAllowlist:      []string{"salesforce_summary", "looker_metric_catalog"},
				ResponseTemplate:   &salesTemplate,
				CacheTTLSeconds:    &salesTTL,
				TopK:               &salesTopK,
				MinConfidence:      &salesMin,
				AllowCitationsOnly: &allow,
			},
			"exec": {
				ToolAllowlist:    []string{"looker_metric_catalog"},
				ResponseTemplate: &execTemplate,
				CacheTTLSeconds:  &execTTL,
				TopK:             &execTopK,
				MinConfidence:    &execMin,
			},
			"engineering": {
				ToolAllowlist:      []string{"github_docs_lookup"},
				ResponseTemplate:   &engTemplate,
				TopK:               &engTopK,
				MinConfidence:      &engMin,
				AllowCitationsOnly: &allow,
			},
		},
	}
}
