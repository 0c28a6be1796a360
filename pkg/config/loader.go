package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// systemYAMLConfig is the top-level system.yaml document: infra settings
// plus the retention and scheduler sub-documents (§6 "four configuration
// documents").
type systemYAMLConfig struct {
	Infra     *InfraConfig     `yaml:"infra"`
	Defaults  *Defaults        `yaml:"defaults"`
	Retention *RetentionConfig `yaml:"retention"`
	Scheduler *SchedulerConfig `yaml:"scheduler"`
}

// Initialize loads, merges, and validates every configuration document
// under configDir. This is the primary entry point for configuration
// loading (cmd/grantfinder wires it at startup and again on SIGHUP for
// hot reload).
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"sectors", stats.Sectors,
		"regions", stats.Regions,
		"rules", stats.Rules)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	l := &configLoader{configDir: configDir}

	sys, err := l.loadSystemYAML()
	if err != nil {
		return nil, NewLoadError("system.yaml", err)
	}
	sectors, err := l.loadSectorsYAML()
	if err != nil {
		return nil, NewLoadError("sectors.yaml", err)
	}
	geo, err := l.loadGeoYAML()
	if err != nil {
		return nil, NewLoadError("geo.yaml", err)
	}
	compliance, err := l.loadComplianceYAML()
	if err != nil {
		return nil, NewLoadError("compliance.yaml", err)
	}
	profile, err := l.loadProfileYAML()
	if err != nil {
		return nil, NewLoadError("profile-defaults.yaml", err)
	}

	infra := DefaultInfraConfig()
	if sys.Infra != nil {
		if err := mergo.Merge(infra, sys.Infra, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging infra config: %w", err)
		}
	}

	defaults := DefaultDefaults()
	if sys.Defaults != nil {
		if err := mergo.Merge(defaults, sys.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging defaults: %w", err)
		}
	}

	retention := resolveRetentionConfig(sys.Retention)
	scheduler := resolveSchedulerConfig(sys.Scheduler)

	return &Config{
		configDir:  configDir,
		Defaults:   defaults,
		Retention:  retention,
		Scheduler:  scheduler,
		Infra:      infra,
		Sectors:    sectors,
		Geo:        geo,
		Compliance: compliance,
		Profile:    profile,
	}, nil
}

// validate performs basic structural sanity checks a malformed config
// directory would fail (§6 CLI exit code 1: "configuration error").
func validate(cfg *Config) error {
	if cfg.Infra.PrimaryLLM == "" {
		return NewValidationError("infra", "primary_llm", "", fmt.Errorf("primary_llm must be set"))
	}
	if _, ok := cfg.Infra.LLMProviders[cfg.Infra.PrimaryLLM]; !ok {
		return NewValidationError("infra", cfg.Infra.PrimaryLLM, "llm_providers", fmt.Errorf("primary_llm is not a registered provider"))
	}
	for key, sector := range cfg.Sectors.Sectors {
		if sector.Weight < 0 {
			return NewValidationError("sectors", key, "weight", fmt.Errorf("weight must be >= 0"))
		}
	}
	for key, region := range cfg.Geo.Regions {
		found := false
		for _, t := range AllGeoTiers() {
			if t == region.Tier {
				found = true
				break
			}
		}
		if !found {
			return NewValidationError("geo", key, "tier", fmt.Errorf("unrecognized geo tier %q", region.Tier))
		}
	}
	for _, rule := range cfg.Compliance.Rules {
		if rule.ID == "" {
			return NewValidationError("compliance", "", "id", fmt.Errorf("rule id must not be empty"))
		}
	}
	return nil
}

type configLoader struct {
	configDir string
}

// loadYAML reads filename from the config directory, expands env vars,
// and unmarshals into target. A missing file is tolerated (every
// document has coded defaults it merges over); a malformed one is not.
func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadSystemYAML() (*systemYAMLConfig, error) {
	var cfg systemYAMLConfig
	if err := l.loadYAML("system.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadSectorsYAML() (*SectorDocument, error) {
	doc := &SectorDocument{Sectors: make(map[string]SectorConfig)}
	if err := l.loadYAML("sectors.yaml", doc); err != nil {
		return nil, err
	}
	if doc.Sectors == nil {
		doc.Sectors = make(map[string]SectorConfig)
	}
	return doc, nil
}

func (l *configLoader) loadGeoYAML() (*GeoDocument, error) {
	doc := &GeoDocument{Regions: make(map[string]RegionConfig)}
	if err := l.loadYAML("geo.yaml", doc); err != nil {
		return nil, err
	}
	if doc.Regions == nil {
		doc.Regions = make(map[string]RegionConfig)
	}
	return doc, nil
}

func (l *configLoader) loadComplianceYAML() (*ComplianceDocument, error) {
	doc := &ComplianceDocument{}
	if err := l.loadYAML("compliance.yaml", doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *configLoader) loadProfileYAML() (*ProfileDefaults, error) {
	doc := &ProfileDefaults{}
	if err := l.loadYAML("profile-defaults.yaml", doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// resolveRetentionConfig merges a user-provided retention document over
// the coded defaults.
func resolveRetentionConfig(r *RetentionConfig) *RetentionConfig {
	cfg := DefaultRetentionConfig()
	if r == nil {
		return cfg
	}
	if err := mergo.Merge(cfg, r, mergo.WithOverride); err != nil {
		slog.Warn("merging retention config failed, using defaults", "error", err)
	}
	return cfg
}

// resolveSchedulerConfig merges a user-provided scheduler document over
// the coded defaults.
func resolveSchedulerConfig(s *SchedulerConfig) *SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	if s == nil {
		return cfg
	}
	if err := mergo.Merge(cfg, s, mergo.WithOverride); err != nil {
		slog.Warn("merging scheduler config failed, using defaults", "error", err)
	}
	return cfg
}
