// Package config loads the per-user JSON configuration file: vector-store
// connection, decay/shadow tuning, and the optional LLM oracle block.
// NOETIC_-prefixed environment variables override values from the JSON
// file, and keys set by neither keep their documented defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const envPrefix = "NOETIC_"

// LLMConfig is the optional oracle block.
type LLMConfig struct {
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Config is the full set of recognized keys.
type Config struct {
	ChromaHost string `json:"chroma_host"`
	ChromaPort int    `json:"chroma_port"`

	CurrentProject string `json:"current_project,omitempty"`

	EnableMemoryDecay bool    `json:"enable_memory_decay"`
	DecayHalfLifeDays float64 `json:"decay_half_life_days"`

	ShadowEnabled           bool    `json:"shadow_enabled"`
	ShadowTokenThreshold    int     `json:"shadow_token_threshold"`
	ShadowTimeThresholdMin  int     `json:"shadow_time_threshold_min"`
	ShadowSurfaceThreshold  float64 `json:"shadow_surface_threshold"`
	ShadowDeduplicate       bool    `json:"shadow_deduplicate"`

	DreamUseLLM bool      `json:"dream_use_llm"`
	LLM         LLMConfig `json:"llm"`
}

// Defaults returns the documented default configuration.
func Defaults() *Config {
	return &Config{
		ChromaHost:             "localhost",
		ChromaPort:             8000,
		EnableMemoryDecay:      true,
		DecayHalfLifeDays:      30,
		ShadowEnabled:          true,
		ShadowTokenThreshold:   500,
		ShadowTimeThresholdMin: 30,
		ShadowSurfaceThreshold: 0.6,
		ShadowDeduplicate:      true,
		DreamUseLLM:            false,
		LLM: LLMConfig{
			Provider: "none",
		},
	}
}

// Load reads the JSON config file at path, overlaying documented defaults
// and then environment-variable overrides (highest precedence). A missing
// file is not an error: defaults plus env overlay are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// no file; defaults stand.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverlay(cfg)
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating or overwriting the
// file.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverlay lets NOETIC_-prefixed environment variables override
// both the file and the defaults.
func applyEnvOverlay(cfg *Config) {
	cfg.ChromaHost = getEnv(envPrefix+"CHROMA_HOST", cfg.ChromaHost)
	cfg.ChromaPort = getEnvInt(envPrefix+"CHROMA_PORT", cfg.ChromaPort)
	cfg.CurrentProject = getEnv(envPrefix+"CURRENT_PROJECT", cfg.CurrentProject)
	cfg.EnableMemoryDecay = getEnvBool(envPrefix+"ENABLE_MEMORY_DECAY", cfg.EnableMemoryDecay)
	cfg.DecayHalfLifeDays = getEnvFloat(envPrefix+"DECAY_HALF_LIFE_DAYS", cfg.DecayHalfLifeDays)
	cfg.ShadowEnabled = getEnvBool(envPrefix+"SHADOW_ENABLED", cfg.ShadowEnabled)
	cfg.ShadowTokenThreshold = getEnvInt(envPrefix+"SHADOW_TOKEN_THRESHOLD", cfg.ShadowTokenThreshold)
	cfg.ShadowTimeThresholdMin = getEnvInt(envPrefix+"SHADOW_TIME_THRESHOLD_MIN", cfg.ShadowTimeThresholdMin)
	cfg.ShadowSurfaceThreshold = getEnvFloat(envPrefix+"SHADOW_SURFACE_THRESHOLD", cfg.ShadowSurfaceThreshold)
	cfg.ShadowDeduplicate = getEnvBool(envPrefix+"SHADOW_DEDUPLICATE", cfg.ShadowDeduplicate)
	cfg.DreamUseLLM = getEnvBool(envPrefix+"DREAM_USE_LLM", cfg.DreamUseLLM)
	cfg.LLM.Provider = getEnv(envPrefix+"LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv(envPrefix+"LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv(envPrefix+"LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv(envPrefix+"LLM_MODEL", cfg.LLM.Model)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		var parsed float64
		if _, err := fmt.Sscanf(v, "%g", &parsed); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
		return true
	case "false", "0", "no", "False", "FALSE", "No", "NO":
		return false
	default:
		return defaultValue
	}
}
