package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultMaxIterations    = 50
	DefaultMaxDurationHours = 4.0
	DefaultNoProgress       = 3
	DefaultCommand          = "claude"
	DefaultMaxTurns         = 200
	DefaultOutputFormat     = "stream-json"
	DefaultSpecPath         = "SPEC.md"
	DefaultPlanPath         = "IMPLEMENTATION_PLAN.md"
	DefaultProgressPath     = "PROGRESS.md"
	DefaultLogLevel         = "warn"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Dir returns the .loopsh directory under basePath.
func Dir(basePath string) string {
	return filepath.Join(basePath, ".loopsh")
}

// DefaultLimits returns limits with sensible default values.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:       DefaultMaxIterations,
		MaxDurationHours:    DefaultMaxDurationHours,
		NoProgressThreshold: DefaultNoProgress,
	}
}

// DefaultAssistant returns the default assistant invocation settings.
func DefaultAssistant() Assistant {
	return Assistant{
		Command:         DefaultCommand,
		MaxTurns:        DefaultMaxTurns,
		OutputFormat:    DefaultOutputFormat,
		Verbose:         true,
		SkipPermissions: true,
	}
}

// DefaultPaths returns the default artifact locations.
func DefaultPaths() Paths {
	return Paths{
		Spec:     DefaultSpecPath,
		Plan:     DefaultPlanPath,
		Progress: DefaultProgressPath,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Limits:    DefaultLimits(),
		Assistant: DefaultAssistant(),
		Paths:     DefaultPaths(),
		LogLevel:  DefaultLogLevel,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// LoadConfig reads and parses .loopsh/config.yaml from the given base path.
// If the file doesn't exist, returns default config.
// Applies defaults for any missing fields.
func LoadConfig(basePath string) (*Config, error) {
	configPath := filepath.Join(Dir(basePath), "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveConfig writes cfg to .loopsh/config.yaml, creating the directory.
func SaveConfig(basePath string, cfg *Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(Dir(basePath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(Dir(basePath), "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Limits.MaxIterations <= 0 {
		return ValidationError{Field: "limits.max_iterations", Message: "must be positive"}
	}
	if cfg.Limits.MaxDurationHours < 0 {
		return ValidationError{Field: "limits.max_duration_hours", Message: "must not be negative"}
	}
	if cfg.Limits.NoProgressThreshold < 0 {
		return ValidationError{Field: "limits.no_progress_threshold", Message: "must not be negative"}
	}
	if strings.TrimSpace(cfg.Assistant.Command) == "" {
		return ValidationError{Field: "assistant.command", Message: "required field is empty"}
	}
	if cfg.Assistant.MaxTurns < 0 {
		return ValidationError{Field: "assistant.max_turns", Message: "must not be negative"}
	}
	if cfg.Paths.Plan == "" {
		return ValidationError{Field: "paths.plan", Message: "required field is empty"}
	}
	if cfg.Paths.Spec == "" {
		return ValidationError{Field: "paths.spec", Message: "required field is empty"}
	}
	if cfg.Paths.Progress == "" {
		return ValidationError{Field: "paths.progress", Message: "required field is empty"}
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ValidationError{Field: "log_level", Message: "must be one of debug, info, warn, error"}
	}
	return nil
}

// Resolve returns p joined to basePath unless p is already absolute.
func Resolve(basePath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}

// LoadEnvFile parses .loopsh/assistant.env into key-value pairs that are
// passed to the assistant process. The file format is KEY=VALUE per line.
// Lines starting with # are comments. Empty lines are ignored.
func LoadEnvFile(basePath string) (map[string]string, error) {
	envPath := filepath.Join(Dir(basePath), "assistant.env")

	file, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env file line %d: missing '='", lineNum)
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if key == "" {
			return nil, fmt.Errorf("invalid env file line %d: empty key", lineNum)
		}

		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return env, nil
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
