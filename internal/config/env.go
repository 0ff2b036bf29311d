package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
// It ignores comments (starting with #) and empty lines.
func LoadEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove inline comments
		if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		env[key] = value
	}

	return env, scanner.Err()
}

// ProcessEnv returns the process environment as a map.
func ProcessEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Storage
	if val, ok := env["STORAGE_DRIVER"]; ok && val != "" {
		cfg.Storage.Driver = val
	}
	if val, ok := env["DATABASE_URL"]; ok && val != "" {
		cfg.Storage.DSN = val
		if _, explicit := env["STORAGE_DRIVER"]; !explicit {
			cfg.Storage.Driver = DriverPostgres
		}
	}
	if val, ok := env["DB_PATH"]; ok && val != "" {
		cfg.Storage.Path = val
	}

	// Generation
	if val, ok := env["DEFAULT_PROVIDER"]; ok && val != "" {
		cfg.Generation.Provider = val
	}
	if val, ok := env["DEFAULT_MODEL"]; ok {
		cfg.Defaults.ModelName = val
	}
	if val, ok := env["GENERATION_MAX_RETRIES"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Generation.MaxRetries = n
		}
	}
	if val, ok := env["GENERATION_BASE_DELAY"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Generation.BaseDelay = d
		}
	}
	if val, ok := env["GENERATION_ATTEMPT_TIMEOUT"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Generation.AttemptTimeout = d
		}
	}

	// Providers
	for name, provider := range cfg.Providers {
		prefix := fmt.Sprintf("PROVIDER_%s_", strings.ToUpper(name))
		if val, ok := env[prefix+"ENABLED"]; ok {
			if boolVal, err := strconv.ParseBool(val); err == nil {
				provider.Enabled = boolVal
			}
		}
		if val, ok := env[prefix+"API_KEY"]; ok && val != "" {
			provider.APIKey = val
		}
		if val, ok := env[prefix+"BASE_URL"]; ok && val != "" {
			provider.BaseURL = val
		}
		cfg.Providers[name] = provider
	}
}

// parseDuration accepts whole seconds or a Go duration string.
func parseDuration(val string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}
