// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/podibleapp/podible-server/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	// DataDir is the persistent state root: index, probe cache, transcode
	// status, API key, extracted covers, and transcoded audio all live here.
	DataDir string `json:"data_dir" validate:"required"`
	// Roots are the library directories to scan, laid out as
	// <root>/<author>/<title>/. Zero roots is allowed; the server starts
	// and reports the problem per feed request.
	Roots []string `json:"roots"`

	Server ServerConfig
	Logger LoggerConfig
	Feed   FeedConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string `json:"port" validate:"required,numeric"`
	AdvertiseMDNS bool   `json:"advertise_mdns"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `json:"log_level" validate:"oneof=debug info warn error"`
	Format string `json:"log_format" validate:"oneof=pretty json"`
}

// FeedConfig holds the podcast channel metadata. Only the feed renderer
// reads these.
type FeedConfig struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Language    string `json:"language" validate:"required"`
	Copyright   string `json:"copyright"`
	Author      string `json:"author"`
	OwnerName   string `json:"owner_name"`
	OwnerEmail  string `json:"owner_email" validate:"omitempty,email"`
	Explicit    string `json:"explicit" validate:"oneof=yes no clean"`
	Category    string `json:"category"`
	Type        string `json:"type" validate:"oneof=episodic serial"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Positional arguments left after flag parsing are the library roots.
func LoadConfig() (*Config, error) {
	dataDir := flag.String("data-dir", "", "Directory for persistent state (index, covers, transcodes)")
	port := flag.String("port", "", "HTTP listen port (default: 80)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (pretty, json)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		DataDir: getConfigValue(*dataDir, "DATA_DIR", defaultDataDir()),
		Roots:   flag.Args(),

		Server: ServerConfig{
			Port: getConfigValue(*port, "PORT", "80"),
			// MDNS_DISABLE set to anything non-empty turns advertisement off.
			AdvertiseMDNS: os.Getenv("MDNS_DISABLE") == "",
		},

		Logger: LoggerConfig{
			Level:  strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
			Format: strings.ToLower(getConfigValue(*logFormat, "LOG_FORMAT", "pretty")),
		},

		Feed: FeedConfig{
			Title:       getConfigValue("", "POD_TITLE", "Audiobooks"),
			Description: getConfigValue("", "POD_DESCRIPTION", "Audiobook podcast feed"),
			Language:    getConfigValue("", "POD_LANGUAGE", "en"),
			Copyright:   getConfigValue("", "POD_COPYRIGHT", ""),
			Author:      getConfigValue("", "POD_AUTHOR", "podible"),
			OwnerName:   getConfigValue("", "POD_OWNER_NAME", ""),
			OwnerEmail:  getConfigValue("", "POD_OWNER_EMAIL", ""),
			Explicit:    strings.ToLower(getConfigValue("", "POD_EXPLICIT", "no")),
			Category:    getConfigValue("", "POD_CATEGORY", "Arts"),
			Type:        strings.ToLower(getConfigValue("", "POD_TYPE", "episodic")),
			ImageURL:    getConfigValue("", "POD_IMAGE_URL", ""),
		},
	}

	// Expand and normalize paths.
	if err := cfg.expandDataDir(); err != nil {
		return nil, fmt.Errorf("invalid data dir: %w", err)
	}
	if err := cfg.expandRoots(); err != nil {
		return nil, fmt.Errorf("invalid library root: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}

	n, err := strconv.Atoi(c.Server.Port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Server.Port)
	}

	return nil
}

// ListenAddr returns the address for net/http to bind.
func (c *Config) ListenAddr() string {
	return ":" + c.Server.Port
}

// defaultDataDir matches the historical default of ${TMPDIR:-/tmp}/podible-transcodes.
func defaultDataDir() string {
	return filepath.Join(os.TempDir(), "podible-transcodes")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataDir expands ~ and makes the path absolute.
func (c *Config) expandDataDir() error {
	expanded, err := expandPath(c.DataDir, defaultDataDir())
	if err != nil {
		return err
	}
	c.DataDir = expanded
	return nil
}

// expandRoots expands every library root. Roots are kept even when they do
// not exist yet; the scanner logs and skips unreadable ones.
func (c *Config) expandRoots() error {
	for i, root := range c.Roots {
		expanded, err := expandPath(root, "")
		if err != nil {
			return fmt.Errorf("root %q: %w", root, err)
		}
		c.Roots[i] = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
