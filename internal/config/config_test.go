package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DataDir: "/some/path",
		Server:  ServerConfig{Port: "8080"},
		Logger:  LoggerConfig{Level: "info", Format: "pretty"},
		Feed: FeedConfig{
			Title:    "Audiobooks",
			Language: "en",
			Explicit: "no",
			Type:     "episodic",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Ports(t *testing.T) {
	tests := []struct {
		port  string
		valid bool
	}{
		{"80", true},
		{"8080", true},
		{"65535", true},
		{"0", false},
		{"65536", false},
		{"-1", false},
		{"http", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_FeedEnums(t *testing.T) {
	cfg := validConfig()
	cfg.Feed.Explicit = "definitely"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Feed.Type = "serial"
	assert.NoError(t, cfg.Validate())

	cfg.Feed.Type = "mini-series"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Feed.OwnerEmail = "not-an-email"
	assert.Error(t, cfg.Validate())
}

func TestExpandDataDir_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{DataDir: ""}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	expected := filepath.Join(os.TempDir(), "podible-transcodes")
	assert.Equal(t, expected, cfg.DataDir)
}

func TestExpandDataDir_TildeExpansion(t *testing.T) {
	cfg := &Config{DataDir: "~/my-data"}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "my-data")
	assert.Equal(t, expected, cfg.DataDir)
}

func TestExpandDataDir_AbsolutePath(t *testing.T) {
	cfg := &Config{DataDir: "/absolute/path/to/data"}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	assert.Equal(t, "/absolute/path/to/data", cfg.DataDir)
}

func TestExpandRoots(t *testing.T) {
	cfg := &Config{Roots: []string{"relative/books", "/abs/books"}}

	err := cfg.expandRoots()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.Roots[0]))
	assert.Contains(t, cfg.Roots[0], "relative/books")
	assert.Equal(t, "/abs/books", cfg.Roots[1])
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Test flag value takes priority.
	result := getConfigValue("flag-value", "ENV_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Test env var when flag is empty.
	os.Setenv("TEST_ENV_KEY", "env-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_ENV_KEY")      //nolint:errcheck // Test cleanup

	result = getConfigValue("", "TEST_ENV_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Test default when both are empty.
	result = getConfigValue("", "NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	// Create temp .env file.
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
POD_TITLE=My Library
LOG_LEVEL=debug
DATA_DIR=/test/path
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	// Clear any existing env vars.
	vars := []string{"POD_TITLE", "LOG_LEVEL", "DATA_DIR", "QUOTED_VALUE", "SINGLE_QUOTED"}
	for _, v := range vars {
		os.Unsetenv(v) //nolint:errcheck // Test cleanup
	}
	defer func() {
		for _, v := range vars {
			os.Unsetenv(v) //nolint:errcheck // Test cleanup
		}
	}()

	// Load the file.
	err = loadEnvFile(envFile)
	require.NoError(t, err)

	// Verify values were loaded.
	assert.Equal(t, "My Library", os.Getenv("POD_TITLE"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "/test/path", os.Getenv("DATA_DIR"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
ANOTHER_VALID=value
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/file/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	// Set env var first.
	os.Setenv("TEST_VAR", "original-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("TEST_VAR")           //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `TEST_VAR=new-value`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	// Original value should be preserved.
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoadEnvFile_Whitespace(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `  KEY_WITH_SPACES  =  value with spaces  `
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	os.Unsetenv("KEY_WITH_SPACES")       //nolint:errcheck // Test cleanup
	defer os.Unsetenv("KEY_WITH_SPACES") //nolint:errcheck // Test cleanup

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	// Whitespace should be trimmed.
	assert.Equal(t, "value with spaces", os.Getenv("KEY_WITH_SPACES"))
}
