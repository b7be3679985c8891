package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "BOARDSYNC_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "BOARDSYNC_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "BOARDSYNC_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "BOARDSYNC_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "BOARDSYNC_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses composite", key: "BOARDSYNC_TEST_DUR_COMP", setVal: strPtr("1m30s"), fallback: 0, want: 90 * time.Second},
		{name: "errors on invalid", key: "BOARDSYNC_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "BOARDSYNC_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOARDSYNC_BOARD_ID", "b4f9c3f0-0000-0000-0000-000000000001")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BOARDSYNC_TOKEN")
}

func TestLoad_MissingBoardID(t *testing.T) {
	t.Setenv("BOARDSYNC_TOKEN", "some-token")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BOARDSYNC_BOARD_ID")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		{name: "SERVER_URL not absolute", envKey: "BOARDSYNC_SERVER_URL", envVal: "localhost:8080", errMsg: "BOARDSYNC_SERVER_URL"},
		{name: "SERVER_URL bad scheme", envKey: "BOARDSYNC_SERVER_URL", envVal: "ftp://host", errMsg: "BOARDSYNC_SERVER_URL"},
		{name: "REQUEST_TIMEOUT invalid", envKey: "BOARDSYNC_REQUEST_TIMEOUT", envVal: "badval", errMsg: "BOARDSYNC_REQUEST_TIMEOUT"},
		{name: "REQUEST_TIMEOUT zero", envKey: "BOARDSYNC_REQUEST_TIMEOUT", envVal: "0s", errMsg: "BOARDSYNC_REQUEST_TIMEOUT"},
		{name: "RECONNECT_MIN zero", envKey: "BOARDSYNC_RECONNECT_MIN", envVal: "0s", errMsg: "BOARDSYNC_RECONNECT_MIN"},
		{name: "RECONNECT_MAX below min", envKey: "BOARDSYNC_RECONNECT_MAX", envVal: "1ms", errMsg: "BOARDSYNC_RECONNECT_MAX"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Required vars are set so failures come from the var under test.
			t.Setenv("BOARDSYNC_TOKEN", "some-token")
			t.Setenv("BOARDSYNC_BOARD_ID", "b4f9c3f0-0000-0000-0000-000000000001")
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOARDSYNC_TOKEN", "some-token")
	t.Setenv("BOARDSYNC_BOARD_ID", "b4f9c3f0-0000-0000-0000-000000000001")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Server.ReconnectMin)
	assert.Equal(t, 30*time.Second, cfg.Server.ReconnectMax)
	assert.Equal(t, "some-token", cfg.Auth.Token)
	assert.Equal(t, "b4f9c3f0-0000-0000-0000-000000000001", cfg.Board.ID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		"BOARDSYNC_SERVER_URL":      "https://board.prod.internal",
		"BOARDSYNC_REQUEST_TIMEOUT": "5s",
		"BOARDSYNC_RECONNECT_MIN":   "500ms",
		"BOARDSYNC_RECONNECT_MAX":   "10s",
		"BOARDSYNC_TOKEN":           "prod-token",
		"BOARDSYNC_BOARD_ID":        "b4f9c3f0-0000-0000-0000-000000000002",
		"BOARDSYNC_LOG_LEVEL":       "debug",
		"BOARDSYNC_LOG_FORMAT":      "json",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://board.prod.internal", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.ReconnectMin)
	assert.Equal(t, 10*time.Second, cfg.Server.ReconnectMax)
	assert.Equal(t, "prod-token", cfg.Auth.Token)
	assert.Equal(t, "b4f9c3f0-0000-0000-0000-000000000002", cfg.Board.ID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	// validBase returns a Config that passes validation.
	validBase := func() *Config {
		return &Config{
			Server: ServerConfig{
				URL:            "http://localhost:8080",
				RequestTimeout: 15 * time.Second,
				ReconnectMin:   time.Second,
				ReconnectMax:   30 * time.Second,
			},
			Auth:  AuthConfig{Token: "some-token"},
			Board: BoardConfig{ID: "b4f9c3f0-0000-0000-0000-000000000001"},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validBase().validate())
	})

	t.Run("empty token fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Auth.Token = ""
		assert.ErrorContains(t, c.validate(), "BOARDSYNC_TOKEN")
	})

	t.Run("empty board id fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Board.ID = ""
		assert.ErrorContains(t, c.validate(), "BOARDSYNC_BOARD_ID")
	})

	t.Run("relative server url fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.URL = "/api"
		assert.ErrorContains(t, c.validate(), "BOARDSYNC_SERVER_URL")
	})

	t.Run("websocket scheme fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.URL = "ws://localhost:8080"
		assert.ErrorContains(t, c.validate(), "BOARDSYNC_SERVER_URL")
	})

	t.Run("reconnect max below min fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.ReconnectMax = c.Server.ReconnectMin / 2
		assert.ErrorContains(t, c.validate(), "BOARDSYNC_RECONNECT_MAX")
	})
}

// ---------------------------------------------------------------------------
// Test helper
// ---------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}
