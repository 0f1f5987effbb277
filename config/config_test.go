package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/recovery"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cmm.IntentPerceptual, cfg.Intent())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.IsType(t, &recovery.StrictStrategy{}, cfg.Strategy())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
  format: json
store:
  in_memory: true
  path: ""
convert:
  intent: relative
  recovery: lenient
`))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, cmm.IntentRelativeColorimetric, cfg.Intent())
	assert.Equal(t, 8, cfg.Convert.MaxRetries, "unset fields keep defaults")
	assert.IsType(t, &recovery.LenientStrategy{}, cfg.Strategy())

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestParseRejects(t *testing.T) {
	for _, doc := range []string{
		"log:\n  level: loud\n",
		"convert:\n  intent: vivid\n",
		"convert:\n  max_retries: -1\n",
		"store:\n  path: \"\"\n",
		"unknown: 1\n",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colorkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	t.Setenv(EnvVar, path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.Level())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
