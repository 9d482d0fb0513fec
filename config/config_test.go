package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devadigapratham/leveling3d/printercfg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(viper.New(), fs)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.HTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "/user/webfs", cfg.SlotDir)
	assert.Equal(t, "/user/webfs/parameters.cfg", cfg.ParamsFile)
	assert.False(t, cfg.Journal)
	assert.Equal(t, printercfg.DefaultProfiles, cfg.Profiles())
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("LEVELING_SLOT_DIR", "/tmp/slots")
	t.Setenv("LEVELING_HTTP_ADDR", ":9999")

	cfg, err := load(t, "--http-addr", ":8081", "--printer-config", "/a.cfg,/b.cfg", "--default-grid-size", "4")
	require.NoError(t, err)

	// flags win over the environment
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/slots", cfg.SlotDir)

	profiles := cfg.Profiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, "/a.cfg", profiles[0].ConfigPath)
	assert.Equal(t, 4, profiles[1].DefaultGridSize)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leveling.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api-prefix: /v1
journal: true
journal-dir: /tmp/journal
log-level: debug
printers:
  - model: Kobra 2 Neo
    config_path: /user/printer_neo.cfg
    default_grid_size: 4
  - model: Other
    config_path: /user/other.cfg
`), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "/v1", cfg.APIPrefix)
	assert.True(t, cfg.Journal)
	assert.Equal(t, "/tmp/journal", cfg.JournalDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []printercfg.Profile{
		{Model: "Kobra 2 Neo", ConfigPath: "/user/printer_neo.cfg", DefaultGridSize: 4},
		{Model: "Other", ConfigPath: "/user/other.cfg", DefaultGridSize: 5},
	}, cfg.Profiles())
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.APIPrefix = "api"
	cfg.DefaultGridSize = 0
	cfg.Journal = true
	cfg.NodeID = ""
	cfg.Printers = []printercfg.Profile{{Model: "broken"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with /")
	assert.Contains(t, err.Error(), "default grid size")
	assert.Contains(t, err.Error(), "node ID is required")
	assert.Contains(t, err.Error(), "no config_path")
}
