package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/devadigapratham/leveling3d/printercfg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LEVELING_HTTP_ADDR
const EnvPrefix = "LEVELING"

// Flag names double as viper keys
const (
	keyConfig          = "config"
	keyHTTPAddr        = "http-addr"
	keyAPIPrefix       = "api-prefix"
	keySlotDir         = "slot-dir"
	keyParamsFile      = "params-file"
	keyPrinterConfigs  = "printer-config"
	keyDefaultGridSize = "default-grid-size"
	keyJournal         = "journal"
	keyJournalDir      = "journal-dir"
	keyNodeID          = "node-id"
	keyRaftAddr        = "raft-addr"
	keyLogLevel        = "log-level"
	keyLogJSON         = "log-json"
	keyLogFile         = "log-file"

	// keyPrinters is only read from the config file
	keyPrinters = "printers"
)

// Config represents the application configuration
type Config struct {
	// HTTP configuration
	HTTPAddr  string
	APIPrefix string

	// Leveling data locations
	SlotDir         string
	ParamsFile      string
	PrinterConfigs  []string
	Printers        []printercfg.Profile
	DefaultGridSize int

	// Write journal configuration
	Journal    bool
	JournalDir string
	NodeID     string
	RaftAddr   string

	// Logging configuration
	LogLevel string
	LogJSON  bool
	LogFile  string
}

// Default returns the configuration used on the printer
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		APIPrefix:       "/api",
		SlotDir:         "/user/webfs",
		ParamsFile:      "/user/webfs/parameters.cfg",
		DefaultGridSize: 5,
		JournalDir:      "/user/webfs/journal",
		NodeID:          "printer",
		RaftAddr:        "127.0.0.1:7000",
		LogLevel:        "info",
	}
}

// BindFlags defines the server flags on fs
func BindFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String(keyConfig, "", "Optional YAML config file")
	fs.String(keyHTTPAddr, def.HTTPAddr, "HTTP API address")
	fs.String(keyAPIPrefix, def.APIPrefix, "Path prefix of the leveling API")
	fs.String(keySlotDir, def.SlotDir, "Directory holding the saved mesh slots")
	fs.String(keyParamsFile, def.ParamsFile, "Key=value settings file holding the precision")
	fs.StringSlice(keyPrinterConfigs, nil, "Printer config paths to probe, in order (default: known printer models)")
	fs.Int(keyDefaultGridSize, def.DefaultGridSize, "Grid size assumed when the printer config has no probe_count")
	fs.Bool(keyJournal, def.Journal, "Record every write in a Raft journal before applying it")
	fs.String(keyJournalDir, def.JournalDir, "Journal storage directory")
	fs.String(keyNodeID, def.NodeID, "Journal node ID")
	fs.String(keyRaftAddr, def.RaftAddr, "Journal transport address")
	fs.String(keyLogLevel, def.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.Bool(keyLogJSON, def.LogJSON, "Log in JSON format")
	fs.String(keyLogFile, def.LogFile, "Also write logs to this file, rotated")
}

// Load resolves the configuration from flags, LEVELING_* environment
// variables and the optional config file, in that order of precedence.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString(keyConfig)); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("config file %q is a directory", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	config := &Config{
		HTTPAddr:        strings.TrimSpace(v.GetString(keyHTTPAddr)),
		APIPrefix:       strings.TrimSpace(v.GetString(keyAPIPrefix)),
		SlotDir:         strings.TrimSpace(v.GetString(keySlotDir)),
		ParamsFile:      strings.TrimSpace(v.GetString(keyParamsFile)),
		PrinterConfigs:  v.GetStringSlice(keyPrinterConfigs),
		DefaultGridSize: v.GetInt(keyDefaultGridSize),
		Journal:         v.GetBool(keyJournal),
		JournalDir:      strings.TrimSpace(v.GetString(keyJournalDir)),
		NodeID:          strings.TrimSpace(v.GetString(keyNodeID)),
		RaftAddr:        strings.TrimSpace(v.GetString(keyRaftAddr)),
		LogLevel:        strings.TrimSpace(v.GetString(keyLogLevel)),
		LogJSON:         v.GetBool(keyLogJSON),
		LogFile:         strings.TrimSpace(v.GetString(keyLogFile)),
	}
	if v.IsSet(keyPrinters) {
		if err := v.UnmarshalKey(keyPrinters, &config.Printers); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyPrinters, err)
		}
		for i := range config.Printers {
			if config.Printers[i].DefaultGridSize <= 0 {
				config.Printers[i].DefaultGridSize = config.DefaultGridSize
			}
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP address is required"))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API prefix %q must start with /", c.APIPrefix))
	}
	if c.SlotDir == "" {
		errs = append(errs, errors.New("slot directory is required"))
	}
	if c.ParamsFile == "" {
		errs = append(errs, errors.New("params file is required"))
	}
	for i, p := range c.Printers {
		if p.ConfigPath == "" {
			errs = append(errs, fmt.Errorf("printer %d (%s) has no config_path", i, p.Model))
		}
	}
	if c.DefaultGridSize <= 0 {
		errs = append(errs, fmt.Errorf("default grid size must be positive, got %d", c.DefaultGridSize))
	}
	if c.Journal {
		if c.JournalDir == "" {
			errs = append(errs, errors.New("journal directory is required"))
		}
		if c.NodeID == "" {
			errs = append(errs, errors.New("node ID is required"))
		}
		if c.RaftAddr == "" {
			errs = append(errs, errors.New("raft address is required"))
		}
	}
	return errors.Join(errs...)
}

// Profiles returns the printer profiles to probe. Profiles from the config
// file win over --printer-config paths, which win over the known models.
func (c *Config) Profiles() []printercfg.Profile {
	switch {
	case len(c.Printers) > 0:
		return c.Printers
	case len(c.PrinterConfigs) > 0:
		return printercfg.ProfilesFromPaths(c.PrinterConfigs, c.DefaultGridSize)
	}
	profiles := make([]printercfg.Profile, len(printercfg.DefaultProfiles))
	copy(profiles, printercfg.DefaultProfiles)
	return profiles
}
