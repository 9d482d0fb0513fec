package printercfg

import (
	"fmt"
	"os"

	"github.com/devadigapratham/leveling3d/api/models"
)

// Profile describes where a printer model keeps its configuration
type Profile struct {
	Model           string `mapstructure:"model"`
	ConfigPath      string `mapstructure:"config_path"`
	DefaultGridSize int    `mapstructure:"default_grid_size"`
}

// DefaultProfiles are probed in order when no explicit profile is configured
var DefaultProfiles = []Profile{
	{Model: "Kobra 2 Pro", ConfigPath: "/user/printer.cfg", DefaultGridSize: 5},
	{Model: "Kobra 2 Plus", ConfigPath: "/user/printer_plus.cfg", DefaultGridSize: 6},
	{Model: "Kobra 2 Max", ConfigPath: "/user/printer_max.cfg", DefaultGridSize: 7},
}

// ProfilesFromPaths builds profiles for explicitly configured config files
func ProfilesFromPaths(paths []string, defaultGridSize int) []Profile {
	profiles := make([]Profile, 0, len(paths))
	for _, p := range paths {
		profiles = append(profiles, Profile{
			Model:           "custom",
			ConfigPath:      p,
			DefaultGridSize: defaultGridSize,
		})
	}
	return profiles
}

// Detect returns the first profile whose configuration file exists
func Detect(profiles []Profile) (Profile, error) {
	for _, p := range profiles {
		st, err := os.Stat(p.ConfigPath)
		if err == nil && st.Mode().IsRegular() {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("tried %d locations: %w", len(profiles), models.ErrConfigNotFound)
}
