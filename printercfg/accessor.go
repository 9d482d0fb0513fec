package printercfg

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/go-ini/ini"
	"github.com/hashicorp/go-hclog"
)

const (
	ParamPoints     = "points"
	ParamProbeCount = "probe_count"
	ParamBedTemp    = "bed_mesh_temp"
	ParamZOffset    = "z_offset"
)

// State is what the printer configuration says about bed leveling
type State struct {
	Profile  Profile
	GridSize int
	BedTemp  int
	ZOffset  float64
	Points   string
}

// Accessor reads and edits a Klipper-style printer configuration file
type Accessor struct {
	profiles []Profile
	logger   hclog.Logger
}

// NewAccessor creates an accessor that looks for the configuration in profiles
func NewAccessor(profiles []Profile, logger hclog.Logger) *Accessor {
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Accessor{
		profiles: profiles,
		logger:   logger.Named("printercfg"),
	}
}

// Locate detects which configuration file is in use
func (a *Accessor) Locate() (Profile, error) {
	return Detect(a.profiles)
}

// ReadState parses the leveling parameters out of the configuration file.
// When a parameter appears more than once the first occurrence wins.
func (a *Accessor) ReadState() (State, error) {
	profile, err := a.Locate()
	if err != nil {
		return State{}, err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SkipUnrecognizableLines:    true,
		SpaceBeforeInlineComment:   true,
	}, profile.ConfigPath)
	if err != nil {
		return State{}, fmt.Errorf("failed to parse %s: %w", profile.ConfigPath, err)
	}

	params := firstValues(cfg)
	state := State{
		Profile:  profile,
		GridSize: profile.DefaultGridSize,
		Points:   joinRows(params[ParamPoints]),
	}

	if raw, ok := params[ParamProbeCount]; ok {
		n, err := parseProbeCount(raw)
		if err != nil {
			a.logger.Warn("ignoring bad probe_count", "value", raw, "error", err)
		} else {
			state.GridSize = n
		}
	}
	if raw, ok := params[ParamBedTemp]; ok {
		state.BedTemp, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			a.logger.Warn("ignoring bad bed_mesh_temp", "value", raw)
		}
	}
	if raw, ok := params[ParamZOffset]; ok {
		state.ZOffset, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			a.logger.Warn("ignoring bad z_offset", "value", raw)
		}
	}
	return state, nil
}

func firstValues(cfg *ini.File) map[string]string {
	params := make(map[string]string)
	for _, sec := range cfg.Sections() {
		for _, key := range sec.Keys() {
			if _, seen := params[key.Name()]; !seen {
				params[key.Name()] = key.Value()
			}
		}
	}
	return params
}

// joinRows flattens a multi-line points value into one comma separated list
func joinRows(raw string) string {
	var rows []string
	for _, row := range strings.Split(raw, "\n") {
		row = strings.TrimSuffix(strings.TrimSpace(row), ",")
		if row != "" {
			rows = append(rows, strings.TrimSpace(row))
		}
	}
	return strings.Join(rows, ", ")
}

// parseProbeCount accepts "N" or "X,Y" and returns the larger axis
func parseProbeCount(raw string) (int, error) {
	parts := strings.Split(raw, ",")
	if len(parts) > 2 {
		return 0, fmt.Errorf("bad probe_count %q", raw)
	}
	n := 0
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("bad probe_count %q", raw)
		}
		if v > n {
			n = v
		}
	}
	return n, nil
}

// UpdateParameter rewrites the value of the first top-level name in the
// file at path, dropping any indented continuation lines of the old value.
// Everything else in the file is left byte for byte as it was.
func (a *Accessor) UpdateParameter(path, name, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	found := -1
	var replaced string
	for i, line := range lines {
		if prefix, ok := parameterPrefix(line, name); ok {
			found = i
			replaced = prefix + value + lineEnding(line)
			break
		}
	}
	if found < 0 {
		return fmt.Errorf("%s in %s: %w", name, path, models.ErrParameterNotFound)
	}

	end := found + 1
	for end < len(lines) && isContinuation(lines[end]) {
		end++
	}

	var buf bytes.Buffer
	for _, line := range lines[:found] {
		buf.WriteString(line)
	}
	buf.WriteString(replaced)
	for _, line := range lines[end:] {
		buf.WriteString(line)
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	a.logger.Debug("updated printer parameter", "path", path, "name", name)
	return nil
}

// parameterPrefix returns the "name: " part of line when line assigns name
func parameterPrefix(line, name string) (string, bool) {
	if !strings.HasPrefix(line, name) {
		return "", false
	}
	rest := line[len(name):]
	trimmed := strings.TrimLeft(rest, " \t")
	if trimmed == "" || (trimmed[0] != ':' && trimmed[0] != '=') {
		return "", false
	}
	delim := len(line) - len(trimmed) + 1
	prefix := line[:delim]

	// keep the original spacing after the delimiter, defaulting to one space
	after := strings.TrimRight(line[delim:], "\r\n")
	space := after[:len(after)-len(strings.TrimLeft(after, " \t"))]
	if strings.TrimSpace(after) == "" {
		space = " "
	}
	return prefix + space, true
}

func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return line[0] == ' ' || line[0] == '\t'
}

func lineEnding(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
