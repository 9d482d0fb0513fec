package printercfg

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-ini/ini"
)

// ParamStore is the small key=value settings file kept next to the slots
type ParamStore struct {
	mu   sync.RWMutex
	path string
	file *ini.File
}

// LoadParams opens the settings file at path. A missing file starts empty
// and is created on the first Persist.
func LoadParams(path string) (*ParamStore, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Loose:                   true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &ParamStore{path: path, file: file}, nil
}

// Path returns the backing file
func (p *ParamStore) Path() string {
	return p.path
}

// Get returns the raw value of key
func (p *ParamStore) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sec := p.file.Section("")
	if !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// Set stores value under key in memory
func (p *ParamStore) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.file.Section("").Key(key).SetValue(value)
}

// Persist writes the settings back to disk as plain key=value lines,
// which is what the firmware reads. Key order is kept.
func (p *ParamStore) Persist() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var buf bytes.Buffer
	for _, sec := range p.file.Sections() {
		if sec.Name() != ini.DefaultSection {
			fmt.Fprintf(&buf, "[%s]\n", sec.Name())
		}
		for _, key := range sec.Keys() {
			fmt.Fprintf(&buf, "%s=%s\n", key.Name(), key.Value())
		}
	}

	if err := writeFileAtomic(p.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.path, err)
	}
	return nil
}
