package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxHTTPRequests caps outbound calls per request for modules
// that configure allowed hosts without an explicit limit.
const DefaultMaxHTTPRequests = 10

// Module is one [[module]] entry from the deployment file.
type Module struct {
	Route           string            `toml:"route"`
	Module          string            `toml:"module"`
	Entrypoint      string            `toml:"entrypoint"`
	Volumes         map[string]string `toml:"volumes"`
	Environment     map[string]string `toml:"environment"`
	AllowedHosts    []string          `toml:"allowed_hosts"`
	MaxHTTPRequests int               `toml:"max_http_requests"`

	// Path is the module binary's absolute location, resolved against
	// the deployment file's directory at load time.
	Path string `toml:"-"`
}

// Name returns the identifier used for this module in logs, metrics,
// and the projected SCRIPT_NAME: the file stem of the module path.
func (m *Module) Name() string {
	base := filepath.Base(m.Module)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type modulesFile struct {
	Modules []Module `toml:"module"`
}

// LoadModules reads and validates the deployment file at path. Relative
// module paths resolve against the file's directory. Routes must be
// unique; modules with allowed hosts but no explicit call limit get
// DefaultMaxHTTPRequests.
func LoadModules(path string) ([]Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules file: %w", err)
	}

	var file modulesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse modules file: %w", err)
	}
	if len(file.Modules) == 0 {
		return nil, fmt.Errorf("modules file %s defines no modules", path)
	}

	base := filepath.Dir(path)
	routes := make(map[string]int, len(file.Modules))
	for i := range file.Modules {
		m := &file.Modules[i]
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("module %d: %w", i+1, err)
		}
		if prev, ok := routes[m.Route]; ok {
			return nil, fmt.Errorf("module %d: route %q already used by module %d", i+1, m.Route, prev)
		}
		routes[m.Route] = i + 1

		if len(m.AllowedHosts) > 0 && m.MaxHTTPRequests == 0 {
			m.MaxHTTPRequests = DefaultMaxHTTPRequests
		}
		m.Path = m.Module
		if !filepath.IsAbs(m.Path) {
			m.Path = filepath.Join(base, m.Path)
		}
	}
	return file.Modules, nil
}

func (m *Module) validate() error {
	if m.Route == "" || !strings.HasPrefix(m.Route, "/") {
		return fmt.Errorf("route %q must begin with /", m.Route)
	}
	if m.Module == "" {
		return fmt.Errorf("module path is required")
	}
	for guest, host := range m.Volumes {
		if !strings.HasPrefix(guest, "/") {
			return fmt.Errorf("volume %q must be an absolute guest path", guest)
		}
		if host == "" {
			return fmt.Errorf("volume %q has no host directory", guest)
		}
	}
	return nil
}

// CheckFiles verifies that every module binary and volume directory
// exists on disk. LoadModules leaves this out so a deployment file can
// be linted on a machine that lacks the artifacts.
func CheckFiles(modules []Module) error {
	for _, m := range modules {
		info, err := os.Stat(m.Path)
		if err != nil {
			return fmt.Errorf("module %s: %w", m.Name(), err)
		}
		if info.IsDir() {
			return fmt.Errorf("module %s: %s is a directory", m.Name(), m.Path)
		}
		for guest, host := range m.Volumes {
			info, err := os.Stat(host)
			if err != nil {
				return fmt.Errorf("module %s: volume %s: %w", m.Name(), guest, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("module %s: volume %s: %s is not a directory", m.Name(), guest, host)
			}
		}
	}
	return nil
}
