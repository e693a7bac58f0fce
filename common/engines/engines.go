// Package engines loads the agent engine catalog: named CLI command
// templates the orchestrator spawns per role. The catalog lives in a
// YAML file; a built-in set (codex, claude, mock) covers missing files
// so local runs never need config.
package engines

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

// RolePlaceholder in a command template is replaced by the role name
const RolePlaceholder = "{ROLE}"

// Engine is one named command template
type Engine struct {
	Command []string `yaml:"command" json:"command"`
	Workdir string   `yaml:"workdir,omitempty" json:"workdir,omitempty"`
}

// RoleProfile tunes how a role invokes its engine: an extra prompt
// argument and an override working directory
type RoleProfile struct {
	Prompt  string `json:"prompt,omitempty"`
	Workdir string `json:"workdir,omitempty"`
}

// Catalog maps engine names to templates
type Catalog struct {
	Engines map[string]Engine `yaml:"engines"`
}

// Default returns the built-in catalog. The mock engine just echoes;
// tests and local development run on it.
func Default() *Catalog {
	return &Catalog{Engines: map[string]Engine{
		"codex":  {Command: []string{"codex", "exec", "--role", RolePlaceholder}},
		"claude": {Command: []string{"claude", "-p", "[role=" + RolePlaceholder + "] continue the mission"}},
		"mock":   {Command: []string{"echo", "[engine=mock role=" + RolePlaceholder + "] ok"}},
	}}
}

// Load reads the catalog from path. A missing file yields the built-in
// defaults; a present file is merged over them so mock stays
// resolvable.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read engines config %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse engines config %s: %w", path, err)
	}
	if catalog.Engines == nil {
		catalog.Engines = make(map[string]Engine)
	}
	for name, engine := range Default().Engines {
		if _, exists := catalog.Engines[name]; !exists {
			catalog.Engines[name] = engine
		}
	}
	return &catalog, nil
}

// Resolve returns the engine for name. Unknown names fall back to the
// mock engine; a named engine with an empty command is a config error.
func (c *Catalog) Resolve(name string) (Engine, error) {
	engine, exists := c.Engines[name]
	if !exists {
		return c.mock(), nil
	}
	if len(engine.Command) == 0 {
		return Engine{}, apperr.Validation(apperr.CodeInvalidPayload, fmt.Sprintf("engine config invalid: %s", name))
	}
	return engine, nil
}

// Names lists the catalog's engine names, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Engines))
	for name := range c.Engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) mock() Engine {
	if engine, ok := c.Engines["mock"]; ok && len(engine.Command) > 0 {
		return engine
	}
	return Default().Engines["mock"]
}

// ForRole renders the template for one role: {ROLE} substitution in
// every argument, the profile prompt appended as a final argument, and
// the working directory resolved (profile overrides engine default).
func (e Engine) ForRole(role string, profile RoleProfile) (argv []string, workdir string) {
	argv = make([]string, len(e.Command))
	for i, arg := range e.Command {
		argv[i] = strings.ReplaceAll(arg, RolePlaceholder, role)
	}
	if profile.Prompt != "" {
		argv = append(argv, fmt.Sprintf("[role=%s] %s", role, profile.Prompt))
	}
	workdir = e.Workdir
	if profile.Workdir != "" {
		workdir = profile.Workdir
	}
	return argv, workdir
}

// LoadRoleProfiles reads the role profile file (JSON object keyed by
// role name). A missing file is an empty profile set.
func LoadRoleProfiles(path string) (map[string]RoleProfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]RoleProfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read role profiles %s: %w", path, err)
	}

	profiles := make(map[string]RoleProfile)
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse role profiles %s: %w", path, err)
	}
	return profiles, nil
}
