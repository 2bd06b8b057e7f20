package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/conductor/internal/model"
)

// environmentsBase is the file stem holding a project's environments.
const environmentsBase = "environments"

// FS is a Provider backed by an applications directory:
//
//	<root>/<project>/environments.json   array of environments
//	<root>/<project>/**/*.json           arrays of scenarios
//
// YAML (.yaml, .yml) is accepted wherever JSON is. Files that fail to parse
// or validate are skipped. The loaded snapshot is cached until Reload.
type FS struct {
	root   string
	logger *slog.Logger

	mu       sync.RWMutex
	projects []model.Project
}

// NewFS loads the catalog rooted at root. A missing root yields an empty
// catalog, not an error.
func NewFS(root string, logger *slog.Logger) (*FS, error) {
	c := &FS{root: root, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the applications directory.
func (c *FS) Root() string {
	return c.root
}

// Projects returns the cached project list.
func (c *FS) Projects() []model.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Resolve implements Provider against the cached snapshot.
func (c *FS) Resolve(projectID, scenarioID, environmentID string) (model.Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return resolve(c.projects, projectID, scenarioID, environmentID)
}

// Reload rescans the applications directory and swaps the snapshot.
func (c *FS) Reload() error {
	projects, err := c.load()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.projects = projects
	c.mu.Unlock()

	c.logger.Debug("catalog loaded", "root", c.root, "projects", len(projects))
	return nil
}

func (c *FS) load() ([]model.Project, error) {
	entries, err := os.ReadDir(c.root)
	if os.IsNotExist(err) {
		return []model.Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read applications dir: %w", err)
	}

	projects := []model.Project{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projects = append(projects, c.loadProject(entry.Name()))
	}
	return projects, nil
}

func (c *FS) loadProject(name string) model.Project {
	dir := filepath.Join(c.root, name)
	p := model.Project{
		ID:           name,
		Name:         strings.ToUpper(name),
		Environments: []model.Environment{},
		Scenarios:    []model.Scenario{},
	}

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, environmentsBase+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var envs []model.Environment
		if err := readDocument(path, environmentsSchema, &envs); err != nil {
			c.logger.Warn("skipping environments file", "path", path, "error", err)
			continue
		}
		p.Environments = append(p.Environments, envs...)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("walk catalog", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !isCatalogFile(path) || isEnvironmentsFile(path) {
			return nil
		}
		var scenarios []model.Scenario
		if err := readDocument(path, scenariosSchema, &scenarios); err != nil {
			c.logger.Debug("skipping scenario file", "path", path, "error", err)
			return nil
		}
		p.Scenarios = append(p.Scenarios, scenarios...)
		return nil
	})
	if err != nil {
		c.logger.Warn("walk project", "project", name, "error", err)
	}

	return p
}

// readDocument decodes a JSON or YAML file, validates it against schema and
// unmarshals it into out.
func readDocument(path string, schema *jsonschema.Schema, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fmt.Errorf("empty document")
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var y any
		if err := yaml.Unmarshal(raw, &y); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
		// Normalize through JSON so the validator sees JSON types.
		b, err := json.Marshal(y)
		if err != nil {
			return fmt.Errorf("normalize yaml: %w", err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func isCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func isEnvironmentsFile(path string) bool {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) == environmentsBase
}
