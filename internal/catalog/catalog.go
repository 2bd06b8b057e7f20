// Package catalog resolves (project, scenario, environment) identifiers into
// immutable run descriptors. The filesystem catalog reads an applications
// directory laid out as one sub-directory per project; the static catalog
// serves a fixed list and is used by tests and the test server.
package catalog

import (
	"errors"
	"fmt"

	"github.com/seantiz/conductor/internal/model"
)

// Validation errors returned by Resolve.
var (
	ErrInvalidProject     = errors.New("invalid projectId")
	ErrInvalidScenario    = errors.New("invalid scenarioId")
	ErrInvalidEnvironment = errors.New("invalid environmentId")
)

// Provider is the read-only source of project definitions.
type Provider interface {
	Projects() []model.Project
	Resolve(projectID, scenarioID, environmentID string) (model.Descriptor, error)
}

// resolve looks the triple up in projects. Project is checked first, then
// scenario, then environment.
func resolve(projects []model.Project, projectID, scenarioID, environmentID string) (model.Descriptor, error) {
	for _, p := range projects {
		if p.ID != projectID {
			continue
		}
		d := model.Descriptor{Project: p}

		found := false
		for _, s := range p.Scenarios {
			if s.ID == scenarioID {
				d.Scenario = s
				found = true
				break
			}
		}
		if !found {
			return model.Descriptor{}, fmt.Errorf("%w: %q in project %q", ErrInvalidScenario, scenarioID, projectID)
		}

		found = false
		for _, e := range p.Environments {
			if e.ID == environmentID {
				d.Environment = e
				found = true
				break
			}
		}
		if !found {
			return model.Descriptor{}, fmt.Errorf("%w: %q in project %q", ErrInvalidEnvironment, environmentID, projectID)
		}
		return d, nil
	}
	return model.Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidProject, projectID)
}

// Static is a Provider over a fixed project list.
type Static struct {
	projects []model.Project
}

// NewStatic returns a catalog serving projects.
func NewStatic(projects ...model.Project) *Static {
	return &Static{projects: projects}
}

func (s *Static) Projects() []model.Project {
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *Static) Resolve(projectID, scenarioID, environmentID string) (model.Descriptor, error) {
	return resolve(s.projects, projectID, scenarioID, environmentID)
}
