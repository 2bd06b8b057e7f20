package model

// Environment is a deployment target a scenario can run against.
type Environment struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
}

// Scenario is a runnable test target inside a project.
type Scenario struct {
	ID   string   `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	File string   `json:"file" yaml:"file"`
	Tags []string `json:"tags" yaml:"tags"`

	// Runner selects a registered runner by name. Empty means the default.
	Runner string `json:"runner,omitempty" yaml:"runner,omitempty"`
}

// Project groups the environments and scenarios of one application.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Environments []Environment `json:"environments"`
	Scenarios    []Scenario    `json:"scenarios"`
}

// Descriptor is a resolved (project, scenario, environment) triple.
type Descriptor struct {
	Project     Project
	Scenario    Scenario
	Environment Environment
}
