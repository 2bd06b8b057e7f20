package model

import "time"

// Status is the lifecycle state of an execution.
type Status string

// Execution status constants.
const (
	StatusCreated   Status = "CREATED"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses have no entry.
var validTransitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusQueued:    true,
		StatusRunning:   true,
		StatusCancelled: true,
	},
	StatusQueued: {
		StatusRunning:   true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusSuccess:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether s is SUCCESS, FAILED or CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusQueued, StatusRunning, StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Execution is one run of a scenario against an environment.
type Execution struct {
	ExecutionID     string     `json:"executionId"`
	ProjectID       string     `json:"projectId"`
	ProjectName     string     `json:"projectName"`
	ScenarioID      string     `json:"scenarioId"`
	ScenarioName    string     `json:"scenarioName"`
	EnvironmentID   string     `json:"environmentId"`
	EnvironmentName string     `json:"environmentName"`
	File            string     `json:"file"`
	Tags            []string   `json:"tags"`
	BaseURL         string     `json:"baseUrl"`
	Runner          string     `json:"runner,omitempty"`
	Status          Status     `json:"status"`
	ExitCode        *int       `json:"exitCode,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	DurationMS      *int64     `json:"durationMs,omitempty"`
}

// NewExecution builds a CREATED execution from a resolved catalog descriptor.
func NewExecution(id string, d Descriptor, now time.Time) *Execution {
	tags := make([]string, len(d.Scenario.Tags))
	copy(tags, d.Scenario.Tags)
	return &Execution{
		ExecutionID:     id,
		ProjectID:       d.Project.ID,
		ProjectName:     d.Project.Name,
		ScenarioID:      d.Scenario.ID,
		ScenarioName:    d.Scenario.Name,
		EnvironmentID:   d.Environment.ID,
		EnvironmentName: d.Environment.Name,
		File:            d.Scenario.File,
		Tags:            tags,
		BaseURL:         d.Environment.BaseURL,
		Runner:          d.Scenario.Runner,
		Status:          StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy safe to hand outside the engine lock.
func (e *Execution) Clone() *Execution {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	if e.ExitCode != nil {
		v := *e.ExitCode
		c.ExitCode = &v
	}
	if e.StartedAt != nil {
		v := *e.StartedAt
		c.StartedAt = &v
	}
	if e.FinishedAt != nil {
		v := *e.FinishedAt
		c.FinishedAt = &v
	}
	if e.DurationMS != nil {
		v := *e.DurationMS
		c.DurationMS = &v
	}
	return &c
}

// HistoryRecord is the immutable snapshot of a finished execution.
type HistoryRecord struct {
	RecordID        string     `json:"recordId"`
	ExecutionID     string     `json:"executionId"`
	ProjectID       string     `json:"projectId"`
	ProjectName     string     `json:"projectName"`
	ScenarioID      string     `json:"scenarioId"`
	ScenarioName    string     `json:"scenarioName"`
	File            string     `json:"file"`
	Tags            []string   `json:"tags"`
	EnvironmentID   string     `json:"environmentId"`
	EnvironmentName string     `json:"environmentName"`
	BaseURL         string     `json:"baseUrl"`
	Status          Status     `json:"status"`
	ExitCode        *int       `json:"exitCode,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	DurationMS      *int64     `json:"durationMs,omitempty"`
}

// Record snapshots a terminal execution into a new history record.
func (e *Execution) Record() HistoryRecord {
	c := e.Clone()
	return HistoryRecord{
		RecordID:        NewID(),
		ExecutionID:     c.ExecutionID,
		ProjectID:       c.ProjectID,
		ProjectName:     c.ProjectName,
		ScenarioID:      c.ScenarioID,
		ScenarioName:    c.ScenarioName,
		File:            c.File,
		Tags:            c.Tags,
		EnvironmentID:   c.EnvironmentID,
		EnvironmentName: c.EnvironmentName,
		BaseURL:         c.BaseURL,
		Status:          c.Status,
		ExitCode:        c.ExitCode,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		FinishedAt:      c.FinishedAt,
		DurationMS:      c.DurationMS,
	}
}

// Stats is the engine's capacity snapshot broadcast to every observer.
type Stats struct {
	Running       int `json:"running"`
	MaxConcurrent int `json:"maxConcurrent"`
	Queued        int `json:"queued"`
}
