// Package model holds the records shared by the store, the inventory builder and the API.
package model

import (
	"time"

	"github.com/sells-group/incore-data/internal/hazus"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Done reports whether the status is terminal.
func (s RunStatus) Done() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// RunKind names the pipeline a run executed.
type RunKind string

const (
	RunKindInventory   RunKind = "inventory"
	RunKindDislocation RunKind = "dislocation"
)

// RunParams records what a run was asked to do.
type RunParams struct {
	FIPS    []string `json:"fips,omitempty"`
	Source  string   `json:"source,omitempty"` // api or a file path
	Region  string   `json:"region,omitempty"`
	Random  bool     `json:"random,omitempty"`
	Seed    uint64   `json:"seed,omitempty"`
	Vintage string   `json:"vintage,omitempty"`
	Dataset string   `json:"dataset,omitempty"`
}

// Run is one invocation of an inventory or dislocation pipeline.
type Run struct {
	ID        string     `json:"id"`
	Kind      RunKind    `json:"kind"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Records int           `json:"records"`
	Report  *hazus.Report `json:"report,omitempty"`
	Outputs []string      `json:"outputs,omitempty"`
	Error   string        `json:"error,omitempty"`
}
