package model

import "time"

// RunKind distinguishes raw ingestion runs from cross-source combine runs.
type RunKind string

const (
	RunKindIngest  RunKind = "ingest"
	RunKindCombine RunKind = "combine"
)

// RunState is a pipeline run state. Done and Error are terminal.
type RunState string

const (
	RunStateFetching    RunState = "fetching"
	RunStateNormalizing RunState = "normalizing"
	RunStateResolving   RunState = "resolving_identity"
	RunStateUpserting   RunState = "merging_upserting"
	RunStateDone        RunState = "done"
	RunStateError       RunState = "error"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateError
}

// Run records one bounded pipeline batch and its outcome.
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Provider    string     `json:"provider,omitempty"`
	CitySlug    string     `json:"city_slug,omitempty"`
	Category    string     `json:"category,omitempty"`
	Replace     bool       `json:"replace,omitempty"`
	State       RunState   `json:"state"`
	Inserted    int        `json:"inserted"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Merged      int        `json:"merged"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
