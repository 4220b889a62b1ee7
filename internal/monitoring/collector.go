// Package monitoring watches the run log for failing, stuck or degraded
// pipeline runs and reports them to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/store"
)

// RunSnapshot holds a point-in-time view of run health.
type RunSnapshot struct {
	// Runs started within the lookback window.
	IngestTotal   int      `json:"ingest_total"`
	IngestDone    int      `json:"ingest_done"`
	IngestFailed  int      `json:"ingest_failed"`
	CombineTotal  int      `json:"combine_total"`
	CombineDone   int      `json:"combine_done"`
	CombineFailed int      `json:"combine_failed"`
	Running       int      `json:"running"`
	StaleRuns     int      `json:"stale_runs"`
	StaleRunIDs   []string `json:"stale_run_ids,omitempty"`

	// Record counts summed over finished runs.
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Merged   int `json:"merged"`

	FailRate float64 `json:"fail_rate"`
	SkipRate float64 `json:"skip_rate"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Finished is the number of runs in a terminal state.
func (s *RunSnapshot) Finished() int {
	return s.IngestDone + s.IngestFailed + s.CombineDone + s.CombineFailed
}

// Failed is the number of runs that ended in the error state.
func (s *RunSnapshot) Failed() int {
	return s.IngestFailed + s.CombineFailed
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector builds snapshots from the run log.
type Collector struct {
	runs       RunLister
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. Runs still in a non-terminal state
// staleAfter after they started count as stale.
func NewCollector(runs RunLister, staleAfter time.Duration) *Collector {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Collector{
		runs:       runs,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*RunSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.now()
	snap := &RunSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		StartedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		switch r.Kind {
		case model.RunKindIngest:
			snap.IngestTotal++
		case model.RunKindCombine:
			snap.CombineTotal++
		}

		switch r.State {
		case model.RunStateDone:
			if r.Kind == model.RunKindCombine {
				snap.CombineDone++
			} else {
				snap.IngestDone++
			}
		case model.RunStateError:
			if r.Kind == model.RunKindCombine {
				snap.CombineFailed++
			} else {
				snap.IngestFailed++
			}
		default:
			snap.Running++
			if now.Sub(r.StartedAt) > c.staleAfter {
				snap.StaleRuns++
				snap.StaleRunIDs = append(snap.StaleRunIDs, r.ID)
			}
			continue
		}

		snap.Inserted += r.Inserted
		snap.Updated += r.Updated
		snap.Skipped += r.Skipped
		snap.Merged += r.Merged
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed()) / float64(finished)
	}
	if seen := snap.Inserted + snap.Updated + snap.Skipped; seen > 0 {
		snap.SkipRate = float64(snap.Skipped) / float64(seen)
	}
	return snap, nil
}
