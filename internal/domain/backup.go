package domain

import (
	"time"
)

type DumpResult struct {
	Artifact Artifact
	Err      error
	Duration time.Duration
}

type PushResult struct {
	Backend  string
	Kind     DestinationKind
	Err      error
	Duration time.Duration
}

type PruneResult struct {
	Backend string
	Kind    DestinationKind
	Deleted []string
	Err     error
}

// CycleReport summarizes one backup cycle end to end. A cycle always runs to
// completion; individual failures are recorded here instead of aborting it.
type CycleReport struct {
	FolderID   string
	StartedAt  time.Time
	FinishedAt time.Time
	Dumps      []DumpResult
	Pushes     []PushResult
	Prunes     []PruneResult
}

func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *CycleReport) Succeeded() bool {
	return len(r.Errors()) == 0
}

func (r *CycleReport) Errors() []error {
	var errs []error
	for _, d := range r.Dumps {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}
	for _, p := range r.Pushes {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	for _, p := range r.Prunes {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

func (r *CycleReport) DeletedTotal() int {
	n := 0
	for _, p := range r.Prunes {
		n += len(p.Deleted)
	}
	return n
}
