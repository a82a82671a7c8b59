package sync

import (
	"context"
	"fmt"
	"io"

	"github.com/existflow/punch/internal/logger"
)

// Target is one configured remote waiting to be opened.
type Target struct {
	Name  string
	Label string
	// Open builds the remote. Construction errors fail only this target.
	Open func(ctx context.Context) (Remote, error)
}

// Summary aggregates the reports of one SyncAll run.
type Summary struct {
	Reports []*Report
}

// Failed returns the number of remotes whose pass did not complete.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Reports {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Uploaded returns the total number of uploaded punches.
func (s *Summary) Uploaded() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Uploaded)
	}
	return n
}

// Downloaded returns the total number of downloaded punches.
func (s *Summary) Downloaded() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Downloaded)
	}
	return n
}

// Failures returns the total number of per-record failures.
func (s *Summary) Failures() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Failures)
	}
	return n
}

// Orchestrator runs passes against several remotes, one after another.
type Orchestrator struct {
	reconciler *Reconciler
	targets    []Target
	log        *logger.Logger

	// OnStart, when set, is called before each remote's pass.
	OnStart func(t Target)
}

// NewOrchestrator creates an orchestrator over targets.
func NewOrchestrator(reconciler *Reconciler, targets []Target) *Orchestrator {
	return &Orchestrator{
		reconciler: reconciler,
		targets:    targets,
		log:        reconciler.log,
	}
}

// SyncAll runs one pass per target. A failing remote never stops the
// others; once ctx is done the remaining targets are reported as skipped.
func (o *Orchestrator) SyncAll(ctx context.Context) *Summary {
	summary := &Summary{}
	for _, t := range o.targets {
		if err := ctx.Err(); err != nil {
			summary.Reports = append(summary.Reports, &Report{
				Remote: t.Name,
				State:  StatePending,
				Err:    fmt.Errorf("skipped: %w", err),
			})
			continue
		}
		summary.Reports = append(summary.Reports, o.syncOne(ctx, t))
	}

	o.log.Info("Sync finished",
		logger.F("remotes", len(summary.Reports)),
		logger.F("failed", summary.Failed()),
		logger.F("uploaded", summary.Uploaded()),
		logger.F("downloaded", summary.Downloaded()))
	return summary
}

func (o *Orchestrator) syncOne(ctx context.Context, t Target) *Report {
	if o.OnStart != nil {
		o.OnStart(t)
	}
	log := o.log.WithFields(logger.F("remote", t.Name))

	remote, err := t.Open(ctx)
	if err != nil {
		log.Error("Failed to open remote", logger.F("error", err))
		return &Report{Remote: t.Name, State: StateFailed, Err: fmt.Errorf("open remote: %w", err)}
	}
	if c, ok := remote.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn("Failed to close remote", logger.F("error", err))
			}
		}()
	}

	rep, err := o.reconciler.Pass(ctx, t.Name, remote)
	if err != nil {
		log.Error("Sync pass failed", logger.F("error", err))
	}
	return rep
}
