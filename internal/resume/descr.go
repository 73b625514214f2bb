package resume

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ResumeGuardDescr is the ResumeDescr attached to an ordinary guard: its
// Snapshot rebuilds the frame stack on failure, and FailureCount drives the
// driver's bridge-compilation threshold (§4.5). It satisfies ir.Descr via
// IsDescr, defined here rather than in package ir so resume can depend on
// ir without a cycle back.
type ResumeGuardDescr struct {
	id       string
	Snapshot *Snapshot

	failures atomic.Int64
}

// NewResumeGuardDescr mints a descr with a fresh identity over snap.
func NewResumeGuardDescr(snap *Snapshot) *ResumeGuardDescr {
	return &ResumeGuardDescr{id: uuid.NewString(), Snapshot: snap}
}

func (d *ResumeGuardDescr) IsDescr() {}

// ID is the descr's unique identity, used by the driver's per-guard bridge
// table and by logs correlating a guard failure back to its trace site.
func (d *ResumeGuardDescr) ID() string { return d.id }

// RecordFailure increments the guard's failure counter and returns the new
// count, so the driver can compare against compile_threshold without a
// separate read-then-write race between concurrent guard failures.
func (d *ResumeGuardDescr) RecordFailure() int64 { return d.failures.Add(1) }

func (d *ResumeGuardDescr) FailureCount() int64 { return d.failures.Load() }

// ForcePath supplies externally-computed replacement values for boxes that
// were virtualized inside the trace, keyed by the virtualizable field's
// FieldDescr name. Populated by whatever external call forced the
// virtualizable (see metainterp's CALL_MAY_FORCE handling).
type ForcePath func() map[string]any

// ResumeGuardForcedDescr is the ResumeDescr variant for GUARD_NOT_FORCED:
// used when a virtualizable may be forced from outside the trace (a call
// escapes it), so rebuild must merge resume-data values with the force
// path's externally-observed replacements rather than trusting the
// snapshot alone.
type ResumeGuardForcedDescr struct {
	ResumeGuardDescr
	Force ForcePath
}

// NewResumeGuardForcedDescr mints a forced-guard descr with its own
// identity, independent of the embedded ResumeGuardDescr's.
func NewResumeGuardForcedDescr(snap *Snapshot, force ForcePath) *ResumeGuardForcedDescr {
	d := &ResumeGuardForcedDescr{Force: force}
	d.ResumeGuardDescr = ResumeGuardDescr{id: uuid.NewString(), Snapshot: snap}
	return d
}

func (d *ResumeGuardForcedDescr) IsDescr() {}
