// Package op implements the two-phase GSM<->LSM operation engine (spec
// §4.E), the hardest subsystem in the library. Every management mutation —
// add/remove shard, add/remove/update/split/merge mapping, attach/detach,
// replace-mappings — runs as one StoreOperation whose steps are described
// by a StepDescriptor rather than by virtual dispatch (spec §9 Design
// Notes): the engine interprets the descriptor, so adding an operation
// means writing a new table entry, not a new subclass.
package op

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Code identifies which management mutation a StoreOperation performs. It
// is stored verbatim in the operation log's OperationCode column.
type Code int

const (
	CodeAddShardMap Code = iota + 1
	CodeRemoveShardMap
	CodeAddShard
	CodeRemoveShard
	CodeAddMapping
	CodeRemoveMapping
	CodeUpdateMapping
	CodeSplitMapping
	CodeMergeMapping
	CodeLockOrUnlockMapping
	CodeAttachShard
	CodeDetachShard
	CodeReplaceMappings
)

// UndoStartState records how far a StoreOperation got before failing,
// determining where a retry resumes. StateNone (100) is the log's default
// value (spec §6): nothing has committed yet, so a retry begins the
// forward path from the top rather than undoing anything.
type UndoStartState int

const (
	StateNone               UndoStartState = 100
	StateDoGlobalPreLocal   UndoStartState = 1
	StateDoLocalSource      UndoStartState = 2
	StateDoLocalTarget      UndoStartState = 3
	StateDoGlobalPostLocal  UndoStartState = 4
	StateUndoLocalSource    UndoStartState = 5
	StateUndoLocalTarget    UndoStartState = 6
	StateUndoGlobalPostLocal UndoStartState = 7
	StateSucceeded          UndoStartState = 8
)

// Step is one phase function. ctx carries cancellation; op is the
// in-flight StoreOperation, giving the function access to its OpID and
// payload. A Step must be safe to re-invoke for the same OpID: if the
// affected rows already carry this OpID, the step returns nil without
// re-applying its change (spec §4.E reentrancy).
type Step func(ctx context.Context, so *StoreOperation) error

// StepDescriptor supplies the four forward phases and three undo phases
// for one kind of management operation. DoLocalTarget/UndoLocalTarget are
// nil for operations that don't relocate a mapping to a second shard (add,
// remove, lock/unlock); the engine skips a nil step.
type StepDescriptor struct {
	Code Code

	DoGlobalPreLocal  Step
	DoLocalSource     Step
	DoLocalTarget     Step // optional
	DoGlobalPostLocal Step

	UndoLocalSource     Step // optional (no-op if DoLocalSource never ran)
	UndoLocalTarget     Step // optional
	UndoGlobalPostLocal Step
}

// StoreOperation is one in-flight two-phase management mutation.
// Payload carries whatever the concrete Step functions need (bulk steps,
// affected mapping ids, etc); the engine never inspects it.
type StoreOperation struct {
	OpID           uuid.UUID
	Descriptor     StepDescriptor
	UndoStartState UndoStartState
	Payload        any
}

// New starts a fresh operation with a freshly minted OpID and
// StateNone, ready for Run to drive it through the forward path.
func New(desc StepDescriptor, payload any) *StoreOperation {
	return &StoreOperation{OpID: uuid.New(), Descriptor: desc, UndoStartState: StateNone, Payload: payload}
}

// Resume rebuilds a StoreOperation from a persisted operation log entry, for
// continuing or undoing it after a crash (spec §4.E, scenario S4). The
// caller decides what to do with it next: call Run to finish the operation
// (the common case — every step is reentrant, so replaying the forward
// chain from the top is safe and cheap, since already-applied steps are
// no-ops) or call Undo to abandon it instead.
func Resume(opID uuid.UUID, desc StepDescriptor, undoStartState UndoStartState, payload any) *StoreOperation {
	return &StoreOperation{OpID: opID, Descriptor: desc, UndoStartState: undoStartState, Payload: payload}
}

// Run drives the operation through the forward chain in spec §4.E:
//
//	DoGlobalPreLocal -> DoLocalSource -> DoLocalTarget? -> DoGlobalPostLocal -> Succeed
//
// Run always starts from DoGlobalPreLocal, whether so is freshly created or
// resumed from a persisted log entry: every step is required to be a no-op
// when its effect is already present for this OpID (spec §4.E
// "Reentrancy"), so replaying the whole chain is how a crashed operation
// completes (scenario S4). On any step's error, Run immediately drives the
// mirrored undo chain for that failure point as a synchronous compensating
// action and returns the original cause (wrapped if undo itself also
// fails) — this is the §4.E state-machine diagram's err-transitions, not a
// second, separate call.
func (so *StoreOperation) Run(ctx context.Context) error {
	so.UndoStartState = StateDoGlobalPreLocal
	if err := so.Descriptor.DoGlobalPreLocal(ctx, so); err != nil {
		return so.failAt(ctx, StateDoGlobalPreLocal, err)
	}

	so.UndoStartState = StateDoLocalSource
	if err := so.Descriptor.DoLocalSource(ctx, so); err != nil {
		return so.failAt(ctx, StateDoLocalSource, err)
	}

	if so.Descriptor.DoLocalTarget != nil {
		so.UndoStartState = StateDoLocalTarget
		if err := so.Descriptor.DoLocalTarget(ctx, so); err != nil {
			return so.failAt(ctx, StateDoLocalTarget, err)
		}
	}

	so.UndoStartState = StateDoGlobalPostLocal
	if err := so.Descriptor.DoGlobalPostLocal(ctx, so); err != nil {
		return so.failAt(ctx, StateDoGlobalPostLocal, err)
	}

	so.UndoStartState = StateSucceeded
	return nil
}

// Undo abandons the operation, driving the undo chain from so's current
// UndoStartState (typically one loaded from a persisted log entry) without
// attempting the forward path first. Recovery uses this when a stuck
// operation should be rolled back rather than completed — e.g. after Run
// has already failed to complete it on a prior attempt.
func (so *StoreOperation) Undo(ctx context.Context) error {
	return so.undo(ctx)
}

// failAt records where the operation stopped and immediately attempts the
// matching undo chain, mirroring a process that crashed and was resumed:
// the undo path is exercised on every failure, not just after a restart.
func (so *StoreOperation) failAt(ctx context.Context, state UndoStartState, cause error) error {
	so.UndoStartState = state
	if undoErr := so.undo(ctx); undoErr != nil {
		return fmt.Errorf("op: %v failed (%w), and undo from state %d also failed: %v", so.Descriptor.Code, cause, state, undoErr)
	}
	return cause
}

// undo runs the undo chain appropriate to so.UndoStartState. A crash
// between doLocalSource and doGlobalPostLocal, for instance, resumes with
// undoLocalSource, then undoLocalTarget (if relevant), then
// undoGlobalPostLocal — restoring global readability without ever having
// made the new rows visible.
func (so *StoreOperation) undo(ctx context.Context) error {
	switch so.UndoStartState {
	case StateDoGlobalPreLocal:
		// Nothing committed anywhere yet beyond the pending-add GSM rows
		// the pre-local phase itself wrote; undoing those is exactly
		// undoGlobalPostLocal's job (it clears the pending OperationId and
		// restores readability without promoting the new version).
		return so.runUndoGlobalPostLocal(ctx)
	case StateDoLocalSource, StateUndoLocalSource:
		if err := so.runUndoLocalSource(ctx); err != nil {
			return err
		}
		fallthrough
	case StateDoLocalTarget, StateUndoLocalTarget:
		if err := so.runUndoLocalTarget(ctx); err != nil {
			return err
		}
		fallthrough
	case StateDoGlobalPostLocal, StateUndoGlobalPostLocal:
		return so.runUndoGlobalPostLocal(ctx)
	case StateSucceeded, StateNone:
		return nil
	default:
		return fmt.Errorf("op: unknown undo start state %d", so.UndoStartState)
	}
}

func (so *StoreOperation) runUndoLocalSource(ctx context.Context) error {
	if so.Descriptor.UndoLocalSource == nil {
		return nil
	}
	so.UndoStartState = StateUndoLocalSource
	return so.Descriptor.UndoLocalSource(ctx, so)
}

func (so *StoreOperation) runUndoLocalTarget(ctx context.Context) error {
	if so.Descriptor.UndoLocalTarget == nil {
		return nil
	}
	so.UndoStartState = StateUndoLocalTarget
	return so.Descriptor.UndoLocalTarget(ctx, so)
}

func (so *StoreOperation) runUndoGlobalPostLocal(ctx context.Context) error {
	so.UndoStartState = StateUndoGlobalPostLocal
	return so.Descriptor.UndoGlobalPostLocal(ctx, so)
}
