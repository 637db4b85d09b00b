package op

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDescriptor builds a StepDescriptor that appends a label to log
// each time a phase runs, optionally failing a named phase the first N
// times it is invoked — enough to simulate a crash mid-operation and a
// subsequent retry that completes or undoes.
type recordingDescriptor struct {
	log       []string
	failPhase string
	failTimes int
}

func (r *recordingDescriptor) step(name string) Step {
	return func(ctx context.Context, so *StoreOperation) error {
		r.log = append(r.log, name)
		if name == r.failPhase && r.failTimes > 0 {
			r.failTimes--
			return errors.New(name + " failed")
		}
		return nil
	}
}

func (r *recordingDescriptor) descriptor() StepDescriptor {
	return StepDescriptor{
		Code:                CodeAddMapping,
		DoGlobalPreLocal:    r.step("doGlobalPreLocal"),
		DoLocalSource:       r.step("doLocalSource"),
		DoGlobalPostLocal:   r.step("doGlobalPostLocal"),
		UndoLocalSource:     r.step("undoLocalSource"),
		UndoGlobalPostLocal: r.step("undoGlobalPostLocal"),
	}
}

func TestRunHappyPathExecutesAllForwardPhasesInOrder(t *testing.T) {
	rec := &recordingDescriptor{}
	so := New(rec.descriptor(), nil)
	require.NoError(t, so.Run(context.Background()))
	assert.Equal(t, []string{"doGlobalPreLocal", "doLocalSource", "doGlobalPostLocal"}, rec.log)
	assert.Equal(t, StateSucceeded, so.UndoStartState)
}

func TestRunUndoesLocalSourceAndGlobalPostLocalWhenLocalSourceStageFails(t *testing.T) {
	rec := &recordingDescriptor{failPhase: "doLocalSource", failTimes: 1}
	so := New(rec.descriptor(), nil)
	err := so.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{
		"doGlobalPreLocal", "doLocalSource",
		"undoLocalSource", "undoGlobalPostLocal",
	}, rec.log)
}

func TestRunFailingAtGlobalPreLocalOnlyUndoesGlobalPostLocal(t *testing.T) {
	rec := &recordingDescriptor{failPhase: "doGlobalPreLocal", failTimes: 1}
	so := New(rec.descriptor(), nil)
	err := so.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"doGlobalPreLocal", "undoGlobalPostLocal"}, rec.log)
}

// TestResumeRunReplaysForwardChainRelyingOnReentrancy exercises scenario
// S4: a crash recorded at StateDoLocalSource resumes by replaying the
// whole forward chain from the top; idempotent steps make the already-
// applied doGlobalPreLocal/doLocalSource a no-op in effect (though this
// fake always logs the call) and the operation completes rather than
// undoing, matching "next manager startup... completes doGlobalPostLocal".
func TestResumeRunReplaysForwardChainRelyingOnReentrancy(t *testing.T) {
	rec := &recordingDescriptor{}
	so := Resume(New(rec.descriptor(), nil).OpID, rec.descriptor(), StateDoLocalSource, nil)
	err := so.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"doGlobalPreLocal", "doLocalSource", "doGlobalPostLocal"}, rec.log)
	assert.Equal(t, StateSucceeded, so.UndoStartState)
}

// TestResumeUndoAbandonsFromRecordedState exercises the other half of
// property 3: a caller that decides to abandon a stuck operation instead
// of completing it calls Undo directly, which drives only the undo chain
// appropriate to the persisted UndoStartState.
func TestResumeUndoAbandonsFromRecordedState(t *testing.T) {
	rec := &recordingDescriptor{}
	so := Resume(New(rec.descriptor(), nil).OpID, rec.descriptor(), StateDoLocalSource, nil)
	err := so.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"undoLocalSource", "undoGlobalPostLocal"}, rec.log)
}

func TestUndoPropagatesWhenUndoStepFails(t *testing.T) {
	rec := &recordingDescriptor{failPhase: "undoGlobalPostLocal", failTimes: 1}
	so := Resume(New(rec.descriptor(), nil).OpID, rec.descriptor(), StateDoLocalSource, nil)
	err := so.Undo(context.Background())
	assert.Error(t, err)
}

func TestRunSkipsNilLocalTargetStep(t *testing.T) {
	rec := &recordingDescriptor{}
	desc := rec.descriptor()
	desc.DoLocalTarget = nil
	so := New(desc, nil)
	require.NoError(t, so.Run(context.Background()))
	assert.NotContains(t, rec.log, "doLocalTarget")
}
