package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbooks/autocode/internal/model"
)

type recordingSink struct {
	name string
	err  error
	mu   sync.Mutex
	seen []RewardUpdate
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) RecordReward(_ context.Context, update RewardUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, update)
	return s.err
}

func (s *recordingSink) updates() []RewardUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RewardUpdate, len(s.seen))
	copy(out, s.seen)
	return out
}

type panickySink struct{}

func (panickySink) Name() string                                { return "panicky" }
func (panickySink) RecordReward(context.Context, RewardUpdate) error { panic("boom") }

func testSignal() Signal {
	return Signal{
		TenantID:   "t1",
		DecisionID: "d1",
		Original:   model.CodeAssignment{Code: "5200", SubCode: "10"},
		Corrected:  model.CodeAssignment{Code: "7700"},
		Confidence: 92,
		Source:     model.SourceInference,
	}
}

func awaitReport(t *testing.T, ch <-chan Report) Report {
	t.Helper()
	select {
	case report := <-ch:
		return report
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete")
		return Report{}
	}
}

func TestComputeReward(t *testing.T) {
	tests := []struct {
		name      string
		original  model.CodeAssignment
		corrected model.CodeAssignment
		reward    float64
		partial   bool
	}{
		{
			name:      "different category",
			original:  model.CodeAssignment{Code: "5200"},
			corrected: model.CodeAssignment{Code: "7700"},
			reward:    -0.5,
		},
		{
			name:      "same category different sub-code",
			original:  model.CodeAssignment{Code: "5200", SubCode: "10"},
			corrected: model.CodeAssignment{Code: "5200", SubCode: "20"},
			reward:    -0.3,
			partial:   true,
		},
		{
			name:      "same category different tax treatment",
			original:  model.CodeAssignment{Code: "5200", TaxTreatment: "standard"},
			corrected: model.CodeAssignment{Code: "5200", TaxTreatment: "exempt"},
			reward:    -0.3,
			partial:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward, partial := ComputeReward(tt.original, tt.corrected)
			assert.InDelta(t, tt.reward, reward, 0.0001)
			assert.Equal(t, tt.partial, partial)
		})
	}
}

func TestDispatch_NoSinksStillProcesses(t *testing.T) {
	loop := NewLoop()

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.True(t, report.Processed)
	assert.Empty(t, report.Notified)
	assert.Empty(t, report.Failed)
}

func TestDispatch_NotifiesAllSinks(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	loop := NewLoop(WithSink(a), WithSink(b))

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.True(t, report.Processed)
	assert.ElementsMatch(t, []string{"a", "b"}, report.Notified)
	assert.Empty(t, report.Failed)

	updates := a.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "d1", updates[0].DecisionID)
	assert.Equal(t, model.SourceInference, updates[0].Source)
	assert.InDelta(t, -0.5, updates[0].Reward, 0.0001)
	assert.False(t, updates[0].PartialCredit)
}

func TestDispatch_RewardCarriesRoutingAction(t *testing.T) {
	sink := &recordingSink{name: "a"}
	loop := NewLoop(WithSink(sink))

	sig := testSignal()
	sig.Source = model.SourcePattern

	awaitReport(t, loop.Dispatch(context.Background(), sig))

	updates := sink.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, model.SourcePattern, updates[0].Source)
}

func TestDispatch_PartialCreditReward(t *testing.T) {
	sink := &recordingSink{name: "a"}
	loop := NewLoop(WithSink(sink))

	sig := testSignal()
	sig.Corrected = model.CodeAssignment{Code: "5200", SubCode: "20"}

	awaitReport(t, loop.Dispatch(context.Background(), sig))

	updates := sink.updates()
	require.Len(t, updates, 1)
	assert.InDelta(t, -0.3, updates[0].Reward, 0.0001)
	assert.True(t, updates[0].PartialCredit)
}

func TestDispatch_OneFailureDoesNotAffectOthers(t *testing.T) {
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("connection refused")}
	loop := NewLoop(WithSink(good), WithSink(bad))

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.True(t, report.Processed)
	assert.Equal(t, []string{"good"}, report.Notified)
	assert.Equal(t, []string{"bad"}, report.Failed)
	assert.Len(t, good.updates(), 1)
}

func TestDispatch_PanicIsContained(t *testing.T) {
	good := &recordingSink{name: "good"}
	loop := NewLoop(WithSink(panickySink{}), WithSink(good))

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.True(t, report.Processed)
	assert.Equal(t, []string{"good"}, report.Notified)
	assert.Equal(t, []string{"panicky"}, report.Failed)
}

type recordingRecorder struct {
	mu   sync.Mutex
	sigs []Signal
}

func (r *recordingRecorder) Name() string { return "trajectory" }

func (r *recordingRecorder) RecordTrajectory(_ context.Context, sig Signal, _ RewardUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig)
	return nil
}

func TestDispatch_RecordersReceiveFullSignal(t *testing.T) {
	rec := &recordingRecorder{}
	loop := NewLoop(WithRecorder(rec))

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.Equal(t, []string{"trajectory"}, report.Notified)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sigs, 1)
	assert.Equal(t, "7700", rec.sigs[0].Corrected.Code)
	assert.Equal(t, model.SourceInference, rec.sigs[0].Source)
}

func TestDispatch_SlowSinkIsTimedOut(t *testing.T) {
	slow := &slowSink{}
	loop := NewLoop(WithSink(slow), WithTimeout(20*time.Millisecond))

	report := awaitReport(t, loop.Dispatch(context.Background(), testSignal()))
	assert.Equal(t, []string{"slow"}, report.Failed)
}

type slowSink struct{}

func (slowSink) Name() string { return "slow" }

func (slowSink) RecordReward(ctx context.Context, _ RewardUpdate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return nil
	}
}
