// Package feedback turns human corrections into reward signals for
// optional downstream learning systems. Dispatch is fire-and-forget:
// a slow or broken sink never blocks the correction path.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillbooks/autocode/internal/model"
)

// Signal is the input to one feedback dispatch: the decision as it was
// made and the assignment the reviewer says it should have been.
type Signal struct {
	TenantID   string
	DecisionID string
	Original   model.CodeAssignment
	Corrected  model.CodeAssignment
	Confidence float64
	Source     model.DecisionSource
}

// RewardUpdate is what each sink receives. Source carries the routing
// action that produced the original decision, so a reward can be
// credited to the pattern, inference, or hybrid path that chose it.
type RewardUpdate struct {
	OccurredAt time.Time
	TenantID   string
	DecisionID string
	Source     model.DecisionSource
	Reward     float64
	// PartialCredit is set when the category was right and only the
	// sub-code was wrong.
	PartialCredit bool
}

// RewardSink receives reward updates. Implementations must be safe for
// concurrent use; the loop calls each sink on its own goroutine.
type RewardSink interface {
	Name() string
	RecordReward(ctx context.Context, update RewardUpdate) error
}

// TrajectoryRecorder optionally captures the decision trajectory around
// a correction for offline learning.
type TrajectoryRecorder interface {
	Name() string
	RecordTrajectory(ctx context.Context, sig Signal, update RewardUpdate) error
}

// Reward values for graded mistakes. A wrong category costs more than a
// wrong sub-code within the right category.
const (
	RewardStandardPenalty = -0.5
	RewardPartialPenalty  = -0.3
)

// ComputeReward grades how wrong the original decision was.
func ComputeReward(original, corrected model.CodeAssignment) (reward float64, partial bool) {
	if original.SameCategory(corrected) {
		return RewardPartialPenalty, true
	}
	return RewardStandardPenalty, false
}

// Report summarizes one dispatch.
type Report struct {
	// Processed is true when grading succeeded, regardless of how many
	// sinks accepted the update.
	Processed bool
	// Notified lists sinks that accepted the update.
	Notified []string
	// Failed lists sinks that returned an error or panicked.
	Failed []string
}

// Loop dispatches reward updates to the configured sinks. Sinks are
// optional: a loop with none still grades and reports.
type Loop struct {
	sinks      []RewardSink
	recorders  []TrajectoryRecorder
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithSink adds a reward sink.
func WithSink(sink RewardSink) Option {
	return func(l *Loop) { l.sinks = append(l.sinks, sink) }
}

// WithRecorder adds a trajectory recorder.
func WithRecorder(rec TrajectoryRecorder) Option {
	return func(l *Loop) { l.recorders = append(l.recorders, rec) }
}

// WithTimeout bounds how long each sink call may take.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// WithLogger sets the logger for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates a feedback loop.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dispatch grades the signal and fans the reward update out to every
// sink concurrently. It returns immediately; the channel delivers the
// final Report once all sinks have answered or timed out. One sink's
// failure or panic never affects another sink or the caller.
func (l *Loop) Dispatch(ctx context.Context, sig Signal) <-chan Report {
	done := make(chan Report, 1)

	reward, partial := ComputeReward(sig.Original, sig.Corrected)
	update := RewardUpdate{
		OccurredAt:    time.Now().UTC(),
		TenantID:      sig.TenantID,
		DecisionID:    sig.DecisionID,
		Source:        sig.Source,
		Reward:        reward,
		PartialCredit: partial,
	}

	targets := l.targets()
	if len(targets) == 0 {
		done <- Report{Processed: true}
		close(done)
		return done
	}

	go func() {
		defer close(done)

		var mu sync.Mutex
		report := Report{Processed: true}

		var wg sync.WaitGroup
		for _, target := range targets {
			wg.Add(1)
			go func(target dispatchTarget) {
				defer wg.Done()
				err := l.deliver(ctx, target, sig, update)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed = append(report.Failed, target.name)
				} else {
					report.Notified = append(report.Notified, target.name)
				}
			}(target)
		}
		wg.Wait()

		done <- report
	}()

	return done
}

type dispatchTarget struct {
	name string
	call func(ctx context.Context, sig Signal, update RewardUpdate) error
}

func (l *Loop) targets() []dispatchTarget {
	targets := make([]dispatchTarget, 0, len(l.sinks)+len(l.recorders))
	for _, sink := range l.sinks {
		sink := sink
		targets = append(targets, dispatchTarget{
			name: sink.Name(),
			call: func(ctx context.Context, _ Signal, update RewardUpdate) error {
				return sink.RecordReward(ctx, update)
			},
		})
	}
	for _, rec := range l.recorders {
		rec := rec
		targets = append(targets, dispatchTarget{
			name: rec.Name(),
			call: func(ctx context.Context, sig Signal, update RewardUpdate) error {
				return rec.RecordTrajectory(ctx, sig, update)
			},
		})
	}
	return targets
}

// deliver calls one target under the loop timeout, converting panics
// into errors so a misbehaving sink cannot take the process down.
func (l *Loop) deliver(ctx context.Context, target dispatchTarget, sig Signal, update RewardUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
		if err != nil {
			l.logger.Warn("feedback sink failed",
				"sink", target.name,
				"tenant", sig.TenantID,
				"decision", sig.DecisionID,
				"error", err)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return target.call(callCtx, sig, update)
}
