package assessment

import (
	"context"
	"fmt"
	"time"

	"sdvc/pkg/logger"
	"sdvc/pkg/model"
)

// StrategyKind selects how child outcomes aggregate.
type StrategyKind int

const (
	// AllMustSucceed requires every child to succeed
	AllMustSucceed StrategyKind = iota
	// AnyMustSucceed requires at least one child to succeed
	AnyMustSucceed
	// MajorityMustSucceed requires more than half of the children to succeed
	MajorityMustSucceed
	// QuorumMustSucceed requires at least Quorum children to succeed
	QuorumMustSucceed
)

// Strategy is an aggregation rule over child assessors.
type Strategy struct {
	Kind   StrategyKind
	Quorum int
}

// Quorum builds a QuorumMustSucceed strategy.
func Quorum(n int) Strategy {
	return Strategy{Kind: QuorumMustSucceed, Quorum: n}
}

// ChildResult is one child's outcome, kept in input order.
type ChildResult struct {
	Index  int
	Status CompletionStatus
	Result *AssessmentResult
	Err    error
}

// CompositeResult aggregates concurrent child assessments.
type CompositeResult struct {
	Success        bool
	Children       []ChildResult
	CompletedCount int
	FaultedCount   int
	TimedOutCount  int
	CancelledCount int

	CorrelationID string
	Timestamp     time.Time
	TraceID       string
	SpanID        string
	Baggage       map[string]string
}

// CompositeAssessor runs child assessors concurrently and aggregates
// their outcomes under a strategy. A faulted, timed-out or cancelled
// child never prevents the others from completing; each child carries
// its own completion status.
type CompositeAssessor struct {
	children     []Assessor
	strategy     Strategy
	childTimeout time.Duration
	log          *logger.Log
}

// NewCompositeAssessor creates a composite. A zero childTimeout means
// children are waited on indefinitely.
func NewCompositeAssessor(log *logger.Log, strategy Strategy, childTimeout time.Duration, children ...Assessor) *CompositeAssessor {
	return &CompositeAssessor{
		children:     children,
		strategy:     strategy,
		childTimeout: childTimeout,
		log:          log,
	}
}

// Assess fans the issue result out to every child. Outputs aggregate in
// input order regardless of completion order. A child exceeding the
// per-child timeout is recorded TimedOut; its goroutine is left to
// reach its own terminal state rather than being cancelled.
func (c *CompositeAssessor) Assess(ctx context.Context, issued *ClaimIssueResult) (*CompositeResult, error) {
	type childDone struct {
		result *AssessmentResult
		err    error
	}

	settled := make(chan ChildResult, len(c.children))

	for i, child := range c.children {
		go func(index int, child Assessor) {
			done := make(chan childDone, 1)

			// The assessor runs in its own goroutine so a timeout can
			// be recorded without cancelling it; the child still runs
			// to its own terminal state.
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- childDone{err: fmt.Errorf("assessor panicked: %v", r)}
					}
				}()

				result, err := child.Assess(ctx, issued)
				done <- childDone{result: result, err: err}
			}()

			var timeout <-chan time.Time
			if c.childTimeout > 0 {
				timer := time.NewTimer(c.childTimeout)
				defer timer.Stop()
				timeout = timer.C
			}

			select {
			case outcome := <-done:
				switch {
				case outcome.err != nil:
					settled <- ChildResult{Index: index, Status: Faulted, Err: outcome.err}
				case outcome.result != nil && outcome.result.Status == Cancelled:
					settled <- ChildResult{Index: index, Status: Cancelled, Result: outcome.result}
				default:
					settled <- ChildResult{Index: index, Status: Complete, Result: outcome.result}
				}

			case <-timeout:
				settled <- ChildResult{Index: index, Status: TimedOut, Err: model.ErrTimedOut}

			case <-ctx.Done():
				settled <- ChildResult{Index: index, Status: Cancelled, Err: model.ErrCancelled}
			}
		}(i, child)
	}

	composite := stampComposite(ctx)
	composite.Children = make([]ChildResult, len(c.children))

	for range c.children {
		child := <-settled
		composite.Children[child.Index] = child

		switch child.Status {
		case Complete:
			composite.CompletedCount++
		case Faulted:
			composite.FaultedCount++
		case TimedOut:
			composite.TimedOutCount++
		case Cancelled:
			composite.CancelledCount++
		}
	}

	composite.Success = c.strategy.satisfied(composite.Children, len(c.children))
	return composite, nil
}

// satisfied evaluates the aggregation rule over completed children.
func (s Strategy) satisfied(children []ChildResult, total int) bool {
	succeeded := 0
	for _, child := range children {
		if child.Status == Complete && child.Result != nil && child.Result.Success {
			succeeded++
		}
	}

	switch s.Kind {
	case AllMustSucceed:
		return succeeded == total
	case AnyMustSucceed:
		return succeeded >= 1
	case MajorityMustSucceed:
		return succeeded*2 > total
	case QuorumMustSucceed:
		return succeeded >= s.Quorum
	default:
		return false
	}
}

func stampComposite(ctx context.Context) *CompositeResult {
	stamped := NewResult(ctx, false, nil)
	return &CompositeResult{
		CorrelationID: stamped.CorrelationID,
		Timestamp:     stamped.Timestamp,
		TraceID:       stamped.TraceID,
		SpanID:        stamped.SpanID,
		Baggage:       stamped.Baggage,
	}
}
