package assessment

import (
	"context"
	"errors"
	"testing"
	"time"

	"sdvc/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passRule(ids ...string) ClaimRule {
	return func(ctx context.Context, input any) ([]Claim, error) {
		claims := make([]Claim, 0, len(ids))
		for _, id := range ids {
			claims = append(claims, Claim{ID: id, Outcome: OutcomeSuccess})
		}
		return claims, nil
	}
}

func TestClaimIssuerFold(t *testing.T) {
	issuer := NewClaimIssuer(logger.NewSimple("test"),
		passRule("age-over-18"),
		passRule("residency", "citizenship"),
	)

	result := issuer.Issue(context.Background(), nil)

	assert.Equal(t, Complete, result.Status)
	require.Len(t, result.Claims, 3)
	// Rules run in declared order.
	assert.Equal(t, "age-over-18", result.Claims[0].ID)
	assert.Equal(t, "residency", result.Claims[1].ID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestClaimIssuerFaulted(t *testing.T) {
	boom := errors.New("rule broke")
	issuer := NewClaimIssuer(logger.NewSimple("test"),
		passRule("first"),
		func(ctx context.Context, input any) ([]Claim, error) { return nil, boom },
		passRule("never-reached"),
	)

	result := issuer.Issue(context.Background(), nil)

	assert.Equal(t, Faulted, result.Status)
	assert.ErrorIs(t, result.Err, boom)
	// Claims gathered before the fault are kept.
	require.Len(t, result.Claims, 1)
}

func TestClaimIssuerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	issuer := NewClaimIssuer(logger.NewSimple("test"),
		func(ctx context.Context, input any) ([]Claim, error) {
			cancel() // observed between iterations, not mid-rule
			return []Claim{{ID: "first", Outcome: OutcomeSuccess}}, nil
		},
		passRule("second"),
	)

	result := issuer.Issue(ctx, nil)

	// Cancellation propagates as status, not as a raised error.
	assert.Equal(t, Cancelled, result.Status)
	require.Len(t, result.Claims, 1)
}

func TestAllClaimsSucceedAssessor(t *testing.T) {
	assessor := AllClaimsSucceed()

	t.Run("success", func(t *testing.T) {
		result, err := assessor.Assess(context.Background(), &ClaimIssueResult{
			Status: Complete,
			Claims: []Claim{{ID: "a", Outcome: OutcomeSuccess}},
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.CorrelationID)
	})

	t.Run("unknown_claim_fails", func(t *testing.T) {
		result, err := assessor.Assess(context.Background(), &ClaimIssueResult{
			Status: Complete,
			Claims: []Claim{{ID: "a", Outcome: OutcomeUnknown}},
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
	})

	t.Run("faulted_issue_fails", func(t *testing.T) {
		result, err := assessor.Assess(context.Background(), &ClaimIssueResult{Status: Faulted})
		require.NoError(t, err)
		assert.False(t, result.Success)
	})
}

func staticAssessor(success bool) Assessor {
	return AssessorFunc(func(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error) {
		return NewResult(ctx, success, issued), nil
	})
}

func blockingAssessor(release <-chan struct{}, reached chan<- struct{}) Assessor {
	return AssessorFunc(func(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error) {
		<-release
		close(reached)
		return NewResult(ctx, true, issued), nil
	})
}

func panickingAssessor() Assessor {
	return AssessorFunc(func(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error) {
		panic("assessor exploded")
	})
}

// One child succeeds instantly, one blocks past a 1ms timeout, one
// panics. Under AnyMustSucceed the composite succeeds with
// CompletedCount=1, FaultedCount=1, TimedOutCount=1, and the blocked
// sibling is not cancelled before it reaches its terminal state.
func TestCompositeMixedOutcomes(t *testing.T) {
	release := make(chan struct{})
	reached := make(chan struct{})

	composite := NewCompositeAssessor(logger.NewSimple("test"),
		Strategy{Kind: AnyMustSucceed},
		time.Millisecond,
		staticAssessor(true),
		blockingAssessor(release, reached),
		panickingAssessor(),
	)

	result, err := composite.Assess(context.Background(), &ClaimIssueResult{Status: Complete})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CompletedCount)
	assert.Equal(t, 1, result.FaultedCount)
	assert.Equal(t, 1, result.TimedOutCount)

	// Children stay in input order regardless of completion order.
	assert.Equal(t, Complete, result.Children[0].Status)
	assert.Equal(t, TimedOut, result.Children[1].Status)
	assert.Equal(t, Faulted, result.Children[2].Status)

	// The timed-out sibling still runs; releasing it lets it terminate.
	close(release)
	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("timed-out child was cancelled instead of running to its terminal state")
	}
}

func TestCompositeStrategies(t *testing.T) {
	tts := []struct {
		name     string
		strategy Strategy
		children []Assessor
		want     bool
	}{
		{
			name:     "all_must_succeed_pass",
			strategy: Strategy{Kind: AllMustSucceed},
			children: []Assessor{staticAssessor(true), staticAssessor(true)},
			want:     true,
		},
		{
			name:     "all_must_succeed_fail",
			strategy: Strategy{Kind: AllMustSucceed},
			children: []Assessor{staticAssessor(true), staticAssessor(false)},
			want:     false,
		},
		{
			name:     "any_must_succeed",
			strategy: Strategy{Kind: AnyMustSucceed},
			children: []Assessor{staticAssessor(false), staticAssessor(true)},
			want:     true,
		},
		{
			name:     "majority_pass",
			strategy: Strategy{Kind: MajorityMustSucceed},
			children: []Assessor{staticAssessor(true), staticAssessor(true), staticAssessor(false)},
			want:     true,
		},
		{
			name:     "majority_fail_on_tie",
			strategy: Strategy{Kind: MajorityMustSucceed},
			children: []Assessor{staticAssessor(true), staticAssessor(false)},
			want:     false,
		},
		{
			name:     "quorum_pass",
			strategy: Quorum(2),
			children: []Assessor{staticAssessor(true), staticAssessor(true), staticAssessor(false)},
			want:     true,
		},
		{
			name:     "quorum_fail",
			strategy: Quorum(3),
			children: []Assessor{staticAssessor(true), staticAssessor(true), staticAssessor(false)},
			want:     false,
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			composite := NewCompositeAssessor(logger.NewSimple("test"), tt.strategy, 0, tt.children...)

			result, err := composite.Assess(context.Background(), &ClaimIssueResult{Status: Complete})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Success)
		})
	}
}
