package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// AssessmentResult is the judgement over a ClaimIssueResult, stamped
// with a correlation id and the distributed-tracing identifiers active
// at assessment time.
type AssessmentResult struct {
	Success       bool
	Status        CompletionStatus
	CorrelationID string
	Timestamp     time.Time
	TraceID       string
	SpanID        string
	Baggage       map[string]string
	Claims        []Claim
}

// Assessor judges a claim issue result.
type Assessor interface {
	Assess(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error)
}

// AssessorFunc adapts a function to the Assessor interface.
type AssessorFunc func(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error)

// Assess implements Assessor.
func (f AssessorFunc) Assess(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error) {
	return f(ctx, issued)
}

// NewResult stamps an assessment result with correlation and tracing
// context. Every assessor should build its results through this.
func NewResult(ctx context.Context, success bool, issued *ClaimIssueResult) *AssessmentResult {
	result := &AssessmentResult{
		Success:       success,
		Status:        Complete,
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Baggage:       map[string]string{},
	}
	if issued != nil {
		result.Status = issued.Status
		result.Claims = issued.Claims
	}

	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		result.TraceID = span.TraceID().String()
		result.SpanID = span.SpanID().String()
	}
	for _, member := range baggage.FromContext(ctx).Members() {
		result.Baggage[member.Key()] = member.Value()
	}

	return result
}

// AllClaimsSucceed is the baseline assessor: success iff the issue
// completed and no claim failed or is unknown.
func AllClaimsSucceed() Assessor {
	return AssessorFunc(func(ctx context.Context, issued *ClaimIssueResult) (*AssessmentResult, error) {
		success := issued != nil && issued.Status == Complete
		if success {
			for _, claim := range issued.Claims {
				if claim.Outcome != OutcomeSuccess {
					success = false
					break
				}
			}
		}
		return NewResult(ctx, success, issued), nil
	})
}
