// Package assessment implements the composable claim-rule pipeline:
// rules produce claims, issuers fold rules with completion tracking,
// assessors judge issue results, and composite assessors aggregate
// concurrent children under a strategy.
package assessment

import (
	"context"
	"time"

	"sdvc/pkg/logger"
)

// ClaimOutcome is the tri-state result of a single claim.
type ClaimOutcome int

const (
	// OutcomeSuccess means the claim holds
	OutcomeSuccess ClaimOutcome = iota
	// OutcomeFailure means the claim was checked and does not hold
	OutcomeFailure
	// OutcomeUnknown means the claim could not be decided
	OutcomeUnknown
)

func (o ClaimOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Claim is an identified outcome produced by a rule.
type Claim struct {
	ID      string
	Outcome ClaimOutcome
}

// CompletionStatus describes how a pipeline stage terminated.
type CompletionStatus int

const (
	// Complete means every rule ran to termination
	Complete CompletionStatus = iota
	// Cancelled means cancellation was observed between rules
	Cancelled
	// Faulted means a rule raised
	Faulted
	// TimedOut means a per-child deadline was exceeded
	TimedOut
)

func (s CompletionStatus) String() string {
	switch s {
	case Complete:
		return "Complete"
	case Cancelled:
		return "Cancelled"
	case Faulted:
		return "Faulted"
	case TimedOut:
		return "TimedOut"
	default:
		return "unknown"
	}
}

// ClaimRule is a pure function from input to claims.
type ClaimRule func(ctx context.Context, input any) ([]Claim, error)

// ClaimIssueResult carries the claims gathered by an issuer along with
// how the fold terminated.
type ClaimIssueResult struct {
	Claims     []Claim
	Status     CompletionStatus
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// ClaimIssuer composes rules in declared order.
type ClaimIssuer struct {
	rules []ClaimRule
	log   *logger.Log
}

// NewClaimIssuer creates an issuer over an ordered rule list.
func NewClaimIssuer(log *logger.Log, rules ...ClaimRule) *ClaimIssuer {
	return &ClaimIssuer{rules: rules, log: log}
}

// Issue folds the rules over the input. Cancellation observed between
// iterations propagates as Cancelled status in the result, not as an
// error to the caller; a rule error yields Faulted with the partial
// claim list kept.
func (c *ClaimIssuer) Issue(ctx context.Context, input any) *ClaimIssueResult {
	result := &ClaimIssueResult{
		Status:    Complete,
		StartedAt: time.Now().UTC(),
	}

	for _, rule := range c.rules {
		if err := ctx.Err(); err != nil {
			result.Status = Cancelled
			result.Err = err
			break
		}

		claims, err := rule(ctx, input)
		if err != nil {
			result.Status = Faulted
			result.Err = err
			break
		}
		result.Claims = append(result.Claims, claims...)
	}

	result.FinishedAt = time.Now().UTC()
	return result
}
