// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/retry"
)

var tracer = otel.Tracer("github.com/alem-hub/learnhub/internal/application/command")

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// AccessChecker answers whether a user may use a course.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// TokenIssuer issues access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID shared.UserID) (string, time.Time, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRules holds lesson completion and reward settings.
type ProgressRules struct {
	// Watched percentage at which a lesson counts as completed.
	CompletionThreshold float64

	// EXP granted when the lesson has no reward of its own.
	DefaultReward int64

	// Reject progress for paid courses the user does not own.
	RequireAccess bool
}

// DefaultProgressRules returns the default rules.
func DefaultProgressRules() ProgressRules {
	return ProgressRules{
		CompletionThreshold: progress.DefaultCompletionThreshold,
		DefaultReward:       progress.DefaultExperienceReward,
		RequireAccess:       true,
	}
}

func (r ProgressRules) withDefaults() ProgressRules {
	if r.CompletionThreshold <= 0 {
		r.CompletionThreshold = progress.DefaultCompletionThreshold
	}
	if r.DefaultReward <= 0 {
		r.DefaultReward = progress.DefaultExperienceReward
	}
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// storageRetrier retries only transient storage failures.
func storageRetrier() *retry.Retrier {
	return retry.DatabaseRetrier(retry.WithRetryIf(shared.IsRetryable))
}

// finishSpan records err on the span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
