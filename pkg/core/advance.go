package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/errors"
	"go.uber.org/zap"
)

// NextHashFunc derives the new head of a branch from its current head
type NextHashFunc func(current string) (string, error)

// DefaultAdvancePolicy retries contested branch updates with an exponential backoff, for up to 10s
func DefaultAdvancePolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	return policy
}

// AdvanceBranch moves a branch to the hash derived from its current head, retrying when another writer
// moved the branch in the meantime.
//
// On every attempt, the current head is read again and passed to next. Only status.ErrMismatch is retried.
// A nil policy defaults to DefaultAdvancePolicy. It returns the new head.
func AdvanceBranch(ctx context.Context, project *Project, branch string, next NextHashFunc, policy backoff.BackOff) (string, error) {
	if policy == nil {
		policy = DefaultAdvancePolicy()
	}

	var (
		newHash  string
		attempts int
	)
	err := backoff.Retry(func() error {
		attempts++
		current, err := project.BranchHash(ctx, branch, "")
		if err != nil {
			return backoff.Permanent(err)
		}
		newHash, err = next(current)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = project.SetBranchHash(ctx, branch, current, newHash)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, status.ErrMismatch):
			project.l.Debug("branch moved concurrently, retrying", zap.String("branch", branch), zap.Int("attempt", attempts))
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return "", err
	}
	return newHash, nil
}
