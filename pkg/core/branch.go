package core

import (
	"context"
	"fmt"
	"time"

	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/oneconcern/graphstore/pkg/storage"
	storagestatus "github.com/oneconcern/graphstore/pkg/storage/status"
	"go.uber.org/zap"
)

// Branches maps all branch names of the project to their head commit.
//
// Branches without a head are not listed.
func (p *Project) Branches(ctx context.Context) (branches map[string]string, err error) {
	defer func(t0 time.Time) {
		p.record("Branches", t0, err)
	}(time.Now())

	if err = p.check(); err != nil {
		return nil, err
	}

	branches = make(map[string]string)
	err = p.db.store.Scan(ctx, p.prefix(), func(k storage.Key, v []byte) error {
		name, isBranch := model.BranchName(k.ID)
		if !isBranch {
			return nil
		}
		record, e := model.DecodeBranch(v)
		if e != nil {
			return fmt.Errorf("branch %q: %w", name, e)
		}
		if record.Hash != "" {
			branches[name] = record.Hash
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return branches, nil
}

// BranchHash reads the current head of a branch, or "" if the branch does not exist.
//
// The returned hash is the current one, whether it matches oldHash or not.
func (p *Project) BranchHash(ctx context.Context, branch, oldHash string) (hash string, err error) {
	defer func(t0 time.Time) {
		p.record("BranchHash", t0, err)
	}(time.Now())

	if err = model.ValidateBranchName(branch); err != nil {
		return "", err
	}
	if err = model.ValidateHead(oldHash); err != nil {
		return "", err
	}
	if err = p.check(); err != nil {
		return "", err
	}
	return p.branchHash(ctx, branch)
}

func (p *Project) branchHash(ctx context.Context, branch string) (string, error) {
	raw, err := p.db.store.Get(ctx, p.key(model.BranchID(branch)))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotFound) {
			return "", nil
		}
		return "", translate(err)
	}
	record, err := model.DecodeBranch(raw)
	if err != nil {
		return "", fmt.Errorf("branch %q: %w", branch, err)
	}
	return record.Hash, nil
}

// SetBranchHash moves the head of a branch from oldHash to newHash, provided the branch currently points to oldHash.
//
// An empty oldHash stands for a branch which does not exist yet. An empty newHash deletes the branch.
// When oldHash and newHash are equal, nothing is written: the call asserts that the branch points to oldHash.
//
// If the branch does not point to oldHash, it fails with status.ErrMismatch and writes nothing.
func (p *Project) SetBranchHash(ctx context.Context, branch, oldHash, newHash string) (err error) {
	defer func(t0 time.Time) {
		p.record("SetBranchHash", t0, err)
		if errors.Is(err, status.ErrMismatch) {
			p.db.m.BranchMismatches.Inc()
		}
	}(time.Now())

	if err = model.ValidateBranchName(branch); err != nil {
		return err
	}
	if err = model.ValidateHead(oldHash); err != nil {
		return err
	}
	if err = model.ValidateHead(newHash); err != nil {
		return err
	}
	if err = p.check(); err != nil {
		return err
	}

	if oldHash == newHash {
		current, e := p.branchHash(ctx, branch)
		if e != nil {
			return e
		}
		if current != oldHash {
			return status.ErrMismatch.Wrap(fmt.Errorf("branch %q is at %q, not %q", branch, current, oldHash))
		}
		return nil
	}

	expected, err := model.EncodeBranch(branch, oldHash)
	if err != nil {
		return err
	}
	value, err := model.EncodeBranch(branch, newHash)
	if err != nil {
		return err
	}

	key := p.key(model.BranchID(branch))
	err = p.db.store.CompareAndSwap(ctx, key, expected, value)
	if err != nil {
		if errors.Is(err, storagestatus.ErrMismatch) {
			return status.ErrMismatch.Wrap(fmt.Errorf("branch %q is not at %q", branch, oldHash))
		}
		return translate(err)
	}
	if value != nil && p.isDeleted() {
		return p.undo(ctx, key, value)
	}
	p.l.Debug("branch updated", zap.String("branch", branch), zap.String("old", oldHash), zap.String("new", newHash))
	return nil
}
