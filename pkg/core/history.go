package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// Commits lists up to maxCount commits with a time strictly before some cutoff, most recent first.
//
// Commits with the same time are ordered by identifier.
func (p *Project) Commits(ctx context.Context, before int64, maxCount int) (commits []*model.Commit, err error) {
	defer func(t0 time.Time) {
		p.record("Commits", t0, err)
	}(time.Now())

	if err = p.check(); err != nil {
		return nil, err
	}
	commits = make([]*model.Commit, 0, max(0, min(maxCount, 100)))
	if maxCount <= 0 {
		return commits, nil
	}

	err = p.db.store.Scan(ctx, p.prefix(), func(k storage.Key, v []byte) error {
		if !model.IsHash(k.ID) || model.PeekType(v) != model.TypeCommit {
			return nil
		}
		o, e := model.DecodeObject(v)
		if e != nil {
			return fmt.Errorf("scanning commits: %w", e)
		}
		c, _ := o.Commit()
		if c.Time < before {
			commits = append(commits, c)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	sort.Slice(commits, func(i, j int) bool {
		if commits[i].Time != commits[j].Time {
			return commits[i].Time > commits[j].Time
		}
		return commits[i].ID < commits[j].ID
	})
	if len(commits) > maxCount {
		commits = commits[:maxCount]
	}
	return commits, nil
}

// frontier of one side of an ancestor search
type frontier struct {
	visited map[string]struct{}
	next    []string
}

func newFrontier(start string) *frontier {
	return &frontier{
		visited: map[string]struct{}{start: {}},
		next:    []string{start},
	}
}

// firstVisitedBy yields the first commit of this frontier that the other side has already visited
func (f *frontier) firstVisitedBy(other *frontier) (string, bool) {
	for _, id := range f.next {
		if _, ok := other.visited[id]; ok {
			return id, true
		}
	}
	return "", false
}

// CommonAncestorCommit finds the most recent commit reachable from both commits a and b.
//
// Both histories are walked breadth-first, one generation at a time, following all parents of merges.
// After each generation, the first commit newly reached from one side and already seen from
// the other side is the answer. Disjoint histories yield status.ErrNoCommonAncestor.
func (p *Project) CommonAncestorCommit(ctx context.Context, a, b string) (ancestor string, err error) {
	defer func(t0 time.Time) {
		p.record("CommonAncestorCommit", t0, err)
	}(time.Now())

	if err = model.ValidateHash(a); err != nil {
		return "", err
	}
	if err = model.ValidateHash(b); err != nil {
		return "", err
	}
	if err = p.check(); err != nil {
		return "", err
	}

	sideA, sideB := newFrontier(a), newFrontier(b)
	rounds := 0
	defer func() {
		p.db.m.AncestorRounds.Observe(float64(rounds))
	}()

	for {
		if id, ok := sideA.firstVisitedBy(sideB); ok {
			p.l.Debug("common ancestor found", zap.String("a", a), zap.String("b", b), zap.String("ancestor", id), zap.Int("rounds", rounds))
			return id, nil
		}
		if id, ok := sideB.firstVisitedBy(sideA); ok {
			p.l.Debug("common ancestor found", zap.String("a", a), zap.String("b", b), zap.String("ancestor", id), zap.Int("rounds", rounds))
			return id, nil
		}
		if len(sideA.next) == 0 && len(sideB.next) == 0 {
			return "", status.ErrNoCommonAncestor.Wrap(fmt.Errorf("between %s and %s", a, b))
		}
		if err = ctx.Err(); err != nil {
			return "", err
		}

		if err = p.expand(ctx, sideA); err != nil {
			return "", err
		}
		if err = p.expand(ctx, sideB); err != nil {
			return "", err
		}
		rounds++
	}
}

// expand a frontier to the parents of its commits which have not been visited yet
func (p *Project) expand(ctx context.Context, f *frontier) error {
	commits, err := p.loadCommits(ctx, f.next)
	if err != nil {
		return err
	}

	next := make([]string, 0, len(commits))
	for _, c := range commits {
		for _, parent := range c.Parents {
			if _, seen := f.visited[parent]; seen {
				continue
			}
			f.visited[parent] = struct{}{}
			next = append(next, parent)
		}
	}
	f.next = next
	return nil
}

// loadCommits loads commits concurrently. Results are in the order of ids.
func (p *Project) loadCommits(ctx context.Context, ids []string) ([]*model.Commit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	mapper := iter.Mapper[string, *model.Commit]{MaxGoroutines: p.db.settings.concurrency}
	return mapper.MapErr(ids, func(id *string) (*model.Commit, error) {
		o, err := p.loadObject(ctx, *id)
		if err != nil {
			return nil, err
		}
		c, isCommit := o.Commit()
		if !isCommit {
			return nil, status.ErrNotCommit.Wrap(fmt.Errorf("%s is a %v", *id, o.Kind))
		}
		return c, nil
	})
}
