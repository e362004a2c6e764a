package datasets

import (
	"context"
	"fmt"
	"sync"
)

// Rendezvous coordinates the processes (or workers) sharing one cache file.
// Rank 0 is the leader and the only writer; everyone else is a read-only
// consumer of the finished artifact. Barrier blocks until every participant
// has arrived.
//
// Within a single process the zero-value SingleProcess suffices. Multi-host
// training supplies its own implementation (file lock, collective, ...).
type Rendezvous interface {
	Rank() int
	Barrier(ctx context.Context) error
}

// SingleProcess is the trivial rendezvous for a lone process: always the
// leader, barriers return immediately.
type SingleProcess struct{}

// Rank implements Rendezvous.
func (SingleProcess) Rank() int { return 0 }

// Barrier implements Rendezvous.
func (SingleProcess) Barrier(ctx context.Context) error { return ctx.Err() }

// leaderFirst runs fn on every participant, but orders the group so that
// followers cannot pass the barrier until the leader has finished. The
// leader runs fn and then releases the barrier; followers wait at the
// barrier first and run fn after the leader's work (typically the cache
// save) is complete. This is the protocol that keeps readers from racing
// the cache writer.
func leaderFirst(ctx context.Context, rv Rendezvous, fn func(leader bool) error) error {
	if rv == nil {
		rv = SingleProcess{}
	}
	leader := rv.Rank() == 0
	if !leader {
		if err := rv.Barrier(ctx); err != nil {
			return fmt.Errorf("rendezvous barrier: %w", err)
		}
	}
	err := fn(leader)
	if leader {
		if berr := rv.Barrier(ctx); berr != nil && err == nil {
			err = fmt.Errorf("rendezvous barrier: %w", berr)
		}
	}
	return err
}

// NewGroup builds an in-process rendezvous group of n members, one per
// worker goroutine, rank equal to slice position. It exists for tests and
// single-machine multi-worker runs.
func NewGroup(n int) []Rendezvous {
	if n < 1 {
		n = 1
	}
	g := &localGroup{n: n, release: make(chan struct{})}
	members := make([]Rendezvous, n)
	for i := range members {
		members[i] = &localMember{group: g, rank: i}
	}
	return members
}

// localGroup is a reusable counting barrier.
type localGroup struct {
	n       int
	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func (g *localGroup) await(ctx context.Context) error {
	g.mu.Lock()
	g.arrived++
	ch := g.release
	if g.arrived == g.n {
		// Last arrival releases the generation and resets for the next one.
		g.arrived = 0
		g.release = make(chan struct{})
		close(ch)
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		defer g.mu.Unlock()
		select {
		case <-ch:
			// Released concurrently with the cancellation; the barrier
			// completed, report success.
			return nil
		default:
		}
		// Withdraw the arrival so it cannot count toward a later round.
		g.arrived--
		return ctx.Err()
	}
}

type localMember struct {
	group *localGroup
	rank  int
}

// Rank implements Rendezvous.
func (m *localMember) Rank() int { return m.rank }

// Barrier implements Rendezvous.
func (m *localMember) Barrier(ctx context.Context) error { return m.group.await(ctx) }
