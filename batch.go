package trajectory

import (
	"context"
	"fmt"

	"github.com/ChristopherRabotin/trajectory/state"
	"golang.org/x/sync/errgroup"
)

// SolveBatch solves the sequence from each of the initial states concurrently, with at most limit solves in
// flight (unbounded if limit is not positive). Solutions are in the order of the initial states. The first
// error cancels the solves which have not started yet.
func (s *Sequence) SolveBatch(ctx context.Context, initials []state.State, limit int) ([]SequenceSolution, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	solutions := make([]SequenceSolution, len(initials))
	for i, initial := range initials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sol, err := s.Solve(initial)
			solutions[i] = sol
			if err != nil {
				return fmt.Errorf("initial state %d: %w", i, err)
			}
			return nil
		})
	}
	return solutions, g.Wait()
}
