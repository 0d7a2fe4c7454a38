package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Execute runs the graph: every node gets its own goroutine, blocked on
// the completion of all declared predecessors (AND-join). Independent
// nodes run concurrently. The first node error cancels the remaining
// nodes via the group context.
func Execute(ctx context.Context, g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	done := make(map[string]chan struct{}, len(g.nodes))
	for name := range g.nodes {
		done[name] = make(chan struct{})
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range g.order {
		node := g.nodes[name]
		eg.Go(func() error {
			for _, dep := range node.After {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			logx.Debug().Str("node", node.Name).Msg("stage node starting")
			if err := node.Run(ctx); err != nil {
				return fmt.Errorf("node %q: %w", node.Name, err)
			}
			logx.Debug().Str("node", node.Name).Msg("stage node finished")
			close(done[node.Name])
			return nil
		})
	}
	return eg.Wait()
}
