package db

import (
	"golang.org/x/sync/errgroup"
)

// Parallel runs fn for each i in [0, n) across worker goroutines, each
// with its own child context sharing the database. Dependencies the
// workers record are merged back into c, so the calling query's node
// still sees every read. Drivers use this to fan out per-file checks;
// queries can use it for independent sub-queries.
func Parallel(c *Context, n int, workers int, fn func(sub *Context, i int)) {
	if workers <= 0 {
		workers = 4
	}
	var g errgroup.Group
	g.SetLimit(workers)

	// Each worker records into its own child context; the merge below
	// runs after Wait, so no lock is needed.
	subs := make([]*Context, n)
	for i := 0; i < n; i++ {
		i := i
		sub := &Context{db: c.db, active: c.active, sawCycle: make(map[nodeKey]bool)}
		subs[i] = sub
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(cancelled); ok {
						err = ErrCancelled
						return
					}
					panic(r)
				}
			}()
			fn(sub, i)
			return nil
		})
	}
	err := g.Wait()

	for _, sub := range subs {
		c.deps = append(c.deps, sub.deps...)
		for k := range sub.sawCycle {
			c.sawCycle[k] = true
		}
	}
	if err != nil {
		panic(cancelled{})
	}
}
