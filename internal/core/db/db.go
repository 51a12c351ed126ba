// Package db implements the incremental computation engine: memoized,
// revision-tracked queries over the source database, with early
// cutoff, cycle recovery, cancellation, and snapshot pinning. Every
// derived fact in the system — parse trees, semantic indices,
// inferred types, resolved rule selections — is a query result cached
// here, keyed by the argument tuple, and invalidated lazily when an
// input it (transitively) read changes revision.
package db

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/token"
)

// Revision aliases the source database's change counter; all staleness
// comparisons happen in global-revision units.
type Revision = source.Revision

// A Query is a named pure function of the database and an argument
// key. Queries are declared once, at package init time, by their
// implementing package.
type Query struct {
	// Name uniquely identifies the query; two queries with the same
	// name share a cache namespace, so names must be distinct.
	Name string

	// Compute derives the value for key. It must be pure: any input it
	// reads must go through ctx so the dependency is recorded.
	Compute func(ctx *Context, key any) any

	// Cycle configures recovery when this query participates in a
	// dependency cycle.
	Cycle CycleConfig

	// Equal overrides the structural-equality check used for early
	// cutoff. Nil means reflect.DeepEqual.
	Equal func(old, new any) bool
}

// CycleConfig declares how a query behaves inside a dependency cycle.
type CycleConfig struct {
	// Recovery is returned for the inner re-entry of a cycle, and
	// forced as the final result if the fixpoint does not converge.
	Recovery any

	// MaxIterations bounds the fixpoint loop; 0 means a small default.
	MaxIterations int
}

const defaultCycleIterations = 10

func (c CycleConfig) iterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return defaultCycleIterations
}

type nodeKey struct {
	query string
	key   any
}

// A dependency is one read recorded during a query execution: either
// another query node or a file input.
type dependency struct {
	query *Query // nil for a file input
	key   any
	file  *source.File
}

type node struct {
	mu sync.Mutex

	hasValue   bool
	value      any
	verifiedAt Revision
	changedAt  Revision
	deps       []dependency

	// cycleTainted marks that the cached value came out of cycle
	// recovery at verifiedAt and may not be a true fixpoint.
	cycleTainted bool

	// provisional holds the in-progress value during fixpoint
	// iteration so inner re-entries converge instead of seeing the
	// recovery value forever.
	provisional    any
	hasProvisional bool

	recomputes int
}

// Database owns the query cache and the source registry it derives
// from.
type Database struct {
	Sources *source.Registry

	mu     sync.Mutex
	nodes  map[nodeKey]*node
	flight singleflight.Group

	cancel CancellationToken
}

// New creates a database over the given source registry.
func New(reg *source.Registry) *Database {
	return &Database{
		Sources: reg,
		nodes:   make(map[nodeKey]*node),
	}
}

// CancellationToken returns the token shared by every query running
// against this database.
func (d *Database) CancellationToken() *CancellationToken { return &d.cancel }

func (d *Database) node(nk nodeKey) *node {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[nk]
	if !ok {
		n = &node{}
		d.nodes[nk] = n
	}
	return n
}

// Recomputes reports how many times the query's Compute has actually
// run for key. Tests use it to assert early cutoff.
func (d *Database) Recomputes(q *Query, key any) int {
	n := d.node(nodeKey{q.Name, key})
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recomputes
}

// Context is the handle passed to every query execution. It records
// dependencies, tracks the active query stack for cycle detection,
// and gives access to file inputs.
type Context struct {
	db     *Database
	active []nodeKey
	deps   []dependency
	// sawCycle collects the keys that were re-entered through a cycle
	// (the cycle heads), so the unwinding can run their fixpoint and
	// taint them. Other queries on the cycle path are not tainted.
	sawCycle map[nodeKey]bool
}

// Execute runs q(key) to completion, returning its (possibly cached)
// value. It is the only entry point for drivers; queries call each
// other through [Context.Get]. The error is non-nil only for
// cancellation.
func (d *Database) Execute(q *Query, key any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelled); ok {
				v, err = nil, ErrCancelled
				return
			}
			panic(r)
		}
	}()
	ctx := &Context{db: d, sawCycle: make(map[nodeKey]bool)}
	return ctx.Get(q, key), nil
}

// Get returns the value of q(key), computing or re-verifying it as
// needed, and records the read as a dependency of the calling query.
func (c *Context) Get(q *Query, key any) any {
	c.db.checkCancelled()

	nk := nodeKey{q.Name, key}
	for _, active := range c.active {
		if active == nk {
			// Cycle re-entry: hand back the provisional value if a
			// fixpoint iteration is in progress, else the declared
			// recovery value.
			c.sawCycle[nk] = true
			n := c.db.node(nk)
			n.mu.Lock()
			defer n.mu.Unlock()
			if n.hasProvisional {
				return n.provisional
			}
			return q.Cycle.Recovery
		}
	}

	n := c.db.node(nk)
	v := c.ensure(q, key, nk, n)
	c.deps = append(c.deps, dependency{query: q, key: key})
	return v
}

// ReadFile returns file's current text and records the read as an
// input dependency.
func (c *Context) ReadFile(file *source.File) source.SourceText {
	c.db.checkCancelled()
	text := c.db.Sources.Read(file)
	c.deps = append(c.deps, dependency{file: file})
	return text
}

// LineIndex returns the file's memoized line index, recording an
// input dependency the same way ReadFile does.
func (c *Context) LineIndex(file *source.File) *token.File {
	c.db.checkCancelled()
	tf := c.db.Sources.LineIndex(file)
	c.deps = append(c.deps, dependency{file: file})
	return tf
}

// Database returns the owning database, for queries that need to
// reach shared facilities (interners, the source registry's file
// lookup). Reads must still go through the Context.
func (c *Context) Database() *Database { return c.db }

// ensure brings n up to date for the current revision and returns its
// value.
func (c *Context) ensure(q *Query, key any, nk nodeKey, n *node) any {
	rev := c.db.Sources.GlobalRevision()

	n.mu.Lock()
	if n.hasValue && n.verifiedAt == rev {
		v := n.value
		n.mu.Unlock()
		return v
	}
	n.mu.Unlock()

	// Collapse concurrent identical invocations onto one execution;
	// the losers block here and read the freshly verified value.
	// Cancellation is carried across the flight boundary as an error
	// so the panic payload never crosses goroutines.
	v, err, _ := c.db.flight.Do(flightKey(nk), func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(cancelled); ok {
					err = ErrCancelled
					return
				}
				panic(r)
			}
		}()
		return c.ensureLocked(q, key, nk, n, rev), nil
	})
	if err != nil {
		panic(cancelled{})
	}
	return v
}

func flightKey(nk nodeKey) string {
	return fmt.Sprintf("%s\x00%v", nk.query, nk.key)
}

func (c *Context) ensureLocked(q *Query, key any, nk nodeKey, n *node, rev Revision) any {
	n.mu.Lock()
	if n.hasValue && n.verifiedAt == rev {
		v := n.value
		n.mu.Unlock()
		return v
	}
	deps := n.deps
	hasValue := n.hasValue
	verifiedAt := n.verifiedAt
	n.mu.Unlock()

	// Early cutoff: if every dependency's last-changed revision is at
	// most our last verification, the cached value is still good.
	if hasValue && !c.anyDepChanged(deps, verifiedAt) {
		n.mu.Lock()
		n.verifiedAt = rev
		v := n.value
		n.mu.Unlock()
		return v
	}

	return c.recompute(q, key, nk, n, rev)
}

// anyDepChanged re-verifies each dependency (recursively, via Get on a
// scratch context) and reports whether any changed after since.
func (c *Context) anyDepChanged(deps []dependency, since Revision) bool {
	for _, dep := range deps {
		c.db.checkCancelled()
		if dep.file != nil {
			if dep.file.GlobalChangedAt() > since {
				return true
			}
			continue
		}
		sub := &Context{db: c.db, active: c.active, sawCycle: c.sawCycle}
		sub.Get(dep.query, dep.key)
		dn := c.db.node(nodeKey{dep.query.Name, dep.key})
		dn.mu.Lock()
		changed := dn.changedAt > since
		dn.mu.Unlock()
		if changed {
			return true
		}
	}
	return false
}

func (c *Context) recompute(q *Query, key any, nk nodeKey, n *node, rev Revision) any {
	child := &Context{
		db:       c.db,
		active:   append(append([]nodeKey{}, c.active...), nk),
		sawCycle: c.sawCycle,
	}
	v := q.Compute(child, key)

	if c.sawCycle[nk] {
		v = c.iterateCycle(q, key, nk, n, v, child)
	}

	equal := q.Equal
	if equal == nil {
		equal = reflect.DeepEqual
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.recomputes++
	if !(n.hasValue && equal(n.value, v)) {
		n.value = v
		n.changedAt = rev
	}
	n.hasValue = true
	n.verifiedAt = rev
	n.deps = child.deps
	n.cycleTainted = c.sawCycle[nk]
	n.hasProvisional = false
	n.provisional = nil
	return n.value
}

// iterateCycle runs the fixpoint loop for a cycle head: re-execute
// with the previous round's value visible to inner re-entries until
// the value stabilizes or the iteration limit forces recovery.
func (c *Context) iterateCycle(q *Query, key any, nk nodeKey, n *node, v any, child *Context) any {
	equal := q.Equal
	if equal == nil {
		equal = reflect.DeepEqual
	}
	for i := 0; i < q.Cycle.iterations(); i++ {
		n.mu.Lock()
		n.provisional = v
		n.hasProvisional = true
		n.mu.Unlock()

		iter := &Context{db: c.db, active: child.active, sawCycle: c.sawCycle}
		next := q.Compute(iter, key)
		child.deps = iter.deps
		if equal(v, next) {
			return next
		}
		v = next
	}
	return q.Cycle.Recovery
}

// CycleTainted reports whether the cached value for q(key) came out of
// cycle recovery at its last verification.
func (d *Database) CycleTainted(q *Query, key any) bool {
	n := d.node(nodeKey{q.Name, key})
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cycleTainted
}

// Snapshot pins the database's current revision under a fresh id.
// Inputs cannot mutate while the snapshot is open.
type Snapshot struct {
	ID uuid.UUID
	*source.Snapshot
}

// Snapshot acquires a read-only pin on the current revision, or nil
// if cancellation is pending: new snapshots cannot be taken until the
// token is cleared.
func (d *Database) Snapshot() *Snapshot {
	if d.cancel.IsCancelled() {
		return nil
	}
	return &Snapshot{ID: uuid.New(), Snapshot: d.Sources.Snapshot()}
}

// GetTyped is a convenience wrapper asserting the query's value type.
func GetTyped[T any](c *Context, q *Query, key any) T {
	v := c.Get(q, key)
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// ExecuteTyped is [Database.Execute] with the value type asserted.
func ExecuteTyped[T any](d *Database, q *Query, key any) (T, error) {
	v, err := d.Execute(q, key)
	if err != nil || v == nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
