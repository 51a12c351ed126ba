package semantic

import (
	"slices"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/internal/core/source"
)

// Build constructs the semantic index for one parsed module. The pass
// is a single recursive descent: scopes push and pop on a stack, every
// binding appends a definition and a flow node, every load records a
// use with its reaching definitions, and conditional constructs
// snapshot and merge the per-place live-binding maps.
func Build(file *source.File, mod *ast.Module) *Index {
	ix := &Index{
		File:     file,
		useSite:  make(map[ast.Expr]useSite),
		scopeOf:  make(map[ast.Node]ScopeID),
		exprFlow: make(map[ast.Expr]FlowNodeID),
	}
	b := &builder{index: ix}
	b.pushScope(KindModule, mod)
	b.stmts(mod.Body)
	b.popScope()
	return ix
}

// liveBinding is the mutable use–def state for one place: a range into
// the scope's flat definition buffer plus the unbound flag. The empty
// range with mayBeUnbound means the place has no local binding yet.
type liveBinding struct {
	defs         defRange
	mayBeUnbound bool
}

type scopeState struct {
	data *ScopeData

	live        map[PlaceID]liveBinding
	cur         FlowNodeID
	curVis      VisibilityID
	activePreds []PredicateID
	terminated  bool

	predIdx map[predKey]PredicateID
	visIdx  map[visNode]VisibilityID
}

type predKey struct {
	test     ast.Expr
	positive bool
	star     *ast.ImportFrom
	pattern  ast.Pattern
}

type builder struct {
	index *Index
	stack []*scopeState
}

func (b *builder) cur() *scopeState { return b.stack[len(b.stack)-1] }

func (b *builder) pushScope(kind ScopeKind, node ast.Node) *scopeState {
	id := ScopeID(len(b.index.Scopes))
	parent := id
	if len(b.stack) > 0 {
		parent = b.cur().data.ID
	}
	data := &ScopeData{
		ID:        id,
		Parent:    parent,
		Kind:      kind,
		Node:      node,
		Globals:   make(map[string]bool),
		Nonlocals: make(map[string]bool),
		public:    make(map[PlaceID]Binding),
		placeIdx:  make(map[string]PlaceID),
		flow:      []flowNode{{kind: flowStart}},
		vis:       []visNode{{kind: visNone}},
	}
	b.index.Scopes = append(b.index.Scopes, data)
	b.index.scopeOf[node] = id
	sc := &scopeState{
		data:    data,
		live:    make(map[PlaceID]liveBinding),
		cur:     FlowStart,
		curVis:  VisAlways,
		predIdx: make(map[predKey]PredicateID),
		visIdx:  make(map[visNode]VisibilityID),
	}
	b.stack = append(b.stack, sc)
	return sc
}

// popScope freezes the scope: the live map becomes the public
// end-of-scope bindings and every growable slice is shrunk to fit.
func (b *builder) popScope() {
	sc := b.cur()
	d := sc.data
	for pid, lb := range sc.live {
		d.public[pid] = Binding{defs: lb.defs, MayBeUnbound: lb.mayBeUnbound}
	}
	d.Places = slices.Clip(d.Places)
	d.Definitions = slices.Clip(d.Definitions)
	d.Uses = slices.Clip(d.Uses)
	d.Predicates = slices.Clip(d.Predicates)
	d.StarImports = slices.Clip(d.StarImports)
	d.defsBuf = slices.Clip(d.defsBuf)
	d.flow = slices.Clip(d.flow)
	d.vis = slices.Clip(d.vis)
	b.stack = b.stack[:len(b.stack)-1]
}

// place interns a place key within the scope.
func (sc *scopeState) place(key, name string) PlaceID {
	if id, ok := sc.data.placeIdx[key]; ok {
		return id
	}
	id := PlaceID(len(sc.data.Places))
	sc.data.Places = append(sc.data.Places, Place{Key: source.InternString(key), Name: name})
	sc.data.placeIdx[key] = id
	return id
}

// predicate interns a predicate within the scope.
func (sc *scopeState) predicate(p Predicate) PredicateID {
	k := predKey{test: p.Test, positive: p.Positive, star: p.StarImport, pattern: p.Pattern}
	if id, ok := sc.predIdx[k]; ok {
		return id
	}
	id := PredicateID(len(sc.data.Predicates))
	sc.data.Predicates = append(sc.data.Predicates, p)
	sc.predIdx[k] = id
	return id
}

func (sc *scopeState) visNodeID(n visNode) VisibilityID {
	if id, ok := sc.visIdx[n]; ok {
		return id
	}
	id := VisibilityID(len(sc.data.vis))
	sc.data.vis = append(sc.data.vis, n)
	sc.visIdx[n] = id
	return id
}

func (sc *scopeState) visSingle(p PredicateID) VisibilityID {
	return sc.visNodeID(visNode{kind: visSingle, pred: p})
}

func (sc *scopeState) visSequence(l, r VisibilityID) VisibilityID {
	if l == VisAlways {
		return r
	}
	if r == VisAlways {
		return l
	}
	return sc.visNodeID(visNode{kind: visSequence, l: l, r: r})
}

func (sc *scopeState) visMerged(l, r VisibilityID) VisibilityID {
	if l == r {
		return l
	}
	return sc.visNodeID(visNode{kind: visMerged, l: l, r: r})
}

// define appends a definition of the given place and threads it into
// the flow graph and the live use–def state.
func (b *builder) define(kind DefinitionKind, key, name string, node ast.Node, target, value, annotation ast.Expr) DefinitionID {
	sc := b.cur()
	pid := sc.place(key, name)
	did := DefinitionID(len(sc.data.Definitions))
	sc.data.Definitions = append(sc.data.Definitions, Definition{
		Kind:       kind,
		Place:      pid,
		Node:       node,
		Target:     target,
		Value:      value,
		Annotation: annotation,
		Narrowing:  slices.Clone(sc.activePreds),
		Visibility: sc.curVis,
	})

	sc.data.defsBuf = append(sc.data.defsBuf, did)
	n := uint32(len(sc.data.defsBuf))
	if kind == DefDelete {
		// `del x` leaves the place unbound.
		sc.live[pid] = liveBinding{defs: defRange{n, n}, mayBeUnbound: true}
	} else {
		sc.live[pid] = liveBinding{defs: defRange{n - 1, n}}
	}

	pred := NoPredicate
	if len(sc.activePreds) > 0 {
		pred = sc.activePreds[len(sc.activePreds)-1]
	}
	sc.cur = sc.data.addFlow(flowNode{
		kind:      flowDefinition,
		pred:      sc.cur,
		place:     pid,
		def:       did,
		predicate: pred,
	})
	return did
}

// use records a load of a place: the current live range (empty, with
// the unbound flag, when the place has no local binding — resolution
// then continues in enclosing scopes) and the predicates dominating
// the load site.
func (b *builder) use(e ast.Expr, key, name string) {
	sc := b.cur()
	pid := sc.place(key, name)
	lb, ok := sc.live[pid]
	if !ok {
		lb = liveBinding{mayBeUnbound: true}
	}
	uid := UseID(len(sc.data.Uses))
	sc.data.Uses = append(sc.data.Uses, Use{
		Place:        pid,
		Node:         e,
		defs:         lb.defs,
		MayBeUnbound: lb.mayBeUnbound,
		Narrowing:    slices.Clone(sc.activePreds),
		Flow:         sc.cur,
	})
	b.index.useSite[e] = useSite{scope: sc.data.ID, use: uid}
}

func cloneLive(m map[PlaceID]liveBinding) map[PlaceID]liveBinding {
	out := make(map[PlaceID]liveBinding, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mergeLive joins the per-place states of two arms. Matching ranges
// are shared; adjacent ranges in the flat buffer are extended in
// place; anything else is copied to the end of the buffer. The unbound
// flag is the disjunction of the two sides; a place bound on only one
// side may be unbound on the other.
func (sc *scopeState) mergeLive(a, b map[PlaceID]liveBinding) map[PlaceID]liveBinding {
	out := make(map[PlaceID]liveBinding, len(a))
	seen := make(map[PlaceID]bool, len(a))
	for pid, la := range a {
		seen[pid] = true
		lb, ok := b[pid]
		if !ok {
			lb = liveBinding{mayBeUnbound: true}
		}
		out[pid] = sc.mergeBinding(la, lb)
	}
	for pid, lb := range b {
		if !seen[pid] {
			out[pid] = sc.mergeBinding(liveBinding{mayBeUnbound: true}, lb)
		}
	}
	return out
}

func (sc *scopeState) mergeBinding(a, b liveBinding) liveBinding {
	unbound := a.mayBeUnbound || b.mayBeUnbound
	switch {
	case a.defs == b.defs:
		return liveBinding{defs: a.defs, mayBeUnbound: unbound}
	case a.defs.start == a.defs.end:
		return liveBinding{defs: b.defs, mayBeUnbound: unbound}
	case b.defs.start == b.defs.end:
		return liveBinding{defs: a.defs, mayBeUnbound: unbound}
	case a.defs.end == b.defs.start:
		return liveBinding{defs: defRange{a.defs.start, b.defs.end}, mayBeUnbound: unbound}
	case b.defs.end == a.defs.start:
		return liveBinding{defs: defRange{b.defs.start, a.defs.end}, mayBeUnbound: unbound}
	default:
		buf := &sc.data.defsBuf
		start := uint32(len(*buf))
		*buf = append(*buf, (*buf)[a.defs.start:a.defs.end]...)
		*buf = append(*buf, (*buf)[b.defs.start:b.defs.end]...)
		return liveBinding{defs: defRange{start, uint32(len(*buf))}, mayBeUnbound: unbound}
	}
}

// ---------------------------------------------------------------------
// Statements

// stmts indexes a statement list. Statements after a terminator are
// unreachable but still indexed so lints can see them; the terminated
// flag keeps their effect on the merge logic.
func (b *builder) stmts(list []ast.Stmt) {
	for _, s := range list {
		b.stmt(s)
	}
}

func (b *builder) stmt(s ast.Stmt) {
	sc := b.cur()
	switch n := s.(type) {
	case *ast.Assign:
		b.expr(n.Value)
		for _, t := range n.Targets {
			b.bindTarget(t, DefAssignment, n, n.Value, nil)
		}

	case *ast.AugAssign:
		// The target is read before it is rebound.
		b.expr(n.Value)
		b.expr(n.Target)
		b.bindTarget(n.Target, DefAugAssignment, n, n.Value, nil)

	case *ast.AnnAssign:
		b.expr(n.Annotation)
		if n.Value != nil {
			b.expr(n.Value)
			b.bindTarget(n.Target, DefAnnAssignment, n, n.Value, n.Annotation)
		}

	case *ast.FunctionDef:
		b.buildFunctionDef(n)

	case *ast.ClassDef:
		b.buildClassDef(n)

	case *ast.Return:
		if n.Value != nil {
			b.expr(n.Value)
		}
		sc.terminated = true

	case *ast.Raise:
		if n.Exc != nil {
			b.expr(n.Exc)
		}
		if n.Cause != nil {
			b.expr(n.Cause)
		}
		sc.terminated = true

	case *ast.Break, *ast.Continue:
		sc.terminated = true

	case *ast.Delete:
		for _, t := range n.Targets {
			b.expr(t)
			if key, ok := PlaceKey(t); ok {
				b.define(DefDelete, key, bareName(t), n, t, nil, nil)
			}
		}

	case *ast.IfStmt:
		b.buildIf(n)

	case *ast.WhileStmt:
		b.buildWhile(n)

	case *ast.ForStmt:
		b.buildFor(n)

	case *ast.WithStmt:
		for _, item := range n.Items {
			b.expr(item.Context)
			if item.Target != nil {
				b.bindTarget(item.Target, DefWithTarget, n, item.Context, nil)
			}
		}
		b.stmts(n.Body)

	case *ast.TryStmt:
		b.buildTry(n)

	case *ast.MatchStmt:
		b.buildMatch(n)

	case *ast.Assert:
		b.expr(n.Test)
		if n.Msg != nil {
			b.expr(n.Msg)
		}
		// Code after a passing assert is dominated by its condition.
		sc.activePreds = append(sc.activePreds, sc.predicate(Predicate{Test: n.Test, Positive: true}))

	case *ast.Import:
		for _, alias := range n.Names {
			name := importBoundName(alias)
			b.define(DefImport, name, name, alias, nil, nil, nil)
		}

	case *ast.ImportFrom:
		if n.Star {
			did := b.define(DefStarImport, "*", "", n, nil, nil, nil)
			sc.data.StarImports = append(sc.data.StarImports, did)
			// The placeholder predicate: whether any given name is
			// bound resolves against the imported module's public
			// names at inference time.
			sc.predicate(Predicate{StarImport: n, Positive: true})
			break
		}
		for _, alias := range n.Names {
			name := alias.Name
			if alias.AsName != nil {
				name = alias.AsName.Name
			}
			b.define(DefImportFrom, name, name, alias, nil, nil, nil)
		}

	case *ast.Global:
		for _, id := range n.Names {
			sc.data.Globals[id.Name] = true
		}

	case *ast.Nonlocal:
		for _, id := range n.Names {
			sc.data.Nonlocals[id.Name] = true
		}

	case *ast.ExprStmt:
		b.expr(n.Value)

	case *ast.Pass, *ast.BadStmt:
		// nothing to index
	}
}

func bareName(e ast.Expr) string {
	if id, ok := e.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// importBoundName returns the name `import a.b as c` style statements
// bind: the asname if present, else the top-level package name.
func importBoundName(alias *ast.Alias) string {
	if alias.AsName != nil {
		return alias.AsName.Name
	}
	name := alias.Name
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

// bindTarget records definitions for an assignment target, descending
// through tuple/list destructuring and starred elements.
func (b *builder) bindTarget(t ast.Expr, kind DefinitionKind, node ast.Node, value, annotation ast.Expr) {
	switch x := t.(type) {
	case *ast.TupleExpr:
		for _, e := range x.Elts {
			b.bindTarget(e, kind, node, value, nil)
		}
	case *ast.ListExpr:
		for _, e := range x.Elts {
			b.bindTarget(e, kind, node, value, nil)
		}
	case *ast.Starred:
		b.bindTarget(x.Value, kind, node, value, nil)
	case *ast.ParenExpr:
		b.bindTarget(x.X, kind, node, value, annotation)
	case *ast.Ident:
		b.define(kind, x.Name, x.Name, node, x, value, annotation)
	case *ast.Attribute:
		// The base is loaded, then the attribute place is bound.
		b.expr(x.Value)
		if key, ok := PlaceKey(x); ok {
			b.define(kind, key, "", node, x, value, annotation)
		}
	case *ast.Subscript:
		b.expr(x.Value)
		b.expr(x.Index)
		if key, ok := PlaceKey(x); ok {
			b.define(kind, key, "", node, x, value, annotation)
		}
	default:
		// Not a bindable target; still index its reads.
		b.expr(t)
	}
}

// ---------------------------------------------------------------------
// Branching constructs

// armResult captures one arm's outgoing state.
type armResult struct {
	live       map[PlaceID]liveBinding
	flow       FlowNodeID
	vis        VisibilityID
	terminated bool
}

// buildArm runs body under a branch flow node guarded by pred,
// starting from the given snapshot, and returns the arm's outgoing
// state. The scope's state is left pointing at the arm's end; callers
// snapshot/restore around it.
func (b *builder) buildArm(pred PredicateID, snapLive map[PlaceID]liveBinding, snapFlow FlowNodeID, snapVis VisibilityID, body []ast.Stmt) armResult {
	sc := b.cur()
	sc.live = cloneLive(snapLive)
	sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: pred})
	sc.curVis = sc.visSequence(snapVis, sc.visSingle(pred))
	sc.terminated = false

	base := len(sc.activePreds)
	sc.activePreds = append(sc.activePreds, pred)
	b.stmts(body)
	sc.activePreds = sc.activePreds[:base]

	return armResult{live: sc.live, flow: sc.cur, vis: sc.curVis, terminated: sc.terminated}
}

// joinArms merges two arm results back into the scope's state. A
// terminated arm contributes nothing; when exactly one arm survives,
// its guarding predicate remains active for the rest of the block
// (code after `if x is None: return` is dominated by `x is not None`).
func (b *builder) joinArms(then, els armResult, thenPred, elsePred PredicateID) {
	sc := b.cur()
	switch {
	case then.terminated && els.terminated:
		sc.live = els.live
		sc.cur = sc.data.addFlow(flowNode{kind: flowPhi, pred: then.flow, pred2: els.flow})
		sc.curVis = sc.visMerged(then.vis, els.vis)
		sc.terminated = true
	case then.terminated:
		sc.live = els.live
		sc.cur = els.flow
		sc.curVis = els.vis
		sc.terminated = false
		sc.activePreds = append(sc.activePreds, elsePred)
	case els.terminated:
		sc.live = then.live
		sc.cur = then.flow
		sc.curVis = then.vis
		sc.terminated = false
		sc.activePreds = append(sc.activePreds, thenPred)
	default:
		sc.live = sc.mergeLive(then.live, els.live)
		sc.cur = sc.data.addFlow(flowNode{kind: flowPhi, pred: then.flow, pred2: els.flow})
		sc.curVis = sc.visMerged(then.vis, els.vis)
		sc.terminated = false
	}
}

func (b *builder) buildIf(n *ast.IfStmt) {
	sc := b.cur()
	b.expr(n.Test)

	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis
	posP := sc.predicate(Predicate{Test: n.Test, Positive: true})
	negP := sc.predicate(Predicate{Test: n.Test, Positive: false})

	then := b.buildArm(posP, snapLive, snapFlow, snapVis, n.Body)
	els := b.buildArm(negP, snapLive, snapFlow, snapVis, n.Orelse)
	b.joinArms(then, els, posP, negP)
}

func (b *builder) buildWhile(n *ast.WhileStmt) {
	sc := b.cur()
	b.expr(n.Test)

	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis
	posP := sc.predicate(Predicate{Test: n.Test, Positive: true})
	negP := sc.predicate(Predicate{Test: n.Test, Positive: false})

	body := b.buildArm(posP, snapLive, snapFlow, snapVis, n.Body)
	// The loop may run zero times: the body's bindings merge with the
	// pre-loop state. break/continue make the body's exit state a
	// conservative approximation, which only widens the merge.
	zero := armResult{live: snapLive, flow: sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: negP}), vis: sc.visSequence(snapVis, sc.visSingle(negP))}
	body.terminated = false
	b.joinArms(body, zero, posP, negP)

	if len(n.Orelse) > 0 {
		b.stmts(n.Orelse)
	}
}

func (b *builder) buildFor(n *ast.ForStmt) {
	sc := b.cur()
	b.expr(n.Iter)

	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis

	// The body arm carries no expression predicate; an empty iterable
	// skips it entirely, so the target may be unbound afterward.
	sc.live = cloneLive(snapLive)
	sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: NoPredicate})
	sc.terminated = false
	b.bindTarget(n.Target, DefForTarget, n, n.Iter, nil)
	b.stmts(n.Body)
	body := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis, terminated: false}

	zero := armResult{live: snapLive, flow: snapFlow, vis: snapVis}
	sc.live = sc.mergeLive(body.live, zero.live)
	sc.cur = sc.data.addFlow(flowNode{kind: flowPhi, pred: body.flow, pred2: zero.flow})
	sc.curVis = sc.visMerged(body.vis, zero.vis)
	sc.terminated = false

	if len(n.Orelse) > 0 {
		b.stmts(n.Orelse)
	}
}

func (b *builder) buildTry(n *ast.TryStmt) {
	sc := b.cur()
	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis

	b.stmts(n.Body)
	bodyOut := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis, terminated: sc.terminated}

	// A handler may run after any prefix of the body: its entry state
	// is the merge of the pre-body state and the body's exit state.
	entry := sc.mergeLive(snapLive, bodyOut.live)
	merged := bodyOut
	for _, h := range n.Handlers {
		sc.live = cloneLive(entry)
		sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: NoPredicate})
		sc.curVis = snapVis
		sc.terminated = false
		if h.Type != nil {
			b.expr(h.Type)
		}
		if h.Name != nil {
			b.define(DefExceptHandler, h.Name.Name, h.Name.Name, h, h.Name, h.Type, nil)
		}
		b.stmts(h.Body)
		hOut := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis, terminated: sc.terminated}
		if hOut.terminated {
			continue
		}
		if merged.terminated {
			merged = hOut
			continue
		}
		merged = armResult{
			live: sc.mergeLive(merged.live, hOut.live),
			flow: sc.data.addFlow(flowNode{kind: flowPhi, pred: merged.flow, pred2: hOut.flow}),
			vis:  sc.visMerged(merged.vis, hOut.vis),
		}
	}

	sc.live = merged.live
	sc.cur = merged.flow
	sc.curVis = merged.vis
	sc.terminated = merged.terminated

	if len(n.Orelse) > 0 && !bodyOut.terminated {
		b.stmts(n.Orelse)
	}
	if len(n.Final) > 0 {
		term := sc.terminated
		sc.terminated = false
		b.stmts(n.Final)
		sc.terminated = sc.terminated || term
	}
}

func (b *builder) buildMatch(n *ast.MatchStmt) {
	sc := b.cur()
	b.expr(n.Subject)

	snapLive := cloneLive(sc.live)
	snapFlow := sc.cur
	snapVis := sc.curVis

	// Each case arm is guarded by a pattern predicate against the
	// subject. Arms merge pairwise with the no-case-matched
	// fallthrough.
	merged := armResult{live: snapLive, flow: snapFlow, vis: snapVis}
	for _, c := range n.Cases {
		pred := sc.predicate(Predicate{Subject: n.Subject, Pattern: c.Pattern, Positive: true})
		sc.live = cloneLive(snapLive)
		sc.cur = sc.data.addFlow(flowNode{kind: flowBranch, pred: snapFlow, predicate: pred})
		sc.curVis = sc.visSequence(snapVis, sc.visSingle(pred))
		sc.terminated = false

		base := len(sc.activePreds)
		sc.activePreds = append(sc.activePreds, pred)
		b.bindPattern(c.Pattern, c)
		if c.Guard != nil {
			b.expr(c.Guard)
		}
		b.stmts(c.Body)
		sc.activePreds = sc.activePreds[:base]

		out := armResult{live: sc.live, flow: sc.cur, vis: sc.curVis, terminated: sc.terminated}
		if out.terminated {
			continue
		}
		merged = armResult{
			live: sc.mergeLive(merged.live, out.live),
			flow: sc.data.addFlow(flowNode{kind: flowPhi, pred: merged.flow, pred2: out.flow}),
			vis:  sc.visMerged(merged.vis, out.vis),
		}
	}

	sc.live = merged.live
	sc.cur = merged.flow
	sc.curVis = merged.vis
	sc.terminated = false
}

func (b *builder) bindPattern(p ast.Pattern, node ast.Node) {
	switch x := p.(type) {
	case *ast.CapturePattern:
		if x.Name != nil {
			b.define(DefPatternCapture, x.Name.Name, x.Name.Name, node, x.Name, nil, nil)
		}
	case *ast.ValuePattern:
		b.expr(x.Value)
	case *ast.SequencePattern:
		for _, e := range x.Elts {
			b.bindPattern(e, node)
		}
	case *ast.MappingPattern:
		for _, e := range x.Entries {
			b.expr(e.Key)
			b.bindPattern(e.Pattern, node)
		}
		if x.Rest != nil {
			b.define(DefPatternCapture, x.Rest.Name, x.Rest.Name, node, x.Rest, nil, nil)
		}
	case *ast.ClassPattern:
		b.expr(x.Callee)
		for _, e := range x.Positional {
			b.bindPattern(e, node)
		}
		for _, kw := range x.Keyword {
			b.bindPattern(kw.Pattern, node)
		}
	case *ast.OrPattern:
		for _, a := range x.Alternatives {
			b.bindPattern(a, node)
		}
	case *ast.AsPattern:
		b.bindPattern(x.Pattern, node)
		if x.Name != nil {
			b.define(DefPatternCapture, x.Name.Name, x.Name.Name, node, x.Name, nil, nil)
		}
	}
}

// ---------------------------------------------------------------------
// Scope-introducing definitions

func (b *builder) buildFunctionDef(n *ast.FunctionDef) {
	// Decorators, parameter annotations, defaults, and the return
	// annotation evaluate in the enclosing scope.
	for _, d := range n.Decorators {
		b.expr(d)
	}
	b.walkParamOuterExprs(n.Params)
	if n.Returns != nil {
		b.expr(n.Returns)
	}

	b.define(DefFunction, n.Name.Name, n.Name.Name, n, n.Name, nil, n.Returns)

	if len(n.TypeParams) > 0 {
		b.pushScope(KindTypeParams, n.Name)
		for _, tp := range n.TypeParams {
			if tp.Bound != nil {
				b.expr(tp.Bound)
			}
			b.define(DefTypeParam, tp.Name.Name, tp.Name.Name, tp, tp.Name, nil, tp.Bound)
		}
	}

	b.pushScope(KindFunction, n)
	b.bindParams(n.Params, n)
	b.stmts(n.Body)
	b.popScope()

	if len(n.TypeParams) > 0 {
		b.popScope()
	}
}

func (b *builder) buildClassDef(n *ast.ClassDef) {
	for _, d := range n.Decorators {
		b.expr(d)
	}
	for _, base := range n.Bases {
		b.expr(base)
	}
	for _, kw := range n.Keywords {
		b.expr(kw.Value)
	}

	b.define(DefClass, n.Name.Name, n.Name.Name, n, n.Name, nil, nil)

	if len(n.TypeParams) > 0 {
		b.pushScope(KindTypeParams, n.Name)
		for _, tp := range n.TypeParams {
			if tp.Bound != nil {
				b.expr(tp.Bound)
			}
			b.define(DefTypeParam, tp.Name.Name, tp.Name.Name, tp, tp.Name, nil, tp.Bound)
		}
	}

	b.pushScope(KindClass, n)
	b.stmts(n.Body)
	b.popScope()

	if len(n.TypeParams) > 0 {
		b.popScope()
	}
}

// walkParamOuterExprs evaluates the parts of a parameter list that
// belong to the enclosing scope: annotations and defaults.
func (b *builder) walkParamOuterExprs(params *ast.Parameters) {
	if params == nil {
		return
	}
	each := func(list []*ast.Param) {
		for _, p := range list {
			if p.Annotation != nil {
				b.expr(p.Annotation)
			}
			if p.Default != nil {
				b.expr(p.Default)
			}
		}
	}
	each(params.PosOnly)
	each(params.Args)
	if params.VarArg != nil {
		each([]*ast.Param{params.VarArg})
	}
	each(params.KwOnly)
	if params.KwArg != nil {
		each([]*ast.Param{params.KwArg})
	}
}

// bindParams defines each formal parameter inside the new scope.
func (b *builder) bindParams(params *ast.Parameters, node ast.Node) {
	if params == nil {
		return
	}
	each := func(list []*ast.Param) {
		for _, p := range list {
			b.define(DefParameter, p.Name.Name, p.Name.Name, p, p.Name, p.Default, p.Annotation)
		}
	}
	each(params.PosOnly)
	each(params.Args)
	if params.VarArg != nil {
		each([]*ast.Param{params.VarArg})
	}
	each(params.KwOnly)
	if params.KwArg != nil {
		each([]*ast.Param{params.KwArg})
	}
}
