// Package scene is a handle-based scene graph built on pkg/pool. Nodes refer
// to their parent and children by handle, so the graph can be persisted as a
// pool snapshot and reloaded with every link intact.
package scene

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/pool"
	"github.com/ajitpratap0/genpool/pkg/snapshot"
)

// Tag is an optional label facet of a node.
type Tag string

// Node is one scene graph element.
type Node struct {
	Name     string              `json:"name"`
	Self     pool.Handle[Node]   `json:"self"`
	Parent   pool.Handle[Node]   `json:"parent"`
	Children []pool.Handle[Node] `json:"children"`
	Tag      Tag                 `json:"tag,omitempty"`

	// Local is relative to the parent. Global is derived by
	// UpdateTransforms.
	Local  Transform `json:"local"`
	Global Transform `json:"global"`
}

// QueryComponent exposes the local transform and, when set, the tag.
func (n *Node) QueryComponent(target any) bool {
	switch t := target.(type) {
	case **Transform:
		*t = &n.Local
		return true
	case **Tag:
		if n.Tag == "" {
			return false
		}
		*t = &n.Tag
		return true
	}
	return false
}

// Graph owns a pool of nodes rooted at a single node.
type Graph struct {
	nodes  *pool.Pool[Node]
	root   pool.Handle[Node]
	logger *zap.Logger
}

// New creates a graph holding only its root.
func New(logger *zap.Logger, opts ...pool.Option) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		nodes:  pool.New[Node](append([]pool.Option{pool.WithName("scene")}, opts...)...),
		logger: logger,
	}
	g.root = g.nodes.SpawnWith(func(self pool.Handle[Node]) Node {
		return Node{Name: "root", Self: self, Local: Identity(), Global: Identity()}
	})
	return g
}

// FromPool wraps a pool restored from a snapshot. The root is the only live
// node without a parent.
func FromPool(logger *zap.Logger, nodes *pool.Pool[Node]) (*Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{nodes: nodes, logger: logger}
	for h, n := range nodes.PairIter() {
		if n.Parent.IsSome() {
			continue
		}
		if g.root.IsSome() {
			return nil, errors.Newf(errors.ErrorTypeData, "scene has two roots: %v and %v", g.root, h)
		}
		g.root = h
	}
	if g.root.IsNone() {
		return nil, errors.New(errors.ErrorTypeData, "scene has no root")
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}

// Root returns the root handle.
func (g *Graph) Root() pool.Handle[Node] { return g.root }

// Nodes exposes the backing pool.
func (g *Graph) Nodes() *pool.Pool[Node] { return g.nodes }

// Len returns the number of live nodes.
func (g *Graph) Len() int { return int(g.nodes.AliveCount()) }

// Node returns a copy of the node at h.
func (g *Graph) Node(h pool.Handle[Node]) (Node, bool) {
	return g.nodes.TryBorrow(h)
}

func dangling(op string, h pool.Handle[Node]) *errors.Error {
	return errors.Newf(errors.ErrorTypeDanglingHandle, "%s: no node at %v", op, h).
		WithDetail("index", h.Index()).
		WithDetail("generation", h.Generation())
}

// AddNode attaches a new node under parent.
func (g *Graph) AddNode(parent pool.Handle[Node], name string, local Transform) (pool.Handle[Node], error) {
	if !g.nodes.IsValidHandle(parent) {
		return pool.Handle[Node]{}, dangling("add_node", parent)
	}
	h := g.spawnChild(parent, name, local)
	p := g.nodes.BorrowMut(parent)
	p.Children = append(p.Children, h)
	return h, nil
}

func (g *Graph) spawnChild(parent pool.Handle[Node], name string, local Transform) pool.Handle[Node] {
	return g.nodes.SpawnWith(func(self pool.Handle[Node]) Node {
		return Node{Name: name, Self: self, Parent: parent, Local: local, Global: local}
	})
}

// AddChildren attaches one node per name under parent. The parent is taken
// out of the pool while the children are spawned, so its record cannot be
// handed to one of them.
func (g *Graph) AddChildren(parent pool.Handle[Node], names ...string) ([]pool.Handle[Node], error) {
	ticket, p, ok := g.nodes.TryTakeReserve(parent)
	if !ok {
		return nil, dangling("add_children", parent)
	}
	defer func() { g.nodes.PutBack(ticket, p) }()

	handles := make([]pool.Handle[Node], 0, len(names))
	for _, name := range names {
		h := g.spawnChild(parent, name, Identity())
		handles = append(handles, h)
		p.Children = append(p.Children, h)
	}
	return handles, nil
}

// Remove frees h and its whole subtree and returns the number of nodes
// removed. The root cannot be removed.
func (g *Graph) Remove(h pool.Handle[Node]) (int, error) {
	n, ok := g.nodes.TryBorrow(h)
	if !ok {
		return 0, dangling("remove", h)
	}
	if h == g.root {
		return 0, errors.New(errors.ErrorTypeValidation, "cannot remove the scene root")
	}

	nodes, err := g.subtree(h)
	if err != nil {
		return 0, err
	}

	ctx := g.nodes.BeginMultiBorrow()
	for _, cur := range nodes {
		if _, err := ctx.Free(cur); err != nil {
			ctx.End()
			return 0, errors.Wrap(err, errors.ErrorTypeInternal, "scene graph is inconsistent")
		}
	}
	ctx.End()

	parent := g.nodes.BorrowMut(n.Parent)
	parent.Children = without(parent.Children, h)
	removed := len(nodes)
	g.logger.Debug("removed subtree", zap.Stringer("node", h), zap.Int("nodes", removed))
	return removed, nil
}

// subtree lists h and its descendants. A dangling or repeated child link is
// reported as a data error before anything is modified.
func (g *Graph) subtree(h pool.Handle[Node]) ([]pool.Handle[Node], error) {
	seen := make(map[pool.Handle[Node]]struct{})
	var out []pool.Handle[Node]
	stack := []pool.Handle[Node]{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[cur]; dup {
			return nil, errors.New(errors.ErrorTypeData, "scene graph is inconsistent: node linked twice").
				WithDetail("node", cur.String())
		}
		n, ok := g.nodes.TryBorrow(cur)
		if !ok {
			return nil, errors.Wrap(dangling("remove", cur), errors.ErrorTypeData, "scene graph is inconsistent")
		}
		seen[cur] = struct{}{}
		out = append(out, cur)
		stack = append(stack, n.Children...)
	}
	return out, nil
}

// Reparent moves h under newParent. It refuses moves that would create a
// cycle.
func (g *Graph) Reparent(h, newParent pool.Handle[Node]) error {
	n, ok := g.nodes.TryBorrow(h)
	if !ok {
		return dangling("reparent", h)
	}
	if !g.nodes.IsValidHandle(newParent) {
		return dangling("reparent", newParent)
	}
	if h == g.root {
		return errors.New(errors.ErrorTypeValidation, "cannot reparent the scene root")
	}
	for cur := newParent; cur.IsSome(); cur = g.nodes.Borrow(cur).Parent {
		if cur == h {
			return errors.Newf(errors.ErrorTypeValidation, "cannot move %v under its own descendant %v", h, newParent)
		}
	}
	if n.Parent == newParent {
		return nil
	}

	node, oldParent, target := g.nodes.BorrowThreeMut(h, n.Parent, newParent)
	oldParent.Children = without(oldParent.Children, h)
	target.Children = append(target.Children, h)
	node.Parent = newParent
	return nil
}

func without(hs []pool.Handle[Node], h pool.Handle[Node]) []pool.Handle[Node] {
	for i, c := range hs {
		if c == h {
			return append(hs[:i:i], hs[i+1:]...)
		}
	}
	return hs
}

// UpdateTransforms recomputes every Global transform from the root down and
// returns the number of nodes visited. Each parent stays borrowed while its
// children are updated.
func (g *Graph) UpdateTransforms() int {
	ctx := g.nodes.BeginMultiBorrow()
	defer ctx.End()
	return propagate(ctx, g.root, nil)
}

func propagate(ctx *pool.MultiBorrowContext[Node], h pool.Handle[Node], parent *pool.Ref[Node]) int {
	node := ctx.GetMut(h)
	n := node.Get()
	if parent != nil {
		n.Global = parent.Ptr().Global.Compose(n.Local)
	} else {
		n.Global = n.Local
	}
	children := n.Children
	node.Release()

	self := ctx.Get(h)
	defer self.Release()
	visited := 1
	for _, c := range children {
		visited += propagate(ctx, c, self)
	}
	return visited
}

// SetTag labels the node at h. An empty tag removes the label.
func (g *Graph) SetTag(h pool.Handle[Node], tag Tag) error {
	n := g.nodes.TryBorrowMut(h)
	if n == nil {
		return dangling("set_tag", h)
	}
	n.Tag = tag
	return nil
}

// Translate moves the node at h by d in its parent's space.
func (g *Graph) Translate(h pool.Handle[Node], d Vec2) error {
	t := pool.TryGetComponentOfTypeMut[Transform](g.nodes, h)
	if t == nil {
		return dangling("translate", h)
	}
	t.Position = t.Position.Add(d)
	return nil
}

// Tagged returns the handles of every node carrying tag, in index order.
func (g *Graph) Tagged(tag Tag) []pool.Handle[Node] {
	var out []pool.Handle[Node]
	for h, n := range g.nodes.PairIterMut() {
		if t := pool.ComponentOf[Tag](n); t != nil && *t == tag {
			out = append(out, h)
		}
	}
	return out
}

// TranslateTagged moves every node in hs that carries tag by d and returns
// how many moved. Handles that are stale or untagged are skipped.
func (g *Graph) TranslateTagged(hs []pool.Handle[Node], tag Tag, d Vec2) int {
	ctx := g.nodes.BeginMultiBorrow()
	defer ctx.End()

	moved := 0
	for _, h := range hs {
		t, err := pool.TryGetComponent[Tag](ctx, h)
		if err != nil {
			continue
		}
		match := t.Get() == tag
		t.Release()
		if !match {
			continue
		}
		tr, err := pool.TryGetComponentMut[Transform](ctx, h)
		if err != nil {
			continue
		}
		tr.Get().Position = tr.Get().Position.Add(d)
		tr.Release()
		moved++
	}
	return moved
}

// Find returns the first node named name in index order.
func (g *Graph) Find(name string) (pool.Handle[Node], bool) {
	for h, n := range g.nodes.PairIter() {
		if n.Name == name {
			return h, true
		}
	}
	return pool.Handle[Node]{}, false
}

// Walk visits nodes depth first from the root. Returning false from fn skips
// the node's children.
func (g *Graph) Walk(fn func(h pool.Handle[Node], n Node, depth int) bool) {
	type frame struct {
		h     pool.Handle[Node]
		depth int
	}
	stack := []frame{{g.root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.nodes.Borrow(f.h)
		if !fn(f.h, n, f.depth) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n.Children[i], f.depth + 1})
		}
	}
}

// Check verifies that every link resolves, every node's Self matches its
// handle and every non-root node is listed by its parent exactly once.
func (g *Graph) Check() error {
	if !g.nodes.IsValidHandle(g.root) {
		return dangling("check", g.root)
	}
	for h, n := range g.nodes.PairIter() {
		if n.Self != h {
			return errors.Newf(errors.ErrorTypeData, "node %v records itself as %v", h, n.Self)
		}
		for _, c := range n.Children {
			child, ok := g.nodes.TryBorrow(c)
			if !ok {
				return errors.Newf(errors.ErrorTypeData, "node %v lists dangling child %v", h, c)
			}
			if child.Parent != h {
				return errors.Newf(errors.ErrorTypeData, "child %v of %v names %v as parent", c, h, child.Parent)
			}
		}
		if h == g.root {
			continue
		}
		parent, ok := g.nodes.TryBorrow(n.Parent)
		if !ok {
			return errors.Newf(errors.ErrorTypeData, "node %v has dangling parent %v", h, n.Parent)
		}
		count := 0
		for _, c := range parent.Children {
			if c == h {
				count++
			}
		}
		if count != 1 {
			return errors.Newf(errors.ErrorTypeData, "node %v is listed %d times by its parent", h, count)
		}
	}
	return nil
}

// BuildRandom grows the graph by count nodes attached to random existing
// nodes, with random local transforms, and tags every tagEvery-th node
// "marked" (0 disables tagging).
func (g *Graph) BuildRandom(rng *rand.Rand, count, tagEvery int) []pool.Handle[Node] {
	handles := []pool.Handle[Node]{g.root}
	for i := 0; i < count; i++ {
		parent := handles[rng.IntN(len(handles))]
		local := Transform{
			Position: Vec2{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10},
			Rotation: rng.Float64() * 0.5,
			Scale:    0.5 + rng.Float64(),
		}
		h, err := g.AddNode(parent, fmt.Sprintf("node-%d", i), local)
		if err != nil {
			panic(err)
		}
		if tagEvery > 0 && i%tagEvery == 0 {
			g.nodes.BorrowMut(h).Tag = "marked"
		}
		handles = append(handles, h)
	}
	return handles[1:]
}

// Save writes the graph's pool to a snapshot file.
func (g *Graph) Save(ctx context.Context, path string, opts snapshot.Options) (snapshot.Info, error) {
	if opts.Logger == nil {
		opts.Logger = g.logger
	}
	return snapshot.SavePool(ctx, path, g.nodes, opts)
}

// Load reads a graph from a snapshot file.
func Load(ctx context.Context, logger *zap.Logger, path string, opts snapshot.Options, poolOpts ...pool.Option) (*Graph, snapshot.Info, error) {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	nodes, info, err := snapshot.LoadPool[Node](ctx, path, opts, append([]pool.Option{pool.WithName("scene")}, poolOpts...)...)
	if err != nil {
		return nil, info, err
	}
	g, err := FromPool(logger, nodes)
	if err != nil {
		return nil, info, err
	}
	return g, info, nil
}
