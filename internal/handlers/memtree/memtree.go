// Package memtree is an in-memory widget tree for the default handler. It is
// not safe for concurrent use; mutate and query it from the run loop.
package memtree

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path"
	"strings"

	"github.com/danmuck/testcentre/internal/handlers"
)

// Element is any widget that can sit in the tree.
type Element interface {
	handlers.Widget
	node() *Node
}

// Node carries the state every widget kind shares. It is embedded by the
// concrete kinds and doubles as a plain container.
type Node struct {
	id       string
	hidden   bool
	disabled bool
	width    int
	height   int

	self     Element
	parent   *Node
	children []Element

	// tree is set on top-level nodes only.
	tree *Tree
}

func newNode(id string) *Node {
	return &Node{id: id}
}

// NewPanel returns a plain container.
func NewPanel(id string) *Node {
	n := newNode(id)
	n.self = n
	return n
}

func (n *Node) node() *Node { return n }

func (n *Node) ID() string { return n.id }

// Showing reports whether the node and all its ancestors are visible and the
// top ancestor is attached to a tree.
func (n *Node) Showing() bool {
	top := n
	for p := n; p != nil; p = p.parent {
		if p.hidden {
			return false
		}
		top = p
	}
	return top.tree != nil
}

// Enabled is false when the node or any ancestor is disabled.
func (n *Node) Enabled() bool {
	for p := n; p != nil; p = p.parent {
		if p.disabled {
			return false
		}
	}
	return true
}

func (n *Node) SetVisible(v bool) { n.hidden = !v }

func (n *Node) SetEnabled(v bool) { n.disabled = !v }

// SetSize sets the snapshot bounds. A zero size cannot be snapshotted.
func (n *Node) SetSize(width, height int) {
	n.width, n.height = width, height
}

// Add appends children, detaching them from any previous parent.
func (n *Node) Add(children ...Element) {
	for _, c := range children {
		if c == nil {
			continue
		}
		cn := c.node()
		if cn.parent != nil {
			cn.parent.remove(cn)
		}
		cn.parent = n
		n.children = append(n.children, c)
	}
}

func (n *Node) Remove(child Element) {
	if child == nil {
		return
	}
	n.remove(child.node())
}

func (n *Node) remove(cn *Node) {
	for i, c := range n.children {
		if c.node() == cn {
			n.children = append(n.children[:i], n.children[i+1:]...)
			cn.parent = nil
			return
		}
	}
}

func (n *Node) Children() []Element {
	return append([]Element(nil), n.children...)
}

// Snapshot renders the node bounds as a PNG. Disabled nodes render grey.
func (n *Node) Snapshot() ([]byte, error) {
	if n.width <= 0 || n.height <= 0 {
		return nil, nil
	}
	fill := color.RGBA{R: 0x2d, G: 0x7f, B: 0xd3, A: 0xff}
	if !n.Enabled() {
		fill = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
	img := image.NewRGBA(image.Rect(0, 0, n.width, n.height))
	for y := 0; y < n.height; y++ {
		for x := 0; x < n.width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) owner() *Tree {
	top := n
	for top.parent != nil {
		top = top.parent
	}
	return top.tree
}

func (n *Node) takeFocus() {
	if t := n.owner(); t != nil {
		t.focused = n.self
	}
}

// matches reports a wildcard id match on a node that is showing.
func matches(pattern string) func(Element) bool {
	return func(e Element) bool {
		return wildcard(pattern, e.ID()) && e.Showing()
	}
}

func wildcard(pattern, id string) bool {
	ok, err := path.Match(pattern, id)
	if err != nil {
		return pattern == id
	}
	return ok
}

// matchChild finds the skip-th match among direct children, then descends
// depth first with the remaining skip count.
func matchChild(n *Node, pred func(Element) bool, skip *int) Element {
	var direct []Element
	for _, c := range n.children {
		if pred(c) {
			direct = append(direct, c)
		}
	}
	if *skip < len(direct) {
		return direct[*skip]
	}
	*skip -= len(direct)

	for _, c := range n.children {
		if found := matchChild(c.node(), pred, skip); found != nil {
			return found
		}
	}
	return nil
}

func findChild(n *Node, pred func(Element) bool, skip int) Element {
	return matchChild(n, pred, &skip)
}

func countChildren(n *Node, pred func(Element) bool) int {
	total := 0
	for _, c := range n.children {
		if pred(c) {
			total++
		}
		total += countChildren(c.node(), pred)
	}
	return total
}

// Tree is the set of top-level windows plus extra root components, searched
// in that order.
type Tree struct {
	windows []*Window
	roots   []Element
	focused Element
	menu    map[string]func()
}

var _ handlers.WidgetTree = (*Tree)(nil)

func New() *Tree {
	return &Tree{menu: make(map[string]func())}
}

func (t *Tree) AddWindow(w *Window) {
	if w == nil {
		return
	}
	w.tree = t
	t.windows = append(t.windows, w)
}

func (t *Tree) RemoveWindow(w *Window) {
	for i, existing := range t.windows {
		if existing == w {
			t.windows = append(t.windows[:i], t.windows[i+1:]...)
			w.tree = nil
			t.dropFocusUnder(w.Node)
			return
		}
	}
}

// AddRoot registers a component tree that lives outside any window.
func (t *Tree) AddRoot(e Element) {
	if e == nil {
		return
	}
	e.node().tree = t
	t.roots = append(t.roots, e)
}

func (t *Tree) RemoveRoot(e Element) {
	for i, existing := range t.roots {
		if existing.node() == e.node() {
			t.roots = append(t.roots[:i], t.roots[i+1:]...)
			e.node().tree = nil
			t.dropFocusUnder(e.node())
			return
		}
	}
}

// AddMenuItem binds a menu title to fn for invoke-menu.
func (t *Tree) AddMenuItem(title string, fn func()) {
	t.menu[title] = fn
}

func (t *Tree) Find(id string, skip int) (handlers.Widget, bool) {
	var segments []string
	for _, s := range strings.Split(id, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return nil, false
	}

	found := t.findTop(matches(segments[0]), max(skip, 0))
	for _, seg := range segments[1:] {
		if found == nil {
			return nil, false
		}
		found = findChild(found.node(), matches(seg), 0)
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func (t *Tree) findTop(pred func(Element) bool, skip int) Element {
	for _, w := range t.windows {
		if found := findChild(w.Node, pred, skip); found != nil {
			return found
		}
	}
	for _, r := range t.roots {
		if found := findChild(r.node(), pred, skip); found != nil {
			return found
		}
	}
	return nil
}

func (t *Tree) FindWindow(id string) (handlers.Widget, bool) {
	w := t.window(id)
	if w == nil {
		return nil, false
	}
	return w, true
}

func (t *Tree) window(id string) *Window {
	if len(t.windows) == 0 {
		return nil
	}
	if id == "" {
		return t.windows[0]
	}
	for _, w := range t.windows {
		if wildcard(id, w.ID()) {
			return w
		}
	}
	return nil
}

func (t *Tree) Focused() (handlers.Widget, bool) {
	if t.focused == nil {
		return nil, false
	}
	return t.focused, true
}

func (t *Tree) Count(rootID, windowID, id string) (int, error) {
	var root *Node
	if w := t.window(windowID); w != nil {
		root = w.Node
	}
	if rootID != "" {
		found, ok := t.Find(rootID, 0)
		if !ok {
			return 0, handlers.ErrRootNotFound
		}
		root = found.(Element).node()
	}
	if root == nil {
		return 0, handlers.ErrRootNotFound
	}
	return countChildren(root, matches(id)), nil
}

func (t *Tree) InvokeMenu(title string) bool {
	fn, ok := t.menu[title]
	if !ok || fn == nil {
		return false
	}
	fn()
	return true
}

func (t *Tree) dropFocusUnder(n *Node) {
	if t.focused == nil {
		return
	}
	for p := t.focused.node(); p != nil; p = p.parent {
		if p == n {
			t.focused = nil
			return
		}
	}
}
