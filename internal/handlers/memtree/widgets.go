package memtree

import (
	"errors"
	"math"

	"github.com/danmuck/testcentre/internal/handlers"
)

var ErrDisabled = errors.New("memtree: widget is disabled")

type Window struct {
	*Node
	// Keys records presses delivered to the window itself.
	Keys []handlers.KeyPress
	// OnKey runs after a press is recorded.
	OnKey func(handlers.KeyPress)
}

func NewWindow(id string, width, height int) *Window {
	w := &Window{Node: newNode(id)}
	w.self = w
	w.SetSize(width, height)
	return w
}

func (w *Window) Focus() { w.takeFocus() }

// KeyPress moves focus on tab (backwards with shift). Other keys go to the
// focused descendant when it accepts them, otherwise they are recorded on the
// window.
func (w *Window) KeyPress(k handlers.KeyPress) error {
	if k.Named && k.Key == "tab" {
		w.cycleFocus(k.Modifiers.Has(handlers.ModShift))
		return nil
	}
	if t := w.owner(); t != nil && t.focused != nil && t.focused.node() != w.Node {
		if r, ok := t.focused.(handlers.KeyReceiver); ok && isUnder(t.focused.node(), w.Node) {
			return r.KeyPress(k)
		}
	}
	w.Keys = append(w.Keys, k)
	if w.OnKey != nil {
		w.OnKey(k)
	}
	return nil
}

// cycleFocus moves focus through showing, enabled focusable descendants in
// depth-first order, wrapping at either end.
func (w *Window) cycleFocus(backwards bool) {
	t := w.owner()
	if t == nil {
		return
	}
	var order []Element
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			if _, ok := c.(handlers.Focuser); ok && c.Showing() && c.Enabled() {
				order = append(order, c)
			}
			walk(c.node())
		}
	}
	walk(w.Node)
	if len(order) == 0 {
		return
	}

	current := -1
	for i, e := range order {
		if t.focused != nil && e.node() == t.focused.node() {
			current = i
			break
		}
	}
	var next int
	switch {
	case current < 0 && backwards:
		next = len(order) - 1
	case current < 0:
		next = 0
	case backwards:
		next = (current - 1 + len(order)) % len(order)
	default:
		next = (current + 1) % len(order)
	}
	t.focused = order[next]
}

func isUnder(n, ancestor *Node) bool {
	for p := n; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Button clicks run OnClick with the clamped click count. Toggle buttons flip
// On before OnClick runs.
type Button struct {
	*Node
	text    string
	Toggle  bool
	On      bool
	OnClick func(n int)
}

func NewButton(id, text string) *Button {
	b := &Button{Node: newNode(id), text: text}
	b.self = b
	return b
}

func (b *Button) Text() string { return b.text }

func (b *Button) SetText(text string) { b.text = text }

func (b *Button) Click(n int) error {
	if !b.Enabled() {
		return ErrDisabled
	}
	if b.Toggle {
		b.On = !b.On
	}
	if b.OnClick != nil {
		b.OnClick(n)
	}
	return nil
}

type Label struct {
	*Node
	text string
}

func NewLabel(id, text string) *Label {
	l := &Label{Node: newNode(id), text: text}
	l.self = l
	return l
}

func (l *Label) Text() string { return l.text }

func (l *Label) SetText(text string) { l.text = text }

// TextEditor takes focus when clicked and edits its text from key presses.
type TextEditor struct {
	*Node
	text string
}

func NewTextEditor(id, text string) *TextEditor {
	e := &TextEditor{Node: newNode(id), text: text}
	e.self = e
	return e
}

func (e *TextEditor) Text() string { return e.text }

func (e *TextEditor) SetText(text string) { e.text = text }

func (e *TextEditor) Focus() { e.takeFocus() }

func (e *TextEditor) KeyPress(k handlers.KeyPress) error {
	if !e.Enabled() {
		return ErrDisabled
	}
	switch {
	case k.Named && (k.Key == "backspace" || k.Key == "delete"):
		if r := []rune(e.text); len(r) > 0 {
			e.text = string(r[:len(r)-1])
		}
	case k.Named && k.Key == "space":
		e.text += " "
	case !k.Named:
		e.text += k.Key
	}
	return nil
}

// Slider clamps values into [Min, Max].
type Slider struct {
	*Node
	Min, Max float64
	value    float64
	OnChange func(v float64)
}

func NewSlider(id string, minValue, maxValue, value float64) *Slider {
	s := &Slider{Node: newNode(id), Min: minValue, Max: maxValue}
	s.self = s
	s.value = s.clamp(value)
	return s
}

func (s *Slider) Value() float64 { return s.value }

func (s *Slider) SetValue(v float64) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if math.IsNaN(v) {
		return errors.New("memtree: slider value is NaN")
	}
	next := s.clamp(v)
	if next == s.value {
		return nil
	}
	s.value = next
	if s.OnChange != nil {
		s.OnChange(next)
	}
	return nil
}

func (s *Slider) clamp(v float64) float64 {
	return math.Min(math.Max(v, s.Min), s.Max)
}

var (
	_ handlers.KeyReceiver = (*Window)(nil)
	_ handlers.Focuser     = (*Window)(nil)
	_ handlers.Snapshotter = (*Window)(nil)
	_ handlers.Clicker     = (*Button)(nil)
	_ handlers.Texter      = (*Button)(nil)
	_ handlers.Texter      = (*Label)(nil)
	_ handlers.Focuser     = (*TextEditor)(nil)
	_ handlers.KeyReceiver = (*TextEditor)(nil)
	_ handlers.SliderValue = (*Slider)(nil)
)
