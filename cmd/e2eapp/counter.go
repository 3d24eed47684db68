package main

import (
	"strconv"

	"github.com/danmuck/testcentre/internal/dispatch"
	"github.com/danmuck/testcentre/internal/handlers/memtree"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

const (
	cmdGetCounter   = "get-counter"
	cmdResetCounter = "reset-counter"

	eventCounterChanged = "counter-changed"
)

// counterApp is a one-window application: a count label, increment and
// decrement buttons, a step slider and a name editor.
type counterApp struct {
	tree   *memtree.Tree
	label  *memtree.Label
	step   *memtree.Slider
	count  int
	router *dispatch.Router

	// notify receives every count change.
	notify func(count int)
}

func newCounterApp() *counterApp {
	a := &counterApp{tree: memtree.New()}

	win := memtree.NewWindow("main", 320, 200)
	a.label = memtree.NewLabel("count", "0")
	a.step = memtree.NewSlider("step", 1, 10, 1)

	inc := memtree.NewButton("increment", "+")
	inc.OnClick = func(n int) { a.add(n * int(a.step.Value())) }
	dec := memtree.NewButton("decrement", "-")
	dec.OnClick = func(n int) { a.add(-n * int(a.step.Value())) }

	buttons := memtree.NewPanel("buttons")
	buttons.Add(inc, dec)
	win.Add(a.label, buttons, a.step, memtree.NewTextEditor("name", ""))
	a.tree.AddWindow(win)
	a.tree.AddMenuItem("Reset", a.reset)

	a.router = dispatch.NewRouter().
		Handle(cmdGetCounter, func(envelope.Command) envelope.Response {
			return envelope.OK().WithParameter("value", a.count)
		}).
		Handle(cmdResetCounter, func(envelope.Command) envelope.Response {
			a.reset()
			return envelope.OK()
		})
	return a
}

func (a *counterApp) Process(cmd envelope.Command) (envelope.Response, bool) {
	return a.router.Process(cmd)
}

func (a *counterApp) add(delta int) {
	a.set(a.count + delta)
}

func (a *counterApp) reset() {
	a.set(0)
}

func (a *counterApp) set(n int) {
	if n == a.count {
		return
	}
	a.count = n
	a.label.SetText(strconv.Itoa(n))
	if a.notify != nil {
		a.notify(n)
	}
}
