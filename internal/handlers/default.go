package handlers

import (
	"encoding/base64"
	"errors"

	"github.com/danmuck/testcentre/internal/dispatch"
	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

// Command types answered by Default.
const (
	ClickComponent         = "click-component"
	KeyPressCommand        = "key-press"
	GetScreenshot          = "get-screenshot"
	GetComponentVisibility = "get-component-visibility"
	GetComponentEnablement = "get-component-enablement"
	GetComponentText       = "get-component-text"
	GetFocusComponent      = "get-focus-component"
	GetComponentCount      = "get-component-count"
	GrabFocus              = "grab-focus"
	InvokeMenu             = "invoke-menu"
	SetSliderValue         = "set-slider-value"
	GetSliderValue         = "get-slider-value"
	Quit                   = protocol.QuitCommand
)

// Argument names.
const (
	ArgComponentID    = "component-id"
	ArgFocusComponent = "focus-component"
	ArgKeyCode        = "key-code"
	ArgModifiers      = "modifiers"
	ArgNumClicks      = "num-clicks"
	ArgRootID         = "root-id"
	ArgSkip           = "skip"
	ArgTitle          = "title"
	ArgWindowID       = "window-id"
	ArgValue          = "value"
)

// Default is the built-in handler. It claims exactly the command types listed
// above and declines everything else.
type Default struct {
	tree   WidgetTree
	router *dispatch.Router
}

func NewDefault(tree WidgetTree) *Default {
	d := &Default{tree: tree}
	d.router = dispatch.NewRouter().
		Handle(ClickComponent, d.clickComponent).
		Handle(KeyPressCommand, d.keyPress).
		Handle(GetScreenshot, d.getScreenshot).
		Handle(GetComponentVisibility, d.getComponentVisibility).
		Handle(GetComponentEnablement, d.getComponentEnablement).
		Handle(GetComponentText, d.getComponentText).
		Handle(GetFocusComponent, d.getFocusComponent).
		Handle(GetComponentCount, d.countComponents).
		Handle(GrabFocus, d.grabFocus).
		Handle(InvokeMenu, d.invokeMenu).
		Handle(SetSliderValue, d.setSliderValue).
		Handle(GetSliderValue, d.getSliderValue).
		Handle(Quit, func(envelope.Command) envelope.Response { return envelope.OK() })
	return d
}

// Process answers routed types. Without a tree every routed type other than
// quit fails with "Invalid application".
func (d *Default) Process(cmd envelope.Command) (envelope.Response, bool) {
	if d.tree == nil && cmd.Type != Quit && d.router.Has(cmd.Type) {
		return envelope.Fail("Invalid application"), true
	}
	return d.router.Process(cmd)
}

// Types lists the claimed command types.
func (d *Default) Types() []string {
	return d.router.Types()
}

func (d *Default) clickComponent(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return envelope.Fail("Missing component-id")
	}
	w, ok := d.tree.Find(id, skipArg(cmd))
	if !ok {
		return envelope.Fail("Component not found: " + id)
	}

	switch c := w.(type) {
	case Clicker:
		if err := c.Click(clampClicks(envelope.ArgumentAs[int](cmd, ArgNumClicks))); err != nil {
			return envelope.Fail(err.Error())
		}
		return envelope.OK()
	case Focuser:
		c.Focus()
		return envelope.OK()
	default:
		return envelope.Fail("Component not clickable: " + id)
	}
}

func (d *Default) keyPress(cmd envelope.Command) envelope.Response {
	code := cmd.Argument(ArgKeyCode)
	if code == "" {
		return envelope.Fail("Missing key-code argument")
	}
	key := ParseKeyPress(code, cmd.Argument(ArgModifiers))

	if id := cmd.Argument(ArgFocusComponent); id != "" {
		w, ok := d.tree.Find(id, 0)
		if !ok {
			return envelope.Fail("Component not found for key press: " + id)
		}
		return sendKey(w, key, "Component doesn't accept key presses: "+id)
	}

	window, ok := d.tree.FindWindow(cmd.Argument(ArgWindowID))
	if !ok {
		return envelope.Fail("Couldn't find window")
	}
	return sendKey(window, key, "Window doesn't have peer")
}

func sendKey(w Widget, key KeyPress, unsupported string) envelope.Response {
	r, ok := w.(KeyReceiver)
	if !ok {
		return envelope.Fail(unsupported)
	}
	if err := r.KeyPress(key); err != nil {
		return envelope.Fail(err.Error())
	}
	return envelope.OK()
}

func (d *Default) grabFocus(cmd envelope.Command) envelope.Response {
	if w, ok := d.tree.FindWindow(cmd.Argument(ArgWindowID)); ok {
		if f, ok := w.(Focuser); ok {
			f.Focus()
		}
	}
	return envelope.OK()
}

func (d *Default) getScreenshot(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)

	var (
		w  Widget
		ok bool
	)
	if id == "" {
		w, ok = d.tree.FindWindow(cmd.Argument(ArgWindowID))
	} else {
		w, ok = d.tree.Find(id, 0)
	}
	if !ok {
		return envelope.Fail("Component not found: " + id)
	}

	s, ok := w.(Snapshotter)
	if !ok {
		return envelope.Fail("Failed to snapshot component")
	}
	image, err := s.Snapshot()
	if err != nil || len(image) == 0 {
		return envelope.Fail("Failed to snapshot component")
	}
	return envelope.OK().WithParameter("image", base64.StdEncoding.EncodeToString(image))
}

func (d *Default) getComponentVisibility(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return envelope.Fail("Missing component-id")
	}
	exists, showing := false, false
	if w, ok := d.tree.Find(id, 0); ok {
		exists = true
		showing = w.Showing()
	}
	return envelope.OK().WithParameter("exists", exists).WithParameter("showing", showing)
}

func (d *Default) getComponentEnablement(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return envelope.Fail("Missing component-id")
	}
	exists, enabled := false, false
	if w, ok := d.tree.Find(id, 0); ok {
		exists = true
		enabled = w.Enabled()
	}
	return envelope.OK().WithParameter("exists", exists).WithParameter("enabled", enabled)
}

func (d *Default) getComponentText(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return envelope.Fail("Missing component-id")
	}
	w, ok := d.tree.Find(id, 0)
	if !ok {
		return envelope.Fail("No matching component")
	}
	t, ok := w.(Texter)
	if !ok {
		return envelope.Fail("Component doesn't have text")
	}
	return envelope.OK().WithParameter("text", t.Text())
}

func (d *Default) getFocusComponent(envelope.Command) envelope.Response {
	id := ""
	if w, ok := d.tree.Focused(); ok {
		id = w.ID()
	}
	return envelope.OK().WithParameter(ArgComponentID, id)
}

func (d *Default) countComponents(cmd envelope.Command) envelope.Response {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return envelope.Fail("Missing component-id")
	}
	n, err := d.tree.Count(cmd.Argument(ArgRootID), cmd.Argument(ArgWindowID), id)
	if errors.Is(err, ErrRootNotFound) {
		return envelope.Fail("Couldn't find specified root component")
	}
	if err != nil {
		return envelope.Fail(err.Error())
	}
	return envelope.OK().WithParameter("count", n)
}

func (d *Default) invokeMenu(cmd envelope.Command) envelope.Response {
	title := cmd.Argument(ArgTitle)
	if title == "" {
		return envelope.Fail("Missing menu title")
	}
	if !d.tree.InvokeMenu(title) {
		return envelope.Fail("Not handled")
	}
	return envelope.OK()
}

func (d *Default) setSliderValue(cmd envelope.Command) envelope.Response {
	slider, fail := d.slider(cmd)
	if slider == nil {
		return fail
	}
	if !cmd.HasArgument(ArgValue) {
		return envelope.Fail("Missing value")
	}
	if err := slider.SetValue(envelope.ArgumentAs[float64](cmd, ArgValue)); err != nil {
		return envelope.Fail(err.Error())
	}
	return envelope.OK()
}

func (d *Default) getSliderValue(cmd envelope.Command) envelope.Response {
	slider, fail := d.slider(cmd)
	if slider == nil {
		return fail
	}
	return envelope.OK().WithParameter("value", slider.Value())
}

func (d *Default) slider(cmd envelope.Command) (SliderValue, envelope.Response) {
	id := cmd.Argument(ArgComponentID)
	if id == "" {
		return nil, envelope.Fail("Missing component-id")
	}
	w, ok := d.tree.Find(id, skipArg(cmd))
	if !ok {
		return nil, envelope.Fail("Component not found: " + id)
	}
	s, ok := w.(SliderValue)
	if !ok {
		return nil, envelope.Fail("Component is not a slider: " + id)
	}
	return s, envelope.Response{}
}

func skipArg(cmd envelope.Command) int {
	return max(envelope.ArgumentAs[int](cmd, ArgSkip), 0)
}

func clampClicks(n int) int {
	return min(max(n, 1), 2)
}
