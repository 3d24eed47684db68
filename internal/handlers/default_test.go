package handlers_test

import (
	"encoding/base64"
	"testing"

	"github.com/danmuck/testcentre/internal/handlers"
	"github.com/danmuck/testcentre/internal/handlers/memtree"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/danmuck/testcentre/internal/testutil/testlog"
	"github.com/google/uuid"
)

type fixture struct {
	tree    *memtree.Tree
	window  *memtree.Window
	button  *memtree.Button
	label   *memtree.Label
	editor  *memtree.TextEditor
	slider  *memtree.Slider
	clicks  []int
	invoked []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{tree: memtree.New()}
	f.window = memtree.NewWindow("main", 4, 3)
	f.button = memtree.NewButton("increment", "Increment")
	f.button.OnClick = func(n int) { f.clicks = append(f.clicks, n) }
	f.label = memtree.NewLabel("count", "0")
	f.editor = memtree.NewTextEditor("name", "")
	f.slider = memtree.NewSlider("volume", 0, 10, 5)

	panel := memtree.NewPanel("toolbar")
	panel.Add(memtree.NewButton("tool", "A"), memtree.NewButton("tool", "B"), memtree.NewButton("tool", "C"))

	f.window.Add(f.button, f.label, f.editor, f.slider, panel)
	f.tree.AddWindow(f.window)
	f.tree.AddMenuItem("Reset", func() { f.invoked = append(f.invoked, "Reset") })
	return f
}

func command(t *testing.T, commandType string, args map[string]any) envelope.Command {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	cmd, err := envelope.NewCommand(commandType, args)
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	return cmd
}

func process(t *testing.T, h *handlers.Default, commandType string, args map[string]any) envelope.Response {
	t.Helper()
	resp, ok := h.Process(command(t, commandType, args))
	if !ok {
		t.Fatalf("%s not claimed", commandType)
	}
	return resp
}

func expectFail(t *testing.T, resp envelope.Response, msg string) {
	t.Helper()
	if resp.Success || resp.Error != msg {
		t.Fatalf("expected failure %q, got success=%v error=%q", msg, resp.Success, resp.Error)
	}
}

func expectOK(t *testing.T, resp envelope.Response) {
	t.Helper()
	if !resp.Success {
		t.Fatalf("expected success, got error=%q", resp.Error)
	}
}

func param(t *testing.T, resp envelope.Response, name string) any {
	t.Helper()
	v, ok := resp.Data.Get(name)
	if !ok {
		t.Fatalf("missing parameter %q in %s", name, resp.Describe())
	}
	return v
}

func TestDefaultDeclinesUnknownTypes(t *testing.T) {
	testlog.Start(t)
	h := handlers.NewDefault(newFixture(t).tree)
	if _, ok := h.Process(command(t, "launch-rockets", nil)); ok {
		t.Fatalf("unknown type should be declined")
	}
	if got := len(h.Types()); got != 13 {
		t.Fatalf("expected 13 routed types, got %d: %v", got, h.Types())
	}
}

func TestClickComponent(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	expectFail(t, process(t, h, handlers.ClickComponent, nil), "Missing component-id")
	expectFail(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "nope"}), "Component not found: nope")
	expectFail(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "count"}), "Component not clickable: count")

	expectOK(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "increment"}))
	expectOK(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "increment", "num-clicks": 2}))
	expectOK(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "increment", "num-clicks": "9"}))
	if len(f.clicks) != 3 || f.clicks[0] != 1 || f.clicks[1] != 2 || f.clicks[2] != 2 {
		t.Fatalf("unexpected click counts: %v", f.clicks)
	}

	expectOK(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "name"}))
	focused, ok := f.tree.Focused()
	if !ok || focused.ID() != "name" {
		t.Fatalf("clicking a text editor should focus it")
	}
}

func TestClickDisabledButtonFails(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.button.SetEnabled(false)
	resp := process(t, handlers.NewDefault(f.tree), handlers.ClickComponent, map[string]any{"component-id": "increment"})
	expectFail(t, resp, memtree.ErrDisabled.Error())
}

func TestClickSkipSelectsNthMatch(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetComponentCount, map[string]any{"component-id": "tool"})
	expectOK(t, resp)
	if got := param(t, resp, "count"); got != 3 {
		t.Fatalf("expected 3 tools, got %v", got)
	}

	w, ok := f.tree.Find("tool", 2)
	if !ok || w.(handlers.Texter).Text() != "C" {
		t.Fatalf("skip=2 should select the third tool")
	}
	if _, ok := f.tree.Find("tool", 3); ok {
		t.Fatalf("skip past the last match should not find anything")
	}
	if w, ok := f.tree.Find("toolbar/tool", 0); !ok || w.(handlers.Texter).Text() != "A" {
		t.Fatalf("path lookup should descend from toolbar")
	}
	if _, ok := f.tree.Find("tool*", 0); !ok {
		t.Fatalf("wildcard lookup should match")
	}
}

func TestKeyPress(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	expectFail(t, process(t, h, handlers.KeyPressCommand, nil), "Missing key-code argument")
	expectFail(t, process(t, h, handlers.KeyPressCommand, map[string]any{"key-code": "a", "focus-component": "ghost"}),
		"Component not found for key press: ghost")
	expectFail(t, process(t, h, handlers.KeyPressCommand, map[string]any{"key-code": "a", "window-id": "other"}),
		"Couldn't find window")

	for _, k := range []string{"h", "i", "space", "x", "backspace"} {
		expectOK(t, process(t, h, handlers.KeyPressCommand, map[string]any{"key-code": k, "focus-component": "name"}))
	}
	if f.editor.Text() != "hi " {
		t.Fatalf("unexpected editor text %q", f.editor.Text())
	}

	expectOK(t, process(t, h, handlers.KeyPressCommand, map[string]any{"key-code": "escape", "modifiers": "shift+command"}))
	if len(f.window.Keys) != 1 {
		t.Fatalf("window should record one key, got %v", f.window.Keys)
	}
	k := f.window.Keys[0]
	if k.Key != "escape" || !k.Named || !k.Modifiers.Has(handlers.ModShift) || !k.Modifiers.Has(handlers.ModCommand) || k.Modifiers.Has(handlers.ModAlt) {
		t.Fatalf("unexpected key press %+v", k)
	}
}

func TestParseKeyPress(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		code, mods string
		want       string
		named      bool
	}{
		{"F12", "", "F12", true},
		{"num-pad-3", "alt", "alt+num-pad-3", true},
		{"abc", "control shift", "shift+control+a", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		k := handlers.ParseKeyPress(tc.code, tc.mods)
		if k.String() != tc.want || k.Named != tc.named {
			t.Fatalf("ParseKeyPress(%q,%q) = %q named=%v, want %q named=%v", tc.code, tc.mods, k.String(), k.Named, tc.want, tc.named)
		}
	}
}

func TestVisibilityAndEnablement(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetComponentVisibility, map[string]any{"component-id": "count"})
	expectOK(t, resp)
	if param(t, resp, "exists") != true || param(t, resp, "showing") != true {
		t.Fatalf("label should exist and show: %s", resp.Describe())
	}

	f.label.SetVisible(false)
	resp = process(t, h, handlers.GetComponentVisibility, map[string]any{"component-id": "count"})
	if param(t, resp, "exists") != false || param(t, resp, "showing") != false {
		t.Fatalf("hidden label should not be found: %s", resp.Describe())
	}
	if keys := resp.Data.Keys(); keys[0] != "exists" || keys[1] != "showing" {
		t.Fatalf("unexpected parameter order %v", keys)
	}

	f.slider.SetEnabled(false)
	resp = process(t, h, handlers.GetComponentEnablement, map[string]any{"component-id": "volume"})
	if param(t, resp, "exists") != true || param(t, resp, "enabled") != false {
		t.Fatalf("slider should exist disabled: %s", resp.Describe())
	}
	expectFail(t, process(t, h, handlers.GetComponentEnablement, nil), "Missing component-id")
	expectFail(t, process(t, h, handlers.GetComponentVisibility, nil), "Missing component-id")
}

func TestGetComponentText(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetComponentText, map[string]any{"component-id": "increment"})
	if param(t, resp, "text") != "Increment" {
		t.Fatalf("unexpected text: %s", resp.Describe())
	}
	expectFail(t, process(t, h, handlers.GetComponentText, map[string]any{"component-id": "volume"}), "Component doesn't have text")
	expectFail(t, process(t, h, handlers.GetComponentText, map[string]any{"component-id": "missing"}), "No matching component")
}

func TestFocusCommands(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetFocusComponent, nil)
	if param(t, resp, "component-id") != "" {
		t.Fatalf("nothing should be focused yet")
	}
	expectOK(t, process(t, h, handlers.GrabFocus, map[string]any{"window-id": "main"}))
	resp = process(t, h, handlers.GetFocusComponent, nil)
	if param(t, resp, "component-id") != "main" {
		t.Fatalf("window should hold focus: %s", resp.Describe())
	}
	expectOK(t, process(t, h, handlers.GrabFocus, map[string]any{"window-id": "absent"}))
}

func TestScreenshot(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetScreenshot, nil)
	expectOK(t, resp)
	raw, err := base64.StdEncoding.DecodeString(param(t, resp, "image").(string))
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	if len(raw) < 8 || string(raw[1:4]) != "PNG" {
		t.Fatalf("expected PNG bytes")
	}

	expectFail(t, process(t, h, handlers.GetScreenshot, map[string]any{"component-id": "count"}), "Failed to snapshot component")
	expectFail(t, process(t, h, handlers.GetScreenshot, map[string]any{"component-id": "gone"}), "Component not found: gone")
}

func TestCountWithRoot(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	resp := process(t, h, handlers.GetComponentCount, map[string]any{"component-id": "tool", "root-id": "toolbar"})
	if param(t, resp, "count") != 3 {
		t.Fatalf("unexpected count: %s", resp.Describe())
	}
	expectFail(t, process(t, h, handlers.GetComponentCount, map[string]any{"component-id": "tool", "root-id": "nowhere"}),
		"Couldn't find specified root component")
	expectFail(t, process(t, h, handlers.GetComponentCount, nil), "Missing component-id")
}

func TestInvokeMenu(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	expectFail(t, process(t, h, handlers.InvokeMenu, nil), "Missing menu title")
	expectFail(t, process(t, h, handlers.InvokeMenu, map[string]any{"title": "Explode"}), "Not handled")
	expectOK(t, process(t, h, handlers.InvokeMenu, map[string]any{"title": "Reset"}))
	if len(f.invoked) != 1 {
		t.Fatalf("menu item should run once, got %v", f.invoked)
	}
}

func TestSliderCommands(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	h := handlers.NewDefault(f.tree)

	expectOK(t, process(t, h, handlers.SetSliderValue, map[string]any{"component-id": "volume", "value": 7.5}))
	resp := process(t, h, handlers.GetSliderValue, map[string]any{"component-id": "volume"})
	if param(t, resp, "value") != 7.5 {
		t.Fatalf("unexpected slider value: %s", resp.Describe())
	}

	expectOK(t, process(t, h, handlers.SetSliderValue, map[string]any{"component-id": "volume", "value": 99}))
	if f.slider.Value() != 10 {
		t.Fatalf("slider should clamp to max, got %v", f.slider.Value())
	}
	expectFail(t, process(t, h, handlers.SetSliderValue, map[string]any{"component-id": "volume"}), "Missing value")
	expectFail(t, process(t, h, handlers.GetSliderValue, map[string]any{"component-id": "count"}), "Component is not a slider: count")
}

func TestQuitAlwaysSucceeds(t *testing.T) {
	testlog.Start(t)
	h := handlers.NewDefault(nil)
	expectOK(t, process(t, h, handlers.Quit, nil))
	expectFail(t, process(t, h, handlers.ClickComponent, map[string]any{"component-id": "x"}), "Invalid application")
	if _, ok := h.Process(envelope.Command{Type: "other", UUID: uuid.New()}); ok {
		t.Fatalf("unknown type should be declined without a tree")
	}
}
