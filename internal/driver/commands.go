package driver

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/danmuck/testcentre/internal/handlers"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

// Args is the argument object of one command.
type Args map[string]any

func (c *Conn) Quit(ctx context.Context) error {
	_, err := c.Send(ctx, handlers.Quit, Args{})
	return err
}

func (c *Conn) ClickComponent(ctx context.Context, id string, skip int) error {
	_, err := c.Send(ctx, handlers.ClickComponent, Args{handlers.ArgComponentID: id, handlers.ArgSkip: skip})
	return err
}

func (c *Conn) DoubleClickComponent(ctx context.Context, id string) error {
	_, err := c.Send(ctx, handlers.ClickComponent, Args{handlers.ArgComponentID: id, handlers.ArgNumClicks: 2})
	return err
}

func (c *Conn) GrabFocus(ctx context.Context, windowID string) error {
	_, err := c.Send(ctx, handlers.GrabFocus, Args{handlers.ArgWindowID: windowID})
	return err
}

// KeyPress sends key to focusComponent, or to the first window when
// focusComponent is empty.
func (c *Conn) KeyPress(ctx context.Context, key, modifiers, focusComponent string) error {
	_, err := c.Send(ctx, handlers.KeyPressCommand, Args{
		handlers.ArgKeyCode:        key,
		handlers.ArgModifiers:      modifiers,
		handlers.ArgFocusComponent: focusComponent,
	})
	return err
}

func (c *Conn) SetSliderValue(ctx context.Context, id string, value float64) error {
	_, err := c.Send(ctx, handlers.SetSliderValue, Args{handlers.ArgComponentID: id, handlers.ArgValue: value})
	return err
}

func (c *Conn) GetSliderValue(ctx context.Context, id string) (float64, error) {
	resp, err := c.Send(ctx, handlers.GetSliderValue, Args{handlers.ArgComponentID: id})
	if err != nil {
		return 0, err
	}
	return number(resp, "value")
}

func (c *Conn) InvokeMenu(ctx context.Context, title string) error {
	_, err := c.Send(ctx, handlers.InvokeMenu, Args{handlers.ArgTitle: title})
	return err
}

// ComponentVisible reports the "showing" flag.
func (c *Conn) ComponentVisible(ctx context.Context, id string) (bool, error) {
	resp, err := c.Send(ctx, handlers.GetComponentVisibility, Args{handlers.ArgComponentID: id})
	if err != nil {
		return false, err
	}
	return param[bool](resp, "showing")
}

func (c *Conn) ComponentEnabled(ctx context.Context, id string) (bool, error) {
	resp, err := c.Send(ctx, handlers.GetComponentEnablement, Args{handlers.ArgComponentID: id})
	if err != nil {
		return false, err
	}
	return param[bool](resp, "enabled")
}

func (c *Conn) ComponentText(ctx context.Context, id string) (string, error) {
	resp, err := c.Send(ctx, handlers.GetComponentText, Args{handlers.ArgComponentID: id})
	if err != nil {
		return "", err
	}
	return param[string](resp, "text")
}

func (c *Conn) FocusedComponent(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, handlers.GetFocusComponent, Args{})
	if err != nil {
		return "", err
	}
	return param[string](resp, handlers.ArgComponentID)
}

func (c *Conn) CountComponents(ctx context.Context, id, rootID string) (int, error) {
	resp, err := c.Send(ctx, handlers.GetComponentCount, Args{handlers.ArgComponentID: id, handlers.ArgRootID: rootID})
	if err != nil {
		return 0, err
	}
	n, err := number(resp, "count")
	return int(n), err
}

// Screenshot returns the decoded image bytes of a component, or of the first
// window when id is empty.
func (c *Conn) Screenshot(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.Send(ctx, handlers.GetScreenshot, Args{handlers.ArgComponentID: id})
	if err != nil {
		return nil, err
	}
	encoded, err := param[string](resp, "image")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// SaveScreenshot writes a screenshot of id into dir and returns the path.
func (c *Conn) SaveScreenshot(ctx context.Context, id, dir string) (string, error) {
	image, err := c.Screenshot(ctx, id)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.png", time.Now().UTC().Format("20060102T150405.000"), screenshotName(id))
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, image, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// WaitForVisibility polls until the component's visibility equals want.
func (c *Conn) WaitForVisibility(ctx context.Context, id string, want bool) error {
	err := WaitForResult(ctx, DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return c.ComponentVisible(ctx, id)
	}, want)
	if err != nil {
		return fmt.Errorf("component %q didn't become %s: %w", id, pick(want, "visible", "hidden"), err)
	}
	return nil
}

func (c *Conn) WaitForEnablement(ctx context.Context, id string, want bool) error {
	err := WaitForResult(ctx, DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return c.ComponentEnabled(ctx, id)
	}, want)
	if err != nil {
		return fmt.Errorf("component %q didn't become %s: %w", id, pick(want, "enabled", "disabled"), err)
	}
	return nil
}

// TabToComponent presses tab until the focused component matches pattern,
// giving up after maxPresses.
func (c *Conn) TabToComponent(ctx context.Context, pattern string, maxPresses int) (bool, error) {
	for i := 0; i < maxPresses; i++ {
		if err := c.KeyPress(ctx, "tab", "", ""); err != nil {
			return false, err
		}
		focused, err := c.FocusedComponent(ctx)
		if err != nil {
			return false, err
		}
		if ok, _ := path.Match(pattern, focused); ok && focused != "" {
			return true, nil
		}
	}
	return false, nil
}

func param[T any](resp envelope.Response, name string) (T, error) {
	var zero T
	raw, ok := resp.Data.Get(name)
	if !ok {
		return zero, fmt.Errorf("driver: response missing %q", name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("driver: response %q has type %T", name, raw)
	}
	return v, nil
}

func number(resp envelope.Response, name string) (float64, error) {
	if _, ok := resp.Data.Get(name); !ok {
		return 0, fmt.Errorf("driver: response missing %q", name)
	}
	v, ok := resp.Data.Float(name)
	if !ok {
		return 0, fmt.Errorf("driver: response %q is not a number", name)
	}
	return v, nil
}

func screenshotName(id string) string {
	if id == "" {
		return "window"
	}
	out := []rune(id)
	for i, r := range out {
		if r == '/' || r == '*' || r == '?' {
			out[i] = '_'
		}
	}
	return string(out)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
