package main

import (
	"context"
	"fmt"

	"github.com/danmuck/testcentre/internal/driver"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

type step struct {
	name string
	run  func(ctx context.Context, c *driver.Conn) error
}

// counterScenario drives the e2eapp counter window end to end.
func counterScenario(screenshotDir string) []step {
	steps := []step{
		{"window visible", func(ctx context.Context, c *driver.Conn) error {
			return c.WaitForVisibility(ctx, "count", true)
		}},
		{"click increment", func(ctx context.Context, c *driver.Conn) error {
			if err := c.ClickComponent(ctx, "increment", 0); err != nil {
				return err
			}
			return waitForCount(ctx, c, 1)
		}},
		{"double click increment", func(ctx context.Context, c *driver.Conn) error {
			if err := c.DoubleClickComponent(ctx, "increment"); err != nil {
				return err
			}
			return waitForCount(ctx, c, 3)
		}},
		{"step slider", func(ctx context.Context, c *driver.Conn) error {
			if err := c.SetSliderValue(ctx, "step", 5); err != nil {
				return err
			}
			v, err := c.GetSliderValue(ctx, "step")
			if err != nil {
				return err
			}
			if v != 5 {
				return fmt.Errorf("step = %v, want 5", v)
			}
			if err := c.ClickComponent(ctx, "decrement", 0); err != nil {
				return err
			}
			return waitForCount(ctx, c, -2)
		}},
		{"label text", func(ctx context.Context, c *driver.Conn) error {
			return driver.WaitForResult(ctx, driver.DefaultPollInterval, func(ctx context.Context) (string, error) {
				return c.ComponentText(ctx, "count")
			}, "-2")
		}},
		{"type name", func(ctx context.Context, c *driver.Conn) error {
			if ok, err := c.TabToComponent(ctx, "name", 8); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("name editor never took focus")
			}
			for _, k := range []string{"o", "k"} {
				if err := c.KeyPress(ctx, k, "", ""); err != nil {
					return err
				}
			}
			text, err := c.ComponentText(ctx, "name")
			if err != nil {
				return err
			}
			if text != "ok" {
				return fmt.Errorf("name = %q, want %q", text, "ok")
			}
			return nil
		}},
		{"reset menu", func(ctx context.Context, c *driver.Conn) error {
			if err := c.InvokeMenu(ctx, "Reset"); err != nil {
				return err
			}
			return waitForCount(ctx, c, 0)
		}},
		{"custom handler", func(ctx context.Context, c *driver.Conn) error {
			resp, err := c.Send(ctx, "get-counter", driver.Args{})
			if err != nil {
				return err
			}
			if v, ok := resp.Data.Int("value"); !ok || v != 0 {
				return fmt.Errorf("get-counter = %v, want 0", v)
			}
			return nil
		}},
		{"count buttons", func(ctx context.Context, c *driver.Conn) error {
			n, err := c.CountComponents(ctx, "*crement", "buttons")
			if err != nil {
				return err
			}
			if n != 2 {
				return fmt.Errorf("buttons = %d, want 2", n)
			}
			return nil
		}},
	}
	if screenshotDir != "" {
		steps = append(steps, step{"screenshot", func(ctx context.Context, c *driver.Conn) error {
			_, err := c.SaveScreenshot(ctx, "main", screenshotDir)
			return err
		}})
	}
	return steps
}

// waitForCount waits for the counter-changed event carrying want.
func waitForCount(ctx context.Context, c *driver.Conn, want int) error {
	_, err := c.WaitForEvent(ctx, "counter-changed", func(ev envelope.Event) bool {
		v, ok := ev.Data.Int("value")
		return ok && v == int64(want)
	})
	if err != nil {
		return fmt.Errorf("counter never reached %d: %w", want, err)
	}
	return nil
}
