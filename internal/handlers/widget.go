// Package handlers supplies the default command handler. It acts on an
// application's widget tree through the capabilities declared here; the
// concrete toolkit stays behind WidgetTree.
package handlers

import "errors"

var ErrRootNotFound = errors.New("handlers: root component not found")

// Widget is the minimum every located element offers.
type Widget interface {
	ID() string
	Showing() bool
	Enabled() bool
}

// Clicker is a widget that reacts to n clicks (1 or 2).
type Clicker interface {
	Click(n int) error
}

type Texter interface {
	Text() string
}

type KeyReceiver interface {
	KeyPress(k KeyPress) error
}

// Focuser takes keyboard focus. A widget that can only focus (a text box)
// is "clicked" by focusing it.
type Focuser interface {
	Focus()
}

// Snapshotter renders the widget as an encoded image.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

type SliderValue interface {
	Value() float64
	SetValue(v float64) error
}

// WidgetTree locates widgets. IDs are wildcard patterns; a "/" separated id
// walks down from the first match. skip selects the n-th match of the first
// segment.
type WidgetTree interface {
	Find(id string, skip int) (Widget, bool)
	// FindWindow returns the first top-level window when id is empty.
	FindWindow(id string) (Widget, bool)
	Focused() (Widget, bool)
	// Count returns ErrRootNotFound when rootID is set and does not resolve.
	Count(rootID, windowID, id string) (int, error)
	InvokeMenu(title string) bool
}
