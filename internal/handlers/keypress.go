package handlers

import (
	"strconv"
	"strings"
)

type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModCommand
)

func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag != 0
}

func (m Modifiers) String() string {
	var parts []string
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	if m.Has(ModControl) {
		parts = append(parts, "control")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "alt")
	}
	if m.Has(ModCommand) {
		parts = append(parts, "command")
	}
	return strings.Join(parts, "+")
}

// KeyPress is a named key (see namedKeys) or a single character, plus
// modifiers.
type KeyPress struct {
	Key       string
	Named     bool
	Modifiers Modifiers
}

var namedKeys = map[string]struct{}{
	"space": {}, "escape": {}, "return": {}, "tab": {}, "delete": {},
	"backspace": {}, "insert": {}, "up": {}, "down": {}, "left": {},
	"right": {}, "page-up": {}, "page-down": {}, "home": {}, "end": {},
	"play": {}, "stop": {}, "fast-forward": {}, "rewind": {},
	"num-pad-add": {}, "num-pad-subtract": {}, "num-pad-multiply": {},
	"num-pad-divide": {}, "num-pad-separator": {}, "num-pad-decimal-point": {},
	"num-pad-equals": {}, "num-pad-delete": {},
}

func init() {
	for i := 0; i <= 9; i++ {
		namedKeys["num-pad-"+strconv.Itoa(i)] = struct{}{}
	}
	for i := 1; i <= 35; i++ {
		namedKeys["F"+strconv.Itoa(i)] = struct{}{}
	}
}

// ParseKeyPress maps the key-press command arguments. Unknown codes fall
// back to their first character. Modifiers match by substring, so
// "shift+control" and "control shift" are equivalent.
func ParseKeyPress(code, modifiers string) KeyPress {
	k := KeyPress{}
	if _, ok := namedKeys[code]; ok {
		k.Key = code
		k.Named = true
	} else if r := []rune(code); len(r) > 0 {
		k.Key = string(r[0])
	}
	if strings.Contains(modifiers, "shift") {
		k.Modifiers |= ModShift
	}
	if strings.Contains(modifiers, "control") {
		k.Modifiers |= ModControl
	}
	if strings.Contains(modifiers, "alt") {
		k.Modifiers |= ModAlt
	}
	if strings.Contains(modifiers, "command") {
		k.Modifiers |= ModCommand
	}
	return k
}

func (k KeyPress) String() string {
	if k.Modifiers == 0 {
		return k.Key
	}
	return k.Modifiers.String() + "+" + k.Key
}
