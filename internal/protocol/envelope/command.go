package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var emptyArgs = json.RawMessage(`{}`)

// Command is the driver->application request envelope.
type Command struct {
	Type string
	UUID uuid.UUID
	Args json.RawMessage
}

// NewCommand stamps a fresh random uuid onto a command of the given type.
// A nil args value encodes as an empty object.
func NewCommand(commandType string, args any) (Command, error) {
	raw := emptyArgs
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return Command{}, fmt.Errorf("envelope: encode args: %w", err)
		}
		raw = b
	}
	return Command{
		Type: commandType,
		UUID: uuid.New(),
		Args: raw,
	}, nil
}

// DecodeCommand never fails: unparseable text or a non-object top level
// yields the zero Command, which reports IsValid() == false.
func DecodeCommand(text []byte) Command {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(text, &root); err != nil || root == nil {
		return Command{}
	}

	var cmd Command
	if raw, ok := root["type"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			cmd.Type = s
		}
	}
	if raw, ok := root["uuid"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if id, err := uuid.Parse(s); err == nil {
				cmd.UUID = id
			}
		}
	}
	cmd.Args = emptyArgs
	if raw, ok := root["args"]; ok && !isNull(raw) {
		cmd.Args = append(json.RawMessage(nil), raw...)
	}
	return cmd
}

func (c Command) IsValid() bool {
	return c.Type != "" && c.UUID != uuid.Nil
}

func (c Command) Encode() ([]byte, error) {
	args := c.Args
	if len(args) == 0 {
		args = emptyArgs
	}
	return json.Marshal(struct {
		Type string          `json:"type"`
		UUID string          `json:"uuid"`
		Args json.RawMessage `json:"args"`
	}{
		Type: c.Type,
		UUID: c.UUID.String(),
		Args: args,
	})
}

func (c Command) HasArgument(name string) bool {
	_, ok := c.rawArgument(name)
	return ok
}

// Argument renders args[name] as text. Strings are returned verbatim, other
// JSON values in their compact JSON form, and absent or null values as "".
func (c Command) Argument(name string) string {
	raw, ok := c.rawArgument(name)
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ArgumentAs coerces args[name] into T. Any coercion failure yields the zero
// value of T. A JSON string whose content parses as T is accepted, so "2"
// coerces to an int.
func ArgumentAs[T any](c Command, name string) T {
	var zero T
	raw, ok := c.rawArgument(name)
	if !ok || isNull(raw) {
		return zero
	}
	var out T
	if json.Unmarshal(raw, &out) == nil {
		return out
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		var fromText T
		if json.Unmarshal([]byte(strings.TrimSpace(s)), &fromText) == nil {
			return fromText
		}
	}
	return zero
}

// Describe renders the command for log output.
func (c Command) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\n", c.Type)
	args := c.Args
	if len(args) == 0 {
		args = emptyArgs
	}
	var compact bytes.Buffer
	if json.Compact(&compact, args) == nil {
		args = compact.Bytes()
	}
	fmt.Fprintf(&b, "Args: %s\n", args)
	return b.String()
}

func (c Command) rawArgument(name string) (json.RawMessage, bool) {
	if len(c.Args) == 0 {
		return nil, false
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(c.Args, &args); err != nil {
		return nil, false
	}
	raw, ok := args[name]
	return raw, ok
}

// Peek reports the "type" discriminator of an envelope without decoding it.
func Peek(text []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(text, &head); err != nil {
		return ""
	}
	return head.Type
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
