package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/google/uuid"
)

var (
	ErrNotResponse = errors.New("envelope: not a response")
	ErrNotEvent    = errors.New("envelope: not an event")
)

// Response is the application->driver reply. Error is meaningful only when
// Success is false.
type Response struct {
	UUID    uuid.UUID
	Success bool
	Error   string
	Data    Params
}

func OK() Response {
	return Response{Success: true}
}

func Fail(message string) Response {
	return Response{Success: false, Error: message}
}

// WithParameter returns a copy with data[name] = value.
func (r Response) WithParameter(name string, value any) Response {
	r.Data = r.Data.With(name, value)
	return r
}

// WithUUID returns a copy bound to the request that produced it.
func (r Response) WithUUID(id uuid.UUID) Response {
	r.UUID = id
	return r
}

type wireResponse struct {
	Type    string  `json:"type"`
	UUID    string  `json:"uuid"`
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
	Data    *Params `json:"data,omitempty"`
}

func (r Response) Encode() ([]byte, error) {
	w := wireResponse{
		Type:    protocol.KindResponse,
		UUID:    r.UUID.String(),
		Success: r.Success,
	}
	if !r.Success {
		msg := r.Error
		w.Error = &msg
	}
	if r.Data.Len() > 0 {
		data := r.Data
		w.Data = &data
	}
	return json.Marshal(w)
}

func DecodeResponse(text []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(text, &w); err != nil {
		return Response{}, fmt.Errorf("envelope: decode response: %w", err)
	}
	if w.Type != protocol.KindResponse {
		return Response{}, fmt.Errorf("%w: type=%q", ErrNotResponse, w.Type)
	}
	id, err := uuid.Parse(w.UUID)
	if err != nil {
		return Response{}, fmt.Errorf("envelope: decode response uuid: %w", err)
	}
	out := Response{UUID: id, Success: w.Success}
	if !w.Success && w.Error != nil {
		out.Error = *w.Error
	}
	if w.Data != nil {
		out.Data = *w.Data
	}
	return out, nil
}

func (r Response) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Success: %t\n", r.Success)
	if !r.Success {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	describeParams(&b, r.Data)
	return b.String()
}

// Event is an unsolicited application->driver notification.
type Event struct {
	Name string
	Data Params
}

func NewEvent(name string) Event {
	return Event{Name: name}
}

func (e Event) WithParameter(name string, value any) Event {
	e.Data = e.Data.With(name, value)
	return e
}

type wireEvent struct {
	Type string  `json:"type"`
	Name string  `json:"name"`
	Data *Params `json:"data,omitempty"`
}

func (e Event) Encode() ([]byte, error) {
	w := wireEvent{Type: protocol.KindEvent, Name: e.Name}
	if e.Data.Len() > 0 {
		data := e.Data
		w.Data = &data
	}
	return json.Marshal(w)
}

func DecodeEvent(text []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(text, &w); err != nil {
		return Event{}, fmt.Errorf("envelope: decode event: %w", err)
	}
	if w.Type != protocol.KindEvent {
		return Event{}, fmt.Errorf("%w: type=%q", ErrNotEvent, w.Type)
	}
	out := Event{Name: w.Name}
	if w.Data != nil {
		out.Data = *w.Data
	}
	return out, nil
}

func describeParams(b *strings.Builder, p Params) {
	for _, k := range p.keys {
		fmt.Fprintf(b, "%s: %v\n", k, p.values[k])
	}
}
