package dispatch

import (
	"reflect"
	"sort"

	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

// Handler answers commands it recognizes. Returning false means "not mine".
type Handler interface {
	Process(cmd envelope.Command) (envelope.Response, bool)
}

type funcHandler struct {
	fn func(envelope.Command) (envelope.Response, bool)
}

func (h *funcHandler) Process(cmd envelope.Command) (envelope.Response, bool) {
	return h.fn(cmd)
}

// Func adapts fn into a Handler with pointer identity; keep the returned
// value to remove it later.
func Func(fn func(envelope.Command) (envelope.Response, bool)) Handler {
	return &funcHandler{fn: fn}
}

// Router claims the command types it has routes for.
type Router struct {
	routes map[string]func(envelope.Command) envelope.Response
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]func(envelope.Command) envelope.Response)}
}

// Handle registers fn for commandType, replacing any earlier route.
func (r *Router) Handle(commandType string, fn func(envelope.Command) envelope.Response) *Router {
	r.routes[commandType] = fn
	return r
}

func (r *Router) Process(cmd envelope.Command) (envelope.Response, bool) {
	fn, ok := r.routes[cmd.Type]
	if !ok {
		return envelope.Response{}, false
	}
	return fn(cmd), true
}

func (r *Router) Has(commandType string) bool {
	_, ok := r.routes[commandType]
	return ok
}

// Types lists routed command types in sorted order.
func (r *Router) Types() []string {
	out := make([]string, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sameHandler compares by identity. Only reference-shaped handlers
// (pointers, maps, channels) have one; value handlers never match.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}
