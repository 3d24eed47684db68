// Package envelope converts frame payloads to and from the JSON
// command, response, and event envelopes.
//
// Commands flow driver -> application and carry a uuid. Responses echo that
// uuid. Events are fire-and-forget and carry no correlation id.
package envelope
