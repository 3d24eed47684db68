// Package dispatch routes decoded commands through an ordered handler chain.
//
// Contract: the first handler that claims a command wins and iteration stops
// there, so every valid command produces exactly one response. Invalid
// commands produce none. A quit command that a handler claimed triggers the
// termination hook only after its response has been handed to the sender.
package dispatch
