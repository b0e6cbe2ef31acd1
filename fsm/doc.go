// Package fsm runs the order lifecycle state machine.
//
// A Machine holds one order's current state and its extended state (the paid
// flag). Send looks the event up in an immutable Table, evaluates guards in row
// order, runs the selected action, moves to the target unless the transition is
// internal, and notifies listeners. Events with no applicable row are rejected
// without touching the machine.
package fsm
