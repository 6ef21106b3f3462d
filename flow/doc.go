// Package flow implements the command execution engine.
//
// This package contains:
//   - Command, Base and the Result values a command returns from Enter
//   - Frame and Token: one activation of a command and its resume handle
//   - Block: a flat command list, its cursor and the trampoline dispatch loop
//   - the jump table compiled from indent levels (opener/closer matching)
//   - Flowchart: blocks, variables, triggers and reset
//   - Services and Signals: everything a command may reach outside its block
//
// The engine is single-threaded and cooperative. Nothing in this package
// takes a lock; hosts that touch flowcharts from several goroutines must
// serialize access (see host.Worker).
package flow
