// Package engine implements the single-goroutine task loop that owns all
// live query state.
//
// ARCHITECTURE:
//
// Single-Goroutine Loop:
// Selectors, streams and their subscriptions are never locked. Instead,
// every piece of code that touches them runs as a task on one Loop
// goroutine. This gives:
//   - Change notifications processed strictly in the order storage raised them
//   - No interleaving between a re-query and the diff computed from it
//   - Simple reasoning about subscription lifetimes
//
// Task Flow:
//  1. Storage commit hooks, application goroutines and tasks call Post
//  2. Loop.Run pops tasks one at a time in FIFO order
//  3. A task may Post follow-up work; it runs after everything already queued
//
// Consumers outside the loop receive results through Queue, an unbounded
// FIFO, so a slow reader never stalls the loop and never loses an emission.
package engine
