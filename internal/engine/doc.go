// Package engine executes simulation runs asynchronously. It resolves
// run records into concrete scenarios, drives each one against a
// scripted transport, persists the resulting event trace to the store
// in real time, and streams it to live subscribers via the TraceBroker.
package engine
