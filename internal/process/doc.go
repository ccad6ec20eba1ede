// Package process compiles ordered transition calls into one pure step
// function and executes it against a context's store.
//
// For each appended (component, transition) pair the compiler emits the
// component's connection steps first, then the transition body. Steps are
// composed strictly left to right; the compiler never reorders by
// dependency.
//
// Execution pulls a private slice of the store, runs the composed function,
// and, only when asked, commits back the keys the process writes. Failures at
// execution time are logged and returned without touching the store.
package process
