// Package expr implements the "expr" component kind: components whose
// compartments, parameters, and transitions are described as data, with
// each transition output given as a CUE expression.
//
//	compartments: v: initial: 0.0
//	params: tau: 10.0
//	transitions: advance: v: "v + dt * (drive - v) / tau"
//
// Free identifiers in an expression are its inputs; the model classifies
// them into compartment reads, parameters, and runtime arguments. Identifiers
// read inside an if-comprehension guard are branch inputs, so a guard on a
// non-fixed compartment fails to compile.
//
// All outputs of one transition are evaluated against the same input values.
package expr
