// Package workflow implements the production order pipeline: the fixed step
// definition, the pure gate predicates that decide whether a step may be
// touched, the derived progress summary, and the Engine that applies
// transitions.
//
// The Engine is the only component allowed to mutate step state. Every
// operation validates first and commits through a single store transaction,
// so a rejected call leaves the database byte-for-byte unchanged. Operations
// on the same order are serialized; different orders never block each other.
package workflow
