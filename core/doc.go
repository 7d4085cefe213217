// Package core defines the shared contracts of the huddle orchestration
// runtime: the permission lattice, capability descriptors, the Agent
// interface every handler implements, the request/response envelope and the
// error taxonomy used across all components.
//
// Nothing in this package performs I/O or holds mutable global state; it is
// the vocabulary the registry, router, orchestrator and collaboration
// subsystems speak.
package core
