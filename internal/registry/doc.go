// Package registry owns the mapping between particle names and color ids
// and the append-only table of per-id actions the simulation reads.
//
// Registration is the one place a generated fragment is allowed to fail
// hard. A description is built into a wrapped action before anything is
// stored: a new name is built against the id it would receive, and only a
// successful build consumes that id. A known name is rebuilt against its
// existing id and only its action and description are replaced, so cells
// already painted with the id keep behaving consistently.
//
// The tick loop never reads the registry directly. It takes a Table, an
// immutable snapshot that is replaced on every registration.
package registry
