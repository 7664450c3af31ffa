// Package action turns a compiled fragment into the callable the tick loop
// invokes for every cell of a generated particle.
//
// The callable has two fallback layers. The inner layer adds a fixed noise
// floor of plain gravity and replaces a failing fragment run with a strong
// gravity fall. The outer layer catches anything the inner layer lets
// through, applies a fallback chosen by the particle's name category, and
// records timing. A wrapped callable never panics and never returns an
// error, so the tick loop calls it unguarded.
package action
