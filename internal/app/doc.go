// Package app contains the core application logic. It wires the generator
// backend, the particle pipeline and the simulation together and drives the
// tick loop, decoupled from any specific entrypoint like a CLI or server.
package app
