// Package app contains the core application logic. It wires the HCL loader,
// component providers, graph builder and executor into a single run,
// decoupled from any specific entrypoint like a CLI or server.
package app
