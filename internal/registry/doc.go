// Package registry is the glue between graph definitions and backends.
//
// Providers (e.g. "openai_llm") are registered by modules at startup. Each
// `component "<provider>" "<id>"` block in a graph file is turned into a
// backend by its provider's factory and stored under the component ID.
// Nodes resolve components by ID and capability; they never own the
// backend's lifecycle.
package registry
