// Package node implements graph vertices: a stable ID, one creation config
// picked from a closed set of kinds, an optional execution config, and a
// single Process operation that turns one input value into one output value.
//
// Nodes call external capabilities (speech, language models, embeddings,
// memory stores, MCP servers) through interfaces resolved from a
// registry.Resolver at creation time. A node owns a resource handle; after
// Close any Process call panics with a use-after-release error.
package node
