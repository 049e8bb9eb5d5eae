// Package config defines the format-agnostic model of a graph file: the
// components it declares, its nodes, the edges between them and the graph
// block naming entries and results. It also defines the Loader and Converter
// interfaces that a concrete format (HCL) implements.
//
// The model keeps node and component bodies undecoded. They are decoded only
// once the evaluation context (variables, environment) is known, by the
// builder.
package config
