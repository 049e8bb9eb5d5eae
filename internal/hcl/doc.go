// Package hcl provides the concrete HCL implementation of the config.Loader
// and config.Converter interfaces. It is responsible for file discovery and
// parsing, HCL-to-model translation, the `var`/`env` evaluation context and
// decoding node blocks into node configs.
package hcl
