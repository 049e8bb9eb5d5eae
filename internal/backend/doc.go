// Package backend holds nothing but this comment; each subpackage adapts one
// external service (or a local stand-in) to the capability interfaces in
// the registry package and exposes a registry.Module for it.
package backend
