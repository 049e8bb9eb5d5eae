// Package cli turns command-line arguments into an app.Config. It owns flag
// definitions, usage text and the exit codes reported for bad input; running
// the graph is left to the app package.
package cli
