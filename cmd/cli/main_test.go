package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_LoadError(t *testing.T) {
	t.Parallel()

	invalidHCL := `
		node "stt" "a" {
		// Missing closing brace here
	`
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := run(context.Background(), out, errOut, []string{"-text", "hi", filePath})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	graph := `
component "local_llm" "brain" {
  template = "Echo: {input}"
}
node "llm_chat" "chat" {
  component = "brain"
}
`
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(graph), 0o600))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-text", "ping", filePath})

	require.NoError(t, err)
	require.JSONEq(t, `{"node":"chat","value":{"kind":"text","text":"Echo: ping"}}`, out.String())
}
