package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWritesBindings(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "ids.yaml")
	require.NoError(t, os.WriteFile(in, []byte("PAYLOAD_OFFSET: 8\nMessageType:\n  - DATA: 2\n"), 0o600))

	out := filepath.Join(dir, "msg.js")
	require.NoError(t, run("js", in, out, ""))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "DATA: 2,"), string(b))

	require.Error(t, run("cobol", "", filepath.Join(dir, "x"), ""))
	require.Error(t, run("js", filepath.Join(dir, "missing.yaml"), "", ""))
}
