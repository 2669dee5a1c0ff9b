package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridfeed/internal/cli"
)

func TestRun(t *testing.T) {
	t.Run("no arguments exits cleanly with usage", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(&out, nil))
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("bad flag value returns an exit error", func(t *testing.T) {
		var out bytes.Buffer
		err := run(&out, []string{"-log-format", "xml", "pipe.hcl"})
		var exitErr *cli.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("executes a pipeline end to end", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipe.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 2 }
  outputs = ["frames"]
}
`), 0o644))

		var out bytes.Buffer
		require.NoError(t, run(&out, []string{"-iterations", "2", path}))
		assert.Contains(t, out.String(), "All iterations complete.")
	})
}
