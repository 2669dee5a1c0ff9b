// Package testutil holds shared helpers for package and integration tests.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridfeed/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an application-level test run.
type HarnessResult struct {
	LogOutput string
	Err       error
}

// RunApp writes the pipeline definition to a temporary file, runs the app
// against it for the given number of iterations, and captures the log
// output.
func RunApp(t *testing.T, definition string, iterations int) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(definition), 0o644))

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Iterations:   iterations,
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)

	var buf SafeBuffer
	runErr := app.NewApp(&buf, cfg).Run(context.Background())
	return &HarnessResult{LogOutput: buf.String(), Err: runErr}
}
